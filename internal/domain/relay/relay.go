// Package relay observes host package lifecycle events and fans them out:
// it keeps the icon cache in step and forwards normalized events to the
// per-user session monitor. A single worker goroutine drains a bounded
// queue, so events for one package are processed in emission order while
// request handlers never block on relay work.
package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/infrastructure/monitoring"
	"github.com/containeros/appbridge/internal/shared/types"
)

// IconCache is the slice of the icon cache the relay drives.
type IconCache interface {
	Refresh(ctx context.Context, pkg string) error
	Evict(pkg string) error
}

// Monitor receives forwarded lifecycle events. Delivery is best-effort;
// a failed forward is dropped, never retried.
type Monitor interface {
	PackageStateChanged(ctx context.Context, code int, pkg string, uid int) error
}

// Broadcaster pushes relayed events to in-process subscribers (the guest
// websocket feed). May be nil.
type Broadcaster interface {
	Broadcast(ev types.PackageEvent)
}

// Relay is the package event pipeline.
type Relay struct {
	queue          chan types.PackageEvent
	enqueueTimeout time.Duration

	icons       IconCache
	monitor     Monitor
	broadcaster Broadcaster
	log         *logging.Logger
	metrics     *monitoring.Metrics

	done chan struct{}
}

// Options tune queue behavior.
type Options struct {
	QueueSize      int
	EnqueueTimeout time.Duration
}

// New creates a relay. Start must be called before events flow.
func New(icons IconCache, monitor Monitor, log *logging.Logger, opts Options) *Relay {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 250 * time.Millisecond
	}
	return &Relay{
		queue:          make(chan types.PackageEvent, opts.QueueSize),
		enqueueTimeout: opts.EnqueueTimeout,
		icons:          icons,
		monitor:        monitor,
		log:            log,
		done:           make(chan struct{}),
	}
}

// WithMetrics adds metrics tracking to the relay.
func (r *Relay) WithMetrics(metrics *monitoring.Metrics) *Relay {
	r.metrics = metrics
	return r
}

// WithBroadcaster attaches an in-process event subscriber sink.
func (r *Relay) WithBroadcaster(b Broadcaster) *Relay {
	r.broadcaster = b
	return r
}

// Start launches the worker goroutine. It runs until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-r.queue:
				r.handle(ctx, ev)
				if r.metrics != nil {
					r.metrics.RelayQueueSize.Set(float64(len(r.queue)))
				}
			}
		}
	}()
}

// Wait blocks until the worker has stopped.
func (r *Relay) Wait() {
	<-r.done
}

// Enqueue offers an event to the relay. The call blocks for at most the
// configured enqueue timeout; past that the event is dropped and counted.
// Invalid kinds are rejected outright.
func (r *Relay) Enqueue(ev types.PackageEvent) bool {
	if !ev.Kind.Valid() || ev.PackageName == "" {
		return false
	}

	select {
	case r.queue <- ev:
	default:
		timer := time.NewTimer(r.enqueueTimeout)
		defer timer.Stop()
		select {
		case r.queue <- ev:
		case <-timer.C:
			r.log.Warn("relay queue full, dropping event",
				zap.String("kind", string(ev.Kind)),
				zap.String("package", ev.PackageName))
			if r.metrics != nil {
				r.metrics.EventsDropped.Inc()
			}
			return false
		}
	}

	if r.metrics != nil {
		r.metrics.RelayQueueSize.Set(float64(len(r.queue)))
	}
	return true
}

func (r *Relay) handle(ctx context.Context, ev types.PackageEvent) {
	switch ev.Kind {
	case types.PackageAdded, types.PackageUpdated:
		// Icon refresh failures are "nothing to cache", not errors.
		if err := r.icons.Refresh(ctx, ev.PackageName); err != nil {
			r.log.Debug("icon refresh failed",
				zap.String("package", ev.PackageName), zap.Error(err))
		}
	case types.PackageRemoved:
		if err := r.icons.Evict(ev.PackageName); err != nil {
			r.log.Warn("icon eviction failed",
				zap.String("package", ev.PackageName), zap.Error(err))
		}
	}

	// The icon mutation above is never rolled back on delivery failure.
	if err := r.monitor.PackageStateChanged(ctx, ev.Kind.Code(), ev.PackageName, ev.UID); err != nil {
		r.log.Debug("monitor unreachable, event dropped",
			zap.String("kind", string(ev.Kind)),
			zap.String("package", ev.PackageName),
			zap.Error(err))
	}

	if r.broadcaster != nil {
		r.broadcaster.Broadcast(ev)
	}

	if r.metrics != nil {
		r.metrics.EventsRelayed.WithLabelValues(string(ev.Kind)).Inc()
	}
}
