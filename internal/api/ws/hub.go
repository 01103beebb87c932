// Package ws feeds relayed package events to guest-side websocket
// subscribers. Delivery is best-effort: a slow subscriber's buffer
// overflows and events are skipped rather than blocking the relay.
package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/infrastructure/monitoring"
	"github.com/containeros/appbridge/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The guest proxy is the only expected caller.
		return true
	},
}

const subscriberBuffer = 16

// Hub fans events out to connected subscribers.
type Hub struct {
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu          sync.RWMutex
	subscribers map[chan types.PackageEvent]struct{}
}

// NewHub creates an event hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:         log,
		subscribers: make(map[chan types.PackageEvent]struct{}),
	}
}

// WithMetrics adds metrics tracking to the hub.
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Broadcast pushes one event to every subscriber without blocking.
func (h *Hub) Broadcast(ev types.PackageEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub <- ev:
		default:
			// Subscriber is not keeping up; skip this event for it.
		}
	}
}

// HandleConnection upgrades the request and streams events until the
// client disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events := h.subscribe()
	defer h.unsubscribe(events)

	// Reader goroutine: its only job is to observe the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) subscribe() chan types.PackageEvent {
	events := make(chan types.PackageEvent, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[events] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSSubscribers.Inc()
	}
	return events
}

func (h *Hub) unsubscribe(events chan types.PackageEvent) {
	h.mu.Lock()
	delete(h.subscribers, events)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSSubscribers.Dec()
	}
}
