// Package installer submits install and uninstall requests to the host
// package installer. Submission is synchronous up to "session accepted";
// final outcomes arrive asynchronously against per-request receipt tokens.
package installer

import (
	"context"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/infrastructure/monitoring"
	"github.com/containeros/appbridge/internal/shared/types"
)

// Streaming copy buffer size for archive uploads.
const copyBufferSize = 64 * 1024

// Session is one open host install session. At most one write sink may
// be open per session; Close must be called on every exit path.
type Session interface {
	ID() string
	OpenWrite(ctx context.Context) (io.WriteCloser, error)
	Fsync(ctx context.Context) error
	Commit(ctx context.Context, receipt string) error
	Close() error
}

// Client is the slice of the host installer the manager needs.
type Client interface {
	CreateSession(ctx context.Context) (Session, error)
	SetInstallerOfRecord(ctx context.Context, pkg string) error
	Uninstall(ctx context.Context, pkg, receipt string) error
}

// Manager orchestrates install/uninstall submission.
type Manager struct {
	client  Client
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewManager creates an install session manager.
func NewManager(client Client, log *logging.Logger) *Manager {
	return &Manager{client: client, log: log}
}

// WithMetrics adds metrics tracking to the manager.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Install streams the archive at path into a new host install session and
// requests commit. The returned status reflects submission only:
// types.StatusSubmitted once the session is committed for processing,
// types.StatusFailed on invalid input or any I/O failure. The write sink,
// the input file, and the session handle are released on every path.
func (m *Manager) Install(ctx context.Context, path string) int {
	status := m.install(ctx, path)
	if m.metrics != nil {
		m.metrics.RecordSubmission("install", status)
	}
	return status
}

func (m *Manager) install(ctx context.Context, path string) int {
	if path == "" {
		m.log.Warn("install rejected: empty archive path")
		return types.StatusFailed
	}

	if mtype, err := mimetype.DetectFile(path); err == nil {
		m.log.Info("install submitted",
			zap.String("path", path),
			zap.String("mime", mtype.String()))
	}

	session, err := m.client.CreateSession(ctx)
	if err != nil {
		m.log.Error("install session creation failed", zap.Error(err))
		return types.StatusFailed
	}
	defer session.Close()

	in, err := os.Open(path)
	if err != nil {
		m.log.Error("archive open failed", zap.String("path", path), zap.Error(err))
		return types.StatusFailed
	}
	defer in.Close()

	sink, err := session.OpenWrite(ctx)
	if err != nil {
		m.log.Error("session write sink open failed",
			zap.String("session", session.ID()), zap.Error(err))
		return types.StatusFailed
	}

	buf := make([]byte, copyBufferSize)
	_, copyErr := io.CopyBuffer(sink, in, buf)
	closeErr := sink.Close()
	if copyErr != nil || closeErr != nil {
		m.log.Error("archive streaming failed",
			zap.String("session", session.ID()),
			zap.NamedError("copy", copyErr),
			zap.NamedError("close", closeErr))
		return types.StatusFailed
	}

	if err := session.Fsync(ctx); err != nil {
		m.log.Error("session fsync failed",
			zap.String("session", session.ID()), zap.Error(err))
		return types.StatusFailed
	}

	receipt := uuid.NewString()
	if err := session.Commit(ctx, receipt); err != nil {
		m.log.Error("session commit failed",
			zap.String("session", session.ID()), zap.Error(err))
		return types.StatusFailed
	}

	m.log.Info("install session committed",
		zap.String("session", session.ID()),
		zap.String("receipt", receipt))
	return types.StatusSubmitted
}

// Remove requests uninstall of the package with a fresh receipt token.
// Returns types.StatusSubmitted once the request is issued; the outcome
// is asynchronous and delivery failures only get logged.
func (m *Manager) Remove(ctx context.Context, pkg string) int {
	if err := m.client.SetInstallerOfRecord(ctx, pkg); err != nil {
		m.log.Warn("installer-of-record update failed",
			zap.String("package", pkg), zap.Error(err))
	}

	receipt := uuid.NewString()
	if err := m.client.Uninstall(ctx, pkg, receipt); err != nil {
		m.log.Warn("uninstall request failed",
			zap.String("package", pkg), zap.Error(err))
	} else {
		m.log.Info("uninstall requested",
			zap.String("package", pkg),
			zap.String("receipt", receipt))
	}

	if m.metrics != nil {
		m.metrics.RecordSubmission("uninstall", types.StatusSubmitted)
	}
	return types.StatusSubmitted
}
