package host

import (
	"context"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
)

// InstallerClient talks to the host package installer daemon. Installs go
// through a host-allocated session: bytes are streamed into the session's
// write sink, synced, then committed with a one-shot receipt token.
type InstallerClient struct {
	http *resty.Client
}

// NewInstallerClient creates an installer client for the given base URL.
func NewInstallerClient(baseURL string) *InstallerClient {
	return &InstallerClient{http: newRestyClient(baseURL)}
}

// CreateSession opens a new full-install session on the host and returns
// its handle. The caller must Close the session on every path.
func (c *InstallerClient) CreateSession(ctx context.Context) (*InstallSession, error) {
	var result struct {
		SessionID string `json:"session_id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"mode": "full"}).
		SetResult(&result).
		Post("/v1/sessions")
	if err != nil {
		return nil, fmt.Errorf("installer create session: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("installer create session: status %d", resp.StatusCode())
	}
	return &InstallSession{client: c, id: result.SessionID}, nil
}

// SetInstallerOfRecord marks this service as the installer of record for
// the package, a host prerequisite for unattended uninstall.
func (c *InstallerClient) SetInstallerOfRecord(ctx context.Context, pkg string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"installer": "appbridge"}).
		Put("/v1/packages/" + pkg + "/installer")
	if err != nil {
		return fmt.Errorf("installer of record %s: %w", pkg, err)
	}
	if resp.IsError() {
		return fmt.Errorf("installer of record %s: status %d", pkg, resp.StatusCode())
	}
	return nil
}

// Uninstall requests removal of the package. Completion is delivered
// asynchronously against the receipt token.
func (c *InstallerClient) Uninstall(ctx context.Context, pkg, receipt string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"receipt": receipt}).
		Delete("/v1/packages/" + pkg)
	if err != nil {
		return fmt.Errorf("installer uninstall %s: %w", pkg, err)
	}
	if resp.IsError() {
		return fmt.Errorf("installer uninstall %s: status %d", pkg, resp.StatusCode())
	}
	return nil
}

// InstallSession is a handle to one open host install session. At most one
// write sink may be open per session.
type InstallSession struct {
	client *InstallerClient
	id     string
	closed bool
}

// ID returns the host-assigned session identifier.
func (s *InstallSession) ID() string {
	return s.id
}

// OpenWrite opens the session's streaming write sink. Bytes written are
// uploaded to the host as they arrive; Close flushes the stream and
// surfaces any transport error.
func (s *InstallSession) OpenWrite(ctx context.Context) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &sessionWriter{pw: pw, done: make(chan error, 1)}

	go func() {
		resp, err := s.client.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/octet-stream").
			SetBody(pr).
			Put("/v1/sessions/" + s.id + "/write")
		if err == nil && resp.IsError() {
			err = fmt.Errorf("installer write: status %d", resp.StatusCode())
		}
		// Unblock the writer if the upload died mid-stream.
		pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

// Fsync forces the host to persist everything streamed so far.
func (s *InstallSession) Fsync(ctx context.Context) error {
	resp, err := s.client.http.R().
		SetContext(ctx).
		Post("/v1/sessions/" + s.id + "/fsync")
	if err != nil {
		return fmt.Errorf("installer fsync: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("installer fsync: status %d", resp.StatusCode())
	}
	return nil
}

// Commit asks the host to finalize the install. The outcome is delivered
// asynchronously against the receipt token.
func (s *InstallSession) Commit(ctx context.Context, receipt string) error {
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"receipt": receipt}).
		Post("/v1/sessions/" + s.id + "/commit")
	if err != nil {
		return fmt.Errorf("installer commit: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("installer commit: status %d", resp.StatusCode())
	}
	return nil
}

// Close releases the session handle. Safe to call on every exit path;
// the host abandons uncommitted sessions.
func (s *InstallSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	resp, err := s.client.http.R().
		Delete("/v1/sessions/" + s.id)
	if err != nil {
		return fmt.Errorf("installer close session: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("installer close session: status %d", resp.StatusCode())
	}
	return nil
}

type sessionWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *sessionWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *sessionWriter) Close() error {
	w.pw.Close()
	return <-w.done
}
