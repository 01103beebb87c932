package installer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/shared/types"
)

type fakeSession struct {
	id string

	written    []byte
	writeLimit int // fail writes past this many bytes; 0 = unlimited

	sinkOpened bool
	sinkClosed bool
	fsynced    bool
	committed  bool
	receipt    string
	closed     bool

	// Call-order tracking.
	fsyncBeforeCommit bool
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) OpenWrite(ctx context.Context) (io.WriteCloser, error) {
	s.sinkOpened = true
	return &fakeSink{session: s}, nil
}

func (s *fakeSession) Fsync(ctx context.Context) error {
	s.fsynced = true
	return nil
}

func (s *fakeSession) Commit(ctx context.Context, receipt string) error {
	s.committed = true
	s.receipt = receipt
	s.fsyncBeforeCommit = s.fsynced
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeSink struct {
	session *fakeSession
}

func (w *fakeSink) Write(p []byte) (int, error) {
	s := w.session
	if s.writeLimit > 0 && len(s.written)+len(p) > s.writeLimit {
		return 0, errors.New("stream severed")
	}
	s.written = append(s.written, p...)
	return len(p), nil
}

func (w *fakeSink) Close() error {
	w.session.sinkClosed = true
	return nil
}

type fakeInstaller struct {
	sessions   []*fakeSession
	createErr  error
	writeLimit int

	recordPkg    string
	uninstalls   []string
	receipts     []string
	uninstallErr error
}

func (f *fakeInstaller) CreateSession(ctx context.Context) (Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	s := &fakeSession{id: "session-1", writeLimit: f.writeLimit}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeInstaller) SetInstallerOfRecord(ctx context.Context, pkg string) error {
	f.recordPkg = pkg
	return nil
}

func (f *fakeInstaller) Uninstall(ctx context.Context, pkg, receipt string) error {
	if f.uninstallErr != nil {
		return f.uninstallErr
	}
	f.uninstalls = append(f.uninstalls, pkg)
	f.receipts = append(f.receipts, receipt)
	return nil
}

func archiveFixture(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.apk")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInstallEmptyPath(t *testing.T) {
	client := &fakeInstaller{}
	m := NewManager(client, logging.NewNop())

	if status := m.Install(context.Background(), ""); status != types.StatusFailed {
		t.Fatalf("expected failure status, got %d", status)
	}
	if len(client.sessions) != 0 {
		t.Error("session opened for invalid input")
	}
}

func TestInstallStreamsAndCommits(t *testing.T) {
	client := &fakeInstaller{}
	m := NewManager(client, logging.NewNop())

	const size = 3*copyBufferSize + 777
	path := archiveFixture(t, size)

	if status := m.Install(context.Background(), path); status != types.StatusSubmitted {
		t.Fatalf("expected submitted status, got %d", status)
	}

	if len(client.sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(client.sessions))
	}
	s := client.sessions[0]
	if len(s.written) != size {
		t.Errorf("expected %d bytes streamed, got %d", size, len(s.written))
	}
	if !s.fsyncBeforeCommit {
		t.Error("commit requested before fsync")
	}
	if !s.committed || s.receipt == "" {
		t.Error("expected commit with a receipt token")
	}
	if !s.sinkClosed || !s.closed {
		t.Error("sink and session must be released on success")
	}
}

func TestInstallSeveredStreamReleasesEverything(t *testing.T) {
	client := &fakeInstaller{writeLimit: copyBufferSize}
	m := NewManager(client, logging.NewNop())

	path := archiveFixture(t, 4*copyBufferSize)

	if status := m.Install(context.Background(), path); status != types.StatusFailed {
		t.Fatalf("expected failure status, got %d", status)
	}

	s := client.sessions[0]
	if s.committed {
		t.Error("failed stream must not commit")
	}
	if !s.sinkClosed {
		t.Error("sink leaked after failed stream")
	}
	if !s.closed {
		t.Error("session handle leaked after failed stream")
	}
}

func TestInstallMissingArchive(t *testing.T) {
	client := &fakeInstaller{}
	m := NewManager(client, logging.NewNop())

	status := m.Install(context.Background(), filepath.Join(t.TempDir(), "absent.apk"))
	if status != types.StatusFailed {
		t.Fatalf("expected failure status, got %d", status)
	}
	if len(client.sessions) == 1 && !client.sessions[0].closed {
		t.Error("session leaked after open failure")
	}
}

func TestInstallSessionCreationFailure(t *testing.T) {
	client := &fakeInstaller{createErr: errors.New("installer down")}
	m := NewManager(client, logging.NewNop())

	path := archiveFixture(t, 128)
	if status := m.Install(context.Background(), path); status != types.StatusFailed {
		t.Fatalf("expected failure status, got %d", status)
	}
}

func TestRemoveIssuesUniqueReceipts(t *testing.T) {
	client := &fakeInstaller{}
	m := NewManager(client, logging.NewNop())

	if status := m.Remove(context.Background(), "com.example.mail"); status != types.StatusSubmitted {
		t.Fatalf("expected submitted status, got %d", status)
	}
	if status := m.Remove(context.Background(), "com.example.cam"); status != types.StatusSubmitted {
		t.Fatalf("expected submitted status, got %d", status)
	}

	if client.recordPkg != "com.example.cam" {
		t.Error("installer-of-record not updated")
	}
	if len(client.receipts) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(client.receipts))
	}
	if client.receipts[0] == client.receipts[1] {
		t.Error("overlapping uninstalls must not share a receipt token")
	}
}

func TestRemoveAlwaysSubmitted(t *testing.T) {
	client := &fakeInstaller{uninstallErr: errors.New("installer down")}
	m := NewManager(client, logging.NewNop())

	if status := m.Remove(context.Background(), "com.example.mail"); status != types.StatusSubmitted {
		t.Fatalf("submission status must not reflect transport failures, got %d", status)
	}
}
