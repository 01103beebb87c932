package host

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInstallerDaemon records the session lifecycle as the host would see it.
type fakeInstallerDaemon struct {
	mu        sync.Mutex
	written   []byte
	fsyncs    int
	committed string // receipt
	closed    bool
	failWrite bool
}

func (d *fakeInstallerDaemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-42"})
	})
	mux.HandleFunc("PUT /v1/sessions/sess-42/write", func(w http.ResponseWriter, r *http.Request) {
		if d.failWrite {
			w.WriteHeader(http.StatusInsufficientStorage)
			return
		}
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		d.mu.Lock()
		d.written = append(d.written, data...)
		d.mu.Unlock()
	})
	mux.HandleFunc("POST /v1/sessions/sess-42/fsync", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.fsyncs++
		d.mu.Unlock()
	})
	mux.HandleFunc("POST /v1/sessions/sess-42/commit", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Receipt string `json:"receipt"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		d.mu.Lock()
		d.committed = body.Receipt
		d.mu.Unlock()
	})
	mux.HandleFunc("DELETE /v1/sessions/sess-42", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
	})
	return mux
}

func TestInstallSessionStreamingRoundTrip(t *testing.T) {
	daemon := &fakeInstallerDaemon{}
	srv := httptest.NewServer(daemon.handler())
	defer srv.Close()

	client := NewInstallerClient(srv.URL)
	ctx := context.Background()

	session, err := client.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sess-42", session.ID())

	sink, err := session.OpenWrite(ctx)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("archive-bytes."), 4096)
	n, err := io.Copy(sink, bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), n)
	require.NoError(t, sink.Close())

	require.NoError(t, session.Fsync(ctx))
	require.NoError(t, session.Commit(ctx, "receipt-1"))
	require.NoError(t, session.Close())

	daemon.mu.Lock()
	defer daemon.mu.Unlock()
	assert.Equal(t, payload, daemon.written)
	assert.Equal(t, 1, daemon.fsyncs)
	assert.Equal(t, "receipt-1", daemon.committed)
	assert.True(t, daemon.closed)
}

func TestInstallSessionWriteFailureSurfacesOnClose(t *testing.T) {
	daemon := &fakeInstallerDaemon{failWrite: true}
	srv := httptest.NewServer(daemon.handler())
	defer srv.Close()

	client := NewInstallerClient(srv.URL)
	ctx := context.Background()

	session, err := client.CreateSession(ctx)
	require.NoError(t, err)
	defer session.Close()

	sink, err := session.OpenWrite(ctx)
	require.NoError(t, err)

	io.Copy(sink, bytes.NewReader([]byte("doomed")))
	assert.Error(t, sink.Close())
}

func TestInstallSessionCloseIsIdempotent(t *testing.T) {
	daemon := &fakeInstallerDaemon{}
	srv := httptest.NewServer(daemon.handler())
	defer srv.Close()

	session, err := NewInstallerClient(srv.URL).CreateSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
}

func TestUninstallSendsReceipt(t *testing.T) {
	var gotReceipt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/v1/packages/com.example.mail", r.URL.Path)
		var body struct {
			Receipt string `json:"receipt"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotReceipt = body.Receipt
	}))
	defer srv.Close()

	client := NewInstallerClient(srv.URL)
	require.NoError(t, client.Uninstall(context.Background(), "com.example.mail", "receipt-9"))
	assert.Equal(t, "receipt-9", gotReceipt)
}
