package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/shared/types"
)

func newHubServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(logging.NewNop())

	router := gin.New()
	router.GET("/v1/events", hub.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events"
}

func TestSubscriberReceivesBroadcast(t *testing.T) {
	hub, url := newHubServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription is registered asynchronously by the handler.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscribers) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(types.PackageEvent{
		Kind:        types.PackageAdded,
		PackageName: "com.example.mail",
		UID:         10061,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev types.PackageEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, types.PackageAdded, ev.Kind)
	assert.Equal(t, "com.example.mail", ev.PackageName)
	assert.Equal(t, 10061, ev.UID)
}

func TestBroadcastWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub(logging.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.Broadcast(types.PackageEvent{Kind: types.PackageUpdated, PackageName: "com.example.mail"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked with no subscribers")
	}
}

func TestUnsubscribeOnDisconnect(t *testing.T) {
	hub, url := newHubServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscribers) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSlowSubscriberSkipsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(logging.NewNop())
	events := hub.subscribe()
	defer hub.unsubscribe(events)

	// Overfill the subscriber buffer; extra events are skipped.
	for i := 0; i < subscriberBuffer*2; i++ {
		hub.Broadcast(types.PackageEvent{Kind: types.PackageAdded, PackageName: "com.example.mail"})
	}
	assert.Len(t, events, subscriberBuffer)
}
