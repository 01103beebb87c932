package host

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/packages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]InstalledApp{
			{PackageName: "com.example.mail", InternalName: "mail", Label: "Mail", UID: 10061},
		})
	})
	mux.HandleFunc("GET /v1/packages/com.example.mail", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(InstalledApp{
			PackageName: "com.example.mail", InternalName: "mail", Label: "Mail", UID: 10061,
		})
	})
	mux.HandleFunc("GET /v1/packages/com.example.mail/launch-target", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(LaunchTarget{
			Action:           "android.intent.action.MAIN",
			ComponentPackage: "com.example.mail",
			ComponentClass:   "com.example.mail.Inbox",
		})
	})
	mux.HandleFunc("GET /v1/resolve", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "android.intent.action.VIEW" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"package_name": "com.example.mail"})
	})
	mux.HandleFunc("POST /v1/start", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCatalogGetInstalled(t *testing.T) {
	client := NewCatalogClient(catalogDaemon(t).URL)
	ctx := context.Background()

	app, err := client.GetInstalled(ctx, "com.example.mail")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, "Mail", app.Label)
	assert.Equal(t, 10061, app.UID)

	// Absent package is nil, not an error.
	app, err = client.GetInstalled(ctx, "com.example.ghost")
	require.NoError(t, err)
	assert.Nil(t, app)
}

func TestCatalogLaunchTargetAbsentIsNil(t *testing.T) {
	client := NewCatalogClient(catalogDaemon(t).URL)
	ctx := context.Background()

	target, err := client.LaunchTarget(ctx, "com.example.mail")
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, "com.example.mail.Inbox", target.ComponentClass)

	target, err = client.LaunchTarget(ctx, "com.example.ghost")
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestCatalogResolveActivity(t *testing.T) {
	client := NewCatalogClient(catalogDaemon(t).URL)
	ctx := context.Background()

	pkg, err := client.ResolveActivity(ctx, "android.intent.action.VIEW", "mailto:x@y")
	require.NoError(t, err)
	assert.Equal(t, "com.example.mail", pkg)

	// Unhandled action resolves to "", not an error.
	pkg, err = client.ResolveActivity(ctx, "android.intent.action.DIAL", "")
	require.NoError(t, err)
	assert.Equal(t, "", pkg)
}

func TestCatalogStartActivitySwallowsNoHandler(t *testing.T) {
	client := NewCatalogClient(catalogDaemon(t).URL)
	assert.NoError(t, client.StartActivity(context.Background(), "android.intent.action.DIAL", ""))
}

func TestCatalogIconAbsentIsNil(t *testing.T) {
	client := NewCatalogClient(catalogDaemon(t).URL)
	data, err := client.Icon(context.Background(), "com.example.ghost")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestMonitorBreakerTripsOnRepeatedFailure(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewMonitorClient(srv.URL)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.Error(t, client.PackageStateChanged(ctx, 0, "com.example.mail", 1))
	}

	// Breaker is open now; further calls fail without reaching the host.
	assert.Error(t, client.UserUnlocked(ctx, 0))
	assert.Equal(t, 3, hits)
}
