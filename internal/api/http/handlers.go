// Package http exposes the bridge facade to the guest and the host
// webhook surface on one gin router. This is the only component reachable
// across the process boundary; everything here degrades to empty or
// sentinel results instead of surfacing errors to callers.
package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/containeros/appbridge/internal/domain/catalog"
	"github.com/containeros/appbridge/internal/domain/icons"
	"github.com/containeros/appbridge/internal/domain/installer"
	"github.com/containeros/appbridge/internal/domain/relay"
	"github.com/containeros/appbridge/internal/domain/settings"
	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/shared/types"
)

// HiddenPackagesProperty carries the default launcher's package name so
// guest-visible app lists can exclude it.
const HiddenPackagesProperty = "bridge.hidden_packages"

// Monitor is the slice of the session monitor the facade notifies
// directly (the relay handles package events on its own).
type Monitor interface {
	UserUnlocked(ctx context.Context, uid int) error
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	catalog   *catalog.Adapter
	installer *installer.Manager
	settings  *settings.Proxy
	props     *settings.Properties
	icons     *icons.Cache
	relay     *relay.Relay
	monitor   Monitor
	log       *logging.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(
	catalogAdapter *catalog.Adapter,
	installManager *installer.Manager,
	settingsProxy *settings.Proxy,
	props *settings.Properties,
	iconCache *icons.Cache,
	eventRelay *relay.Relay,
	monitor Monitor,
	log *logging.Logger,
) *Handlers {
	return &Handlers{
		catalog:   catalogAdapter,
		installer: installManager,
		settings:  settingsProxy,
		props:     props,
		icons:     iconCache,
		relay:     eventRelay,
		monitor:   monitor,
		log:       log,
	}
}

// Health handles the health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "appbridge",
	})
}

// GetProperty reads a process-wide ephemeral property.
func (h *Handlers) GetProperty(c *gin.Context) {
	key := c.Param("key")
	def := c.Query("default")
	c.JSON(http.StatusOK, gin.H{"value": h.props.Get(key, def)})
}

// SetProperty writes a process-wide ephemeral property.
func (h *Handlers) SetProperty(c *gin.Context) {
	var body struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	h.props.Set(c.Param("key"), body.Value)
	c.Status(http.StatusNoContent)
}

// ListApps enumerates launchable applications.
func (h *Handlers) ListApps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"apps": h.catalog.List(c.Request.Context())})
}

// GetApp returns one application record, 404 when the package is absent
// or not launchable (indistinguishable by contract).
func (h *Handlers) GetApp(c *gin.Context) {
	record, ok := h.catalog.Get(c.Request.Context(), c.Param("pkg"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no launchable app"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetAppName returns the display name, "" when unresolvable.
func (h *Handlers) GetAppName(c *gin.Context) {
	name := h.catalog.DisplayName(c.Request.Context(), c.Param("pkg"))
	c.JSON(http.StatusOK, gin.H{"name": name})
}

// LaunchApp starts an app. Best-effort; always 204.
func (h *Handlers) LaunchApp(c *gin.Context) {
	h.catalog.Launch(c.Request.Context(), c.Param("pkg"))
	c.Status(http.StatusNoContent)
}

// ResolveAndLaunch resolves a handler for an action/URI, starts it, and
// returns the handler package name ("" when nothing handles it).
func (h *Handlers) ResolveAndLaunch(c *gin.Context) {
	var body struct {
		Action string `json:"action"`
		URI    string `json:"uri"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	pkg := h.catalog.ResolveAndLaunch(c.Request.Context(), body.Action, body.URI)
	c.JSON(http.StatusOK, gin.H{"package_name": pkg})
}

// InstallApp submits an archive for installation. The status field
// reflects submission only.
func (h *Handlers) InstallApp(c *gin.Context) {
	var body struct {
		Path string `json:"path"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": types.StatusFailed})
		return
	}
	status := h.installer.Install(c.Request.Context(), body.Path)
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// RemoveApp submits an uninstall request.
func (h *Handlers) RemoveApp(c *gin.Context) {
	status := h.installer.Remove(c.Request.Context(), c.Param("pkg"))
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// SettingsGetString reads a string setting; unknown tiers and missing
// keys both read as "".
func (h *Handlers) SettingsGetString(c *gin.Context) {
	tier, _ := types.ParseTier(c.Param("tier"))
	value, _ := h.settings.GetString(tier, c.Param("key"))
	c.JSON(http.StatusOK, gin.H{"value": value})
}

// SettingsPutString writes a string setting; unknown tiers are silent
// no-ops.
func (h *Handlers) SettingsPutString(c *gin.Context) {
	var body struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	tier, _ := types.ParseTier(c.Param("tier"))
	h.settings.PutString(tier, c.Param("key"), body.Value)
	c.Status(http.StatusNoContent)
}

// SettingsGetInt reads an integer setting. Missing values, unknown tiers,
// and non-integer stored values all collapse to the legacy undefined
// sentinel on the wire.
func (h *Handlers) SettingsGetInt(c *gin.Context) {
	tier, _ := types.ParseTier(c.Param("tier"))
	value, ok := h.settings.GetInt(tier, c.Param("key"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"value": types.ErrUndefined})
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}

// SettingsPutInt writes an integer setting; unknown tiers are silent
// no-ops.
func (h *Handlers) SettingsPutInt(c *gin.Context) {
	var body struct {
		Value *int `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	tier, _ := types.ParseTier(c.Param("tier"))
	h.settings.PutInt(tier, c.Param("key"), *body.Value)
	c.Status(http.StatusNoContent)
}

// PackageEvent ingests one host lifecycle notification into the relay.
func (h *Handlers) PackageEvent(c *gin.Context) {
	var ev types.PackageEvent
	if err := c.ShouldBindJSON(&ev); err != nil || !ev.Kind.Valid() || ev.PackageName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}
	if !h.relay.Enqueue(ev) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "relay queue full"})
		return
	}
	c.Status(http.StatusAccepted)
}

// UserUnlocked primes the icon cache for every launchable app, notifies
// the session monitor, and publishes the default launcher exclusion.
func (h *Handlers) UserUnlocked(c *gin.Context) {
	uid, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	ctx := c.Request.Context()
	apps := h.catalog.List(ctx)
	for _, app := range apps {
		if err := h.icons.Refresh(ctx, app.PackageName); err != nil {
			h.log.Warn("icon prime failed",
				zap.String("package", app.PackageName), zap.Error(err))
		}
	}

	if err := h.monitor.UserUnlocked(ctx, uid); err != nil {
		h.log.Warn("user unlock notification failed",
			zap.Int("uid", uid), zap.Error(err))
	}

	if launcher := h.catalog.DefaultLauncher(ctx); launcher != "" {
		h.props.Set(HiddenPackagesProperty, launcher)
	}

	h.log.Info("user session primed",
		zap.Int("uid", uid), zap.Int("apps", len(apps)))
	c.Status(http.StatusNoContent)
}
