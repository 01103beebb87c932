package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/containeros/appbridge/internal/host"
	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/shared/types"
)

// Client is the slice of the host catalog the adapter needs.
type Client interface {
	ListInstalled(ctx context.Context) ([]host.InstalledApp, error)
	GetInstalled(ctx context.Context, pkg string) (*host.InstalledApp, error)
	LaunchTarget(ctx context.Context, pkg string) (*host.LaunchTarget, error)
	Launch(ctx context.Context, pkg string) error
	ResolveActivity(ctx context.Context, action, uri string) (string, error)
	StartActivity(ctx context.Context, action, uri string) error
	DefaultLauncher(ctx context.Context) (string, error)
}

// Adapter derives normalized AppRecords from the host catalog. It holds no
// state: every query re-resolves against the host, so results are never
// stale.
type Adapter struct {
	client Client
	log    *logging.Logger
}

// NewAdapter creates a catalog adapter.
func NewAdapter(client Client, log *logging.Logger) *Adapter {
	return &Adapter{client: client, log: log}
}

// List enumerates installed applications, keeping only those with a
// resolvable primary launch target.
func (a *Adapter) List(ctx context.Context) []types.AppRecord {
	result := []types.AppRecord{}

	apps, err := a.client.ListInstalled(ctx)
	if err != nil {
		a.log.Warn("catalog enumeration failed", zap.Error(err))
		return result
	}

	for _, app := range apps {
		target, err := a.client.LaunchTarget(ctx, app.PackageName)
		if err != nil {
			a.log.Warn("launch target resolution failed",
				zap.String("package", app.PackageName), zap.Error(err))
			continue
		}
		if target == nil {
			// Not launchable, excluded by contract.
			continue
		}
		result = append(result, makeRecord(app, target))
	}
	return result
}

// Get returns the record for one package, or nil/false both when the
// package is absent and when it has no launch target.
func (a *Adapter) Get(ctx context.Context, pkg string) (*types.AppRecord, bool) {
	app, err := a.client.GetInstalled(ctx, pkg)
	if err != nil {
		a.log.Warn("catalog lookup failed", zap.String("package", pkg), zap.Error(err))
		return nil, false
	}
	if app == nil {
		return nil, false
	}

	target, err := a.client.LaunchTarget(ctx, pkg)
	if err != nil {
		a.log.Warn("launch target resolution failed", zap.String("package", pkg), zap.Error(err))
		return nil, false
	}
	if target == nil {
		return nil, false
	}

	record := makeRecord(*app, target)
	return &record, true
}

// DisplayName resolves the display label for a package, "" when the
// package cannot be resolved.
func (a *Adapter) DisplayName(ctx context.Context, pkg string) string {
	app, err := a.client.GetInstalled(ctx, pkg)
	if err != nil || app == nil {
		return ""
	}
	return displayName(*app)
}

// Launch starts the package's primary launch target. Best-effort: an
// unresolvable package is a silent no-op.
func (a *Adapter) Launch(ctx context.Context, pkg string) {
	app, err := a.client.GetInstalled(ctx, pkg)
	if err != nil || app == nil {
		return
	}
	target, err := a.client.LaunchTarget(ctx, pkg)
	if err != nil || target == nil {
		return
	}
	if err := a.client.Launch(ctx, pkg); err != nil {
		a.log.Warn("launch failed", zap.String("package", pkg), zap.Error(err))
	}
}

// ResolveAndLaunch resolves a handler for the action and optional data
// URI, attempts to start it, and returns the handler's package name.
// "Nothing can handle this" is an empty result, not an error.
func (a *Adapter) ResolveAndLaunch(ctx context.Context, action, uri string) string {
	resolved, err := a.client.ResolveActivity(ctx, action, uri)
	if err != nil {
		a.log.Warn("activity resolution failed", zap.String("action", action), zap.Error(err))
		return ""
	}
	if err := a.client.StartActivity(ctx, action, uri); err != nil {
		a.log.Warn("activity start failed", zap.String("action", action), zap.Error(err))
	}
	return resolved
}

// DefaultLauncher returns the current default home/launcher package, or
// "" when none resolves.
func (a *Adapter) DefaultLauncher(ctx context.Context) string {
	pkg, err := a.client.DefaultLauncher(ctx)
	if err != nil {
		a.log.Warn("default launcher resolution failed", zap.Error(err))
		return ""
	}
	return pkg
}

func makeRecord(app host.InstalledApp, target *host.LaunchTarget) types.AppRecord {
	categories := make([]string, len(target.Categories))
	copy(categories, target.Categories)

	return types.AppRecord{
		Name:             displayName(app),
		PackageName:      app.PackageName,
		PrimaryAction:    target.Action,
		PrimaryDataURI:   target.DataURI,
		ComponentPackage: target.ComponentPackage,
		ComponentClass:   target.ComponentClass,
		Categories:       categories,
	}
}

// displayName prefers the localized label over the raw internal name.
func displayName(app host.InstalledApp) string {
	if app.Label != "" {
		return app.Label
	}
	return app.InternalName
}
