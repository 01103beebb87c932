package host

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// InstalledApp is one application entry as reported by the host catalog.
type InstalledApp struct {
	PackageName  string `json:"package_name"`
	InternalName string `json:"internal_name"`
	Label        string `json:"label"`
	UID          int    `json:"uid"`
}

// LaunchTarget is the resolved primary launch descriptor for a package.
type LaunchTarget struct {
	Action           string   `json:"action"`
	DataURI          string   `json:"data_uri"`
	ComponentPackage string   `json:"component_package"`
	ComponentClass   string   `json:"component_class"`
	Categories       []string `json:"categories"`
}

// CatalogClient talks to the host application catalog daemon.
type CatalogClient struct {
	http *resty.Client
}

// NewCatalogClient creates a catalog client for the given base URL.
func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{http: newRestyClient(baseURL)}
}

// ListInstalled returns every installed application, launchable or not.
func (c *CatalogClient) ListInstalled(ctx context.Context) ([]InstalledApp, error) {
	var apps []InstalledApp
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&apps).
		Get("/v1/packages")
	if err != nil {
		return nil, fmt.Errorf("catalog list: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog list: status %d", resp.StatusCode())
	}
	return apps, nil
}

// GetInstalled returns one installed application, or nil if the package
// does not exist.
func (c *CatalogClient) GetInstalled(ctx context.Context, pkg string) (*InstalledApp, error) {
	var app InstalledApp
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&app).
		Get("/v1/packages/" + pkg)
	if err != nil {
		return nil, fmt.Errorf("catalog get %s: %w", pkg, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog get %s: status %d", pkg, resp.StatusCode())
	}
	return &app, nil
}

// LaunchTarget resolves the primary launch descriptor for a package.
// Returns nil when the package has none; that is not an error.
func (c *CatalogClient) LaunchTarget(ctx context.Context, pkg string) (*LaunchTarget, error) {
	var target LaunchTarget
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&target).
		Get("/v1/packages/" + pkg + "/launch-target")
	if err != nil {
		return nil, fmt.Errorf("catalog launch target %s: %w", pkg, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog launch target %s: status %d", pkg, resp.StatusCode())
	}
	return &target, nil
}

// Icon fetches the rendered icon bytes for a package. Returns nil bytes
// when the package has no resolvable icon.
func (c *CatalogClient) Icon(ctx context.Context, pkg string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/v1/packages/" + pkg + "/icon")
	if err != nil {
		return nil, fmt.Errorf("catalog icon %s: %w", pkg, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog icon %s: status %d", pkg, resp.StatusCode())
	}
	return resp.Body(), nil
}

// Launch asks the host to start the package's primary launch target.
func (c *CatalogClient) Launch(ctx context.Context, pkg string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post("/v1/packages/" + pkg + "/launch")
	if err != nil {
		return fmt.Errorf("catalog launch %s: %w", pkg, err)
	}
	if resp.IsError() {
		return fmt.Errorf("catalog launch %s: status %d", pkg, resp.StatusCode())
	}
	return nil
}

// ResolveActivity resolves which package handles the given action and
// optional data URI. Returns "" when nothing handles it.
func (c *CatalogClient) ResolveActivity(ctx context.Context, action, uri string) (string, error) {
	var result struct {
		PackageName string `json:"package_name"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("action", action).
		SetQueryParam("uri", uri).
		SetResult(&result).
		Get("/v1/resolve")
	if err != nil {
		return "", fmt.Errorf("catalog resolve: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", nil
	}
	if resp.IsError() {
		return "", fmt.Errorf("catalog resolve: status %d", resp.StatusCode())
	}
	return result.PackageName, nil
}

// StartActivity asks the host to start whatever handles the action/URI.
// A host-side "nothing can handle this" is reported as http.StatusNotFound
// and swallowed here, matching the best-effort launch contract.
func (c *CatalogClient) StartActivity(ctx context.Context, action, uri string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"action": action, "uri": uri}).
		Post("/v1/start")
	if err != nil {
		return fmt.Errorf("catalog start: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("catalog start: status %d", resp.StatusCode())
	}
	return nil
}

// DefaultLauncher returns the package name of the current default
// home/launcher application, or "" when none is set.
func (c *CatalogClient) DefaultLauncher(ctx context.Context) (string, error) {
	var result struct {
		PackageName string `json:"package_name"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/v1/default-launcher")
	if err != nil {
		return "", fmt.Errorf("catalog default launcher: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", nil
	}
	if resp.IsError() {
		return "", fmt.Errorf("catalog default launcher: status %d", resp.StatusCode())
	}
	return result.PackageName, nil
}
