// Package host contains HTTP clients for the host-side collaborator
// daemons: the application catalog, the package installer, and the
// per-user session monitor. The bridge core only depends on the small
// interfaces these clients satisfy.
package host

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

func newRestyClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("User-Agent", "appbridge/1.0")
}
