// Package settings is the configuration proxy: it routes namespaced
// key-value operations to the tiered persistent store and owns the
// in-process ephemeral property store. It holds no business logic of its
// own beyond tier validation.
package settings

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/shared/types"
)

// TierStore is the persistent backend the proxy routes to.
type TierStore interface {
	Get(tier types.Tier, key string) (string, bool, error)
	Put(tier types.Tier, key, value string) error
}

// Proxy routes settings operations by tier. Unknown tiers are silent
// no-ops for writes and empty/absent results for reads.
type Proxy struct {
	store TierStore
	log   *logging.Logger
}

// NewProxy creates a configuration proxy over the given store.
func NewProxy(store TierStore, log *logging.Logger) *Proxy {
	return &Proxy{store: store, log: log}
}

// GetString returns the stored string for (tier, key). ok is false when
// the tier is unknown, no value is stored, or the store failed.
func (p *Proxy) GetString(tier types.Tier, key string) (string, bool) {
	if !validTier(tier) {
		return "", false
	}
	value, ok, err := p.store.Get(tier, key)
	if err != nil {
		p.log.Warn("settings read failed",
			zap.String("tier", string(tier)), zap.String("key", key), zap.Error(err))
		return "", false
	}
	return value, ok
}

// PutString stores a string under (tier, key). Unknown tiers mutate
// nothing.
func (p *Proxy) PutString(tier types.Tier, key, value string) {
	if !validTier(tier) {
		return
	}
	if err := p.store.Put(tier, key, value); err != nil {
		p.log.Warn("settings write failed",
			zap.String("tier", string(tier)), zap.String("key", key), zap.Error(err))
	}
}

// GetInt returns the stored integer for (tier, key). ok is false when the
// tier is unknown, no value is stored, or the stored value is not an
// integer. Callers needing the legacy wire sentinel collapse !ok to
// types.ErrUndefined at the boundary.
func (p *Proxy) GetInt(tier types.Tier, key string) (int, bool) {
	raw, ok := p.GetString(tier, key)
	if !ok {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// PutInt stores an integer under (tier, key). Unknown tiers mutate
// nothing.
func (p *Proxy) PutInt(tier types.Tier, key string, value int) {
	p.PutString(tier, key, strconv.Itoa(value))
}

func validTier(tier types.Tier) bool {
	switch tier {
	case types.TierSecure, types.TierSystem, types.TierGlobal:
		return true
	}
	return false
}
