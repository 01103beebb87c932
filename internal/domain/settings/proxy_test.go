package settings

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/containeros/appbridge/internal/infrastructure/logging"
	"github.com/containeros/appbridge/internal/shared/types"
)

func newTestProxy(t *testing.T) (*Proxy, *Store) {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewProxy(store, logging.NewNop()), store
}

func TestPutGetString(t *testing.T) {
	p, _ := newTestProxy(t)

	p.PutString(types.TierSystem, "locale", "en_US")
	value, ok := p.GetString(types.TierSystem, "locale")
	require.True(t, ok)
	require.Equal(t, "en_US", value)

	// Tiers are separate namespaces.
	_, ok = p.GetString(types.TierGlobal, "locale")
	require.False(t, ok)
}

func TestGetStringMissing(t *testing.T) {
	p, _ := newTestProxy(t)

	value, ok := p.GetString(types.TierSecure, "unset")
	require.False(t, ok)
	require.Equal(t, "", value)
}

func TestPutGetInt(t *testing.T) {
	p, _ := newTestProxy(t)

	p.PutInt(types.TierGlobal, "volume", 7)
	value, ok := p.GetInt(types.TierGlobal, "volume")
	require.True(t, ok)
	require.Equal(t, 7, value)
}

func TestGetIntMissingIsNotOK(t *testing.T) {
	p, _ := newTestProxy(t)

	_, ok := p.GetInt(types.TierSystem, "unset")
	require.False(t, ok)
}

func TestGetIntNonNumeric(t *testing.T) {
	p, _ := newTestProxy(t)

	p.PutString(types.TierSystem, "locale", "en_US")
	_, ok := p.GetInt(types.TierSystem, "locale")
	require.False(t, ok)
}

func TestUnknownTierWriteMutatesNothing(t *testing.T) {
	p, store := newTestProxy(t)

	p.PutString(types.Tier("cosmic"), "key", "value")
	p.PutInt(types.Tier("cosmic"), "key", 42)

	for _, tier := range []types.Tier{types.TierSecure, types.TierSystem, types.TierGlobal} {
		_, ok, err := store.Get(tier, "key")
		require.NoError(t, err)
		require.False(t, ok, "tier %s mutated by unknown-tier write", tier)
	}
}

func TestUnknownTierReads(t *testing.T) {
	p, _ := newTestProxy(t)

	value, ok := p.GetString(types.Tier("cosmic"), "key")
	require.False(t, ok)
	require.Equal(t, "", value)

	_, ok = p.GetInt(types.Tier("cosmic"), "key")
	require.False(t, ok)
}

func TestOverwrite(t *testing.T) {
	p, _ := newTestProxy(t)

	p.PutInt(types.TierGlobal, "volume", 7)
	p.PutInt(types.TierGlobal, "volume", 11)
	value, ok := p.GetInt(types.TierGlobal, "volume")
	require.True(t, ok)
	require.Equal(t, 11, value)
}

func TestNegativeStoredValueRoundTrips(t *testing.T) {
	// -1 is a legitimate stored value; the proxy's ok flag is what
	// distinguishes it from "undefined".
	p, _ := newTestProxy(t)

	p.PutInt(types.TierSecure, "offset", -1)
	value, ok := p.GetInt(types.TierSecure, "offset")
	require.True(t, ok)
	require.Equal(t, -1, value)
}

func TestProperties(t *testing.T) {
	props := NewProperties()

	require.Equal(t, "fallback", props.Get("bridge.mode", "fallback"))
	props.Set("bridge.mode", "active")
	require.Equal(t, "active", props.Get("bridge.mode", "fallback"))
}
