package types

import "strings"

// Tier is one of the three settings namespaces the configuration proxy
// routes between. Any other value is silently ignored by writes and maps
// to empty/sentinel results on reads.
type Tier string

const (
	TierSecure Tier = "secure"
	TierSystem Tier = "system"
	TierGlobal Tier = "global"
)

// ParseTier normalizes a wire tier name. ok is false for anything outside
// the closed set.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToLower(s)) {
	case TierSecure:
		return TierSecure, true
	case TierSystem:
		return TierSystem, true
	case TierGlobal:
		return TierGlobal, true
	}
	return "", false
}
