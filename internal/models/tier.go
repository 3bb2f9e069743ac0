package models

import "strings"

// Tier is an actor's trust classification. Higher tiers get wider quotas.
type Tier string

const (
	TierNew         Tier = "NEW"
	TierEstablished Tier = "ESTABLISHED"
	TierVeteran     Tier = "VETERAN"
	TierTrusted     Tier = "TRUSTED"

	// TierAdmin is a runtime override and is never persisted.
	TierAdmin Tier = "ADMIN"
)

// StoredTiers lists the tiers that may appear on a reputation record,
// strictest first.
var StoredTiers = []Tier{TierNew, TierEstablished, TierVeteran, TierTrusted}

func (t Tier) String() string {
	return string(t)
}

// IsStored reports whether t may be persisted on a reputation record.
func (t Tier) IsStored() bool {
	switch t {
	case TierNew, TierEstablished, TierVeteran, TierTrusted:
		return true
	default:
		return false
	}
}

// ParseTier accepts tier names case-insensitively.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if t.IsStored() || t == TierAdmin {
		return t, true
	}
	return "", false
}
