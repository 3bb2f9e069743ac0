package ratelimit

import (
	"fmt"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
)

// MaxHourly is the global burst cap. No tier may be configured above it; it
// also bounds the damage of the unlocked check-then-record race.
const MaxHourly = 2

const (
	HourWindow  = time.Hour
	DayWindow   = 24 * time.Hour
	WeekWindow  = 7 * 24 * time.Hour
	MonthWindow = 30 * 24 * time.Hour
)

// WindowCaps are the per-window quotas of one tier.
type WindowCaps struct {
	Hourly int `json:"hourly" toml:"hourly"`
	Daily  int `json:"daily" toml:"daily"`
	Weekly int `json:"weekly" toml:"weekly"`
}

// TierLimits maps every stored tier to its caps.
type TierLimits map[models.Tier]WindowCaps

// DefaultForkLimits returns the fork quotas, strictest tier first.
func DefaultForkLimits() TierLimits {
	return TierLimits{
		models.TierNew:         {Hourly: 1, Daily: 3, Weekly: 10},
		models.TierEstablished: {Hourly: 2, Daily: 5, Weekly: 20},
		models.TierVeteran:     {Hourly: 2, Daily: 10, Weekly: 35},
		models.TierTrusted:     {Hourly: 2, Daily: 15, Weekly: 50},
	}
}

// Normalize returns a copy with hourly caps clamped to MaxHourly and checks
// that every stored tier is present with hourly <= daily <= weekly.
func (l TierLimits) Normalize() (TierLimits, error) {
	out := make(TierLimits, len(l))
	for tier, caps := range l {
		if !tier.IsStored() {
			return nil, fmt.Errorf("limits configured for non-stored tier %q", tier)
		}
		if caps.Hourly < 0 || caps.Daily < 0 || caps.Weekly < 0 {
			return nil, fmt.Errorf("tier %s: caps must not be negative", tier)
		}
		if caps.Hourly > MaxHourly {
			caps.Hourly = MaxHourly
		}
		if caps.Hourly > caps.Daily || caps.Daily > caps.Weekly {
			return nil, fmt.Errorf("tier %s: caps must widen hourly <= daily <= weekly, got %d/%d/%d",
				tier, caps.Hourly, caps.Daily, caps.Weekly)
		}
		out[tier] = caps
	}

	for _, tier := range models.StoredTiers {
		if _, ok := out[tier]; !ok {
			return nil, fmt.Errorf("missing limits for tier %s", tier)
		}
	}

	return out, nil
}

// For returns the caps of tier. Anything without its own row gets the
// strictest caps.
func (l TierLimits) For(tier models.Tier) WindowCaps {
	if caps, ok := l[tier]; ok {
		return caps
	}
	return l[models.TierNew]
}
