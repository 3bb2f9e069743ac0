package ratelimit

import (
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
)

// DenialReason categorises a denied decision for display.
type DenialReason string

const (
	ReasonNone        DenialReason = ""
	ReasonQualityGate DenialReason = "quality_gate"
	ReasonCooldown    DenialReason = "cooldown"
	ReasonRateLimit   DenialReason = "rate_limit"
)

// AdminRemaining is reported for every window when an admin bypasses limits.
const AdminRemaining = 999

const (
	WindowHourly = "hourly"
	WindowDaily  = "daily"
	WindowWeekly = "weekly"
)

type Counts struct {
	Hourly int `json:"hourly"`
	Daily  int `json:"daily"`
	Weekly int `json:"weekly"`
}

func (c Counts) allZero() bool {
	return c.Hourly == 0 && c.Daily == 0 && c.Weekly == 0
}

type ResetTimes struct {
	Hourly time.Time `json:"hourly"`
	Daily  time.Time `json:"daily"`
	Weekly time.Time `json:"weekly"`
}

// Decision is computed fresh for every CheckLimit call and never cached.
type Decision struct {
	Allowed    bool         `json:"allowed"`
	Remaining  Counts       `json:"remaining"`
	ResetTimes ResetTimes   `json:"reset_times"`
	Tier       models.Tier  `json:"tier"`
	Reason     DenialReason `json:"reason,omitempty"`
	Message    string       `json:"message,omitempty"`
	Window     string       `json:"window,omitempty"`
}

// RetryAt is the earliest reset among the exhausted windows, or the cooldown
// or gate reset for those denials.
func (d Decision) RetryAt() time.Time {
	if d.Allowed {
		return time.Time{}
	}
	switch d.Window {
	case WindowDaily:
		return d.ResetTimes.Daily
	case WindowWeekly:
		return d.ResetTimes.Weekly
	default:
		return d.ResetTimes.Hourly
	}
}

// ClassifyDenial recovers the denial category from the response shape alone,
// for callers that only see remaining counts and reset times. A cooldown
// reports one instant for all three windows; a quality gate denial zeroes
// every window with a weekly reset more than two hours out; anything else is
// a quota denial attributed to the first exhausted window.
func ClassifyDenial(d Decision, now time.Time) (DenialReason, string) {
	if d.Allowed {
		return ReasonNone, ""
	}

	r := d.ResetTimes
	if d.Remaining.allZero() {
		if r.Hourly.UnixNano() == r.Daily.UnixNano() && r.Daily.UnixNano() == r.Weekly.UnixNano() {
			return ReasonCooldown, ""
		}
		if r.Weekly.After(now.Add(2 * time.Hour)) {
			return ReasonQualityGate, ""
		}
	}

	switch {
	case d.Remaining.Hourly == 0:
		return ReasonRateLimit, WindowHourly
	case d.Remaining.Daily == 0:
		return ReasonRateLimit, WindowDaily
	default:
		return ReasonRateLimit, WindowWeekly
	}
}
