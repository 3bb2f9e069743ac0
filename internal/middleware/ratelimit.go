package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// Limiter decides whether an actor may perform an action.
type Limiter interface {
	CheckLimit(ctx context.Context, actorID, action string) (ratelimit.Decision, error)
}

// Response headers describing the decision
const (
	HeaderTier            = "X-RateLimit-Tier"
	HeaderRemainingHourly = "X-RateLimit-Remaining-Hourly"
	HeaderRemainingDaily  = "X-RateLimit-Remaining-Daily"
	HeaderRemainingWeekly = "X-RateLimit-Remaining-Weekly"
	HeaderResetHourly     = "X-RateLimit-Reset-Hourly"
	HeaderResetDaily      = "X-RateLimit-Reset-Daily"
	HeaderResetWeekly     = "X-RateLimit-Reset-Weekly"
	HeaderDenial          = "X-RateLimit-Denial"
)

// ForkGuard runs the limiter for action before the request reaches the hub.
// Denials end the request with 429. Retry-After is measured against clk so it
// agrees with the reset times the limiter computed.
func ForkGuard(limiter Limiter, action string, clk clock.Clock, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetString(ActorIDKey)

		decision, err := limiter.CheckLimit(c.Request.Context(), actorID, action)
		if err != nil {
			logger.Error("rate limit check failed", "actor_id", actorID, "action", action, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Rate limit check failed",
			})
			return
		}

		SetRateLimitHeaders(c, decision)

		if !decision.Allowed {
			retryAt := decision.RetryAt()
			retryAfter := int(retryAt.Sub(clk.Now()).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header(HeaderDenial, string(decision.Reason))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"reason":      decision.Reason,
				"message":     decision.Message,
				"window":      decision.Window,
				"tier":        decision.Tier,
				"remaining":   decision.Remaining,
				"reset_times": decision.ResetTimes,
				"retry_after": retryAt.Unix(),
			})
			return
		}

		c.Next()
	}
}

// SetRateLimitHeaders surfaces remaining counts, reset times and tier
// verbatim.
func SetRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	c.Header(HeaderTier, d.Tier.String())
	c.Header(HeaderRemainingHourly, strconv.Itoa(d.Remaining.Hourly))
	c.Header(HeaderRemainingDaily, strconv.Itoa(d.Remaining.Daily))
	c.Header(HeaderRemainingWeekly, strconv.Itoa(d.Remaining.Weekly))
	c.Header(HeaderResetHourly, strconv.FormatInt(d.ResetTimes.Hourly.Unix(), 10))
	c.Header(HeaderResetDaily, strconv.FormatInt(d.ResetTimes.Daily.Unix(), 10))
	c.Header(HeaderResetWeekly, strconv.FormatInt(d.ResetTimes.Weekly.Unix(), 10))
}
