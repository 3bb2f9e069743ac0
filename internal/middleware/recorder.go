package middleware

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Recorder stores an action the hub accepted.
type Recorder interface {
	RecordAction(ctx context.Context, actorID, action string, metadata map[string]any) error
}

// RecordOnSuccess records action once the rest of the chain answered with a
// 2xx. The record is written before the handler chain returns so the next
// check by the same actor already sees it.
func RecordOnSuccess(recorder Recorder, action string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if c.IsAborted() || status < 200 || status >= 300 {
			return
		}

		actorID := c.GetString(ActorIDKey)
		metadata := map[string]any{
			"request_id": c.GetString(RequestIDKey),
		}
		if slug := c.Param("slug"); slug != "" {
			metadata["parent"] = slug
		}

		// the client may already be gone; the hub has committed the action
		ctx := context.WithoutCancel(c.Request.Context())
		if err := recorder.RecordAction(ctx, actorID, action, metadata); err != nil {
			logger.Error("failed to record action", "actor_id", actorID, "action", action, "error", err)
		}
	}
}
