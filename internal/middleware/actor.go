package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ActorIDKey    = "actor_id"
	ActorIDHeader = "X-Actor-ID"
)

// ActorIdentity requires the authenticated actor id that the hub's edge sets
// on every request.
func ActorIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(ActorIDHeader))
		if actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "X-Actor-ID header required",
			})
			return
		}

		c.Set(ActorIDKey, actorID)
		c.Next()
	}
}
