package handler

import (
	"errors"
	"net/http"

	"github.com/aman-churiwal/ringhub-gateway/internal/middleware"
	"github.com/aman-churiwal/ringhub-gateway/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// LimitsHandler lets an actor preview their quota without spending it.
type LimitsHandler struct {
	limiter middleware.Limiter
}

func NewLimitsHandler(limiter middleware.Limiter) *LimitsHandler {
	return &LimitsHandler{limiter: limiter}
}

func (h *LimitsHandler) Get(c *gin.Context) {
	actorID := c.GetString(middleware.ActorIDKey)
	action := c.Param("action")

	decision, err := h.limiter.CheckLimit(c.Request.Context(), actorID, action)
	if errors.Is(err, ratelimit.ErrUnknownAction) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	middleware.SetRateLimitHeaders(c, decision)
	c.JSON(http.StatusOK, decision)
}
