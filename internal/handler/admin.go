package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/aman-churiwal/ringhub-gateway/internal/ratelimit"
	"github.com/aman-churiwal/ringhub-gateway/internal/service"
	"github.com/gin-gonic/gin"
)

// ActorManager is the operator surface over actors.
type ActorManager interface {
	Report(ctx context.Context, actorID string) (*service.ActorReport, error)
	ApplyCooldown(ctx context.Context, actorID string, hours int) (time.Time, error)
	ClearViolations(ctx context.Context, actorID string) error
	ListFlagged(ctx context.Context) ([]models.Reputation, error)
}

type AdminHandler struct {
	actors ActorManager
}

func NewAdminHandler(actors ActorManager) *AdminHandler {
	return &AdminHandler{actors: actors}
}

func (h *AdminHandler) ListFlagged(c *gin.Context) {
	flagged, err := h.actors.ListFlagged(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actors": flagged,
		"count":  len(flagged),
	})
}

func (h *AdminHandler) GetActor(c *gin.Context) {
	report, err := h.actors.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) ApplyCooldown(c *gin.Context) {
	var req struct {
		Hours int `json:"hours" binding:"gte=0,lte=720"`
	}

	// an empty body means the default duration
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	actorID := c.Param("id")
	until, err := h.actors.ApplyCooldown(c.Request.Context(), actorID, req.Hours)
	if errors.Is(err, ratelimit.ErrInvalidCooldown) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actor_id":       actorID,
		"cooldown_until": until,
	})
}

func (h *AdminHandler) ClearViolations(c *gin.Context) {
	actorID := c.Param("id")
	if err := h.actors.ClearViolations(c.Request.Context(), actorID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"actor_id": actorID,
		"message":  "Violations cleared",
	})
}
