package scheduler

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/response"
)

// Handler exposes manual trigger firing to admins.
type Handler struct {
	scheduler *Scheduler
}

// NewHandler creates a scheduler handler.
func NewHandler(s *Scheduler) *Handler {
	return &Handler{scheduler: s}
}

// Fire handles POST /guilds/:guild/triggers/:category/:trigger.
func (h *Handler) Fire(c *gin.Context) {
	category := models.Category(c.Param("category"))
	kind := models.TriggerKind(c.Param("trigger"))
	result, err := h.scheduler.Fire(c.Request.Context(), c.Param("guild"), category, kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"category": category, "trigger": kind, "result": result})
}

// List handles GET /guilds/:guild/triggers.
func (h *Handler) List(c *gin.Context) {
	states := h.scheduler.States(c.Param("guild"))
	if states == nil {
		states = []models.TriggerState{}
	}
	response.OK(c, states)
}
