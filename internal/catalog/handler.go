package catalog

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-community/challenges/internal/middleware"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/response"
)

// FeedbackRequest is the body for POST /guilds/:guild/templates/:id/feedback.
type FeedbackRequest struct {
	EventID   uuid.UUID        `json:"event_id"`
	Direction models.Direction `json:"direction" binding:"required,oneof=up down"`
}

// Handler handles catalog HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a catalog handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /guilds/:guild/templates?category=.
func (h *Handler) List(c *gin.Context) {
	category := models.Category(c.Query("category"))
	if category == "" {
		response.BadRequest(c, "category is required")
		return
	}
	list, err := h.svc.ListTemplates(c.Request.Context(), c.Param("guild"), category)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Feedback handles POST /guilds/:guild/templates/:id/feedback.
func (h *Handler) Feedback(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: direction must be up or down")
		return
	}
	res, err := h.svc.AdjustFeedback(c.Request.Context(), c.Param("guild"), templateID, req.EventID, middleware.UserID(c), req.Direction)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
