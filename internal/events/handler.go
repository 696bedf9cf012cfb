package events

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/response"
)

// PollReader loads the poll an event is started from.
type PollReader interface {
	Get(ctx context.Context, guildID string, pollID uuid.UUID) (*models.Poll, error)
}

// EventView is an event with its derived status.
type EventView struct {
	*models.ChallengeEvent
	Status models.EventStatus `json:"status"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	lifecycle *Lifecycle
	polls     PollReader
}

// NewHandler creates an events handler.
func NewHandler(lifecycle *Lifecycle, polls PollReader) *Handler {
	return &Handler{lifecycle: lifecycle, polls: polls}
}

func (h *Handler) view(e *models.ChallengeEvent) EventView {
	return EventView{ChallengeEvent: e, Status: e.Status(h.lifecycle.now())}
}

// Start handles POST /guilds/:guild/polls/:id/event (admin).
func (h *Handler) Start(c *gin.Context) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return
	}
	p, err := h.polls.Get(c.Request.Context(), c.Param("guild"), pollID)
	if err != nil {
		response.Error(c, err)
		return
	}
	e, err := h.lifecycle.StartEvent(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.view(e))
}

// Get handles GET /guilds/:guild/events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.lifecycle.Get(c.Request.Context(), c.Param("guild"), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, h.view(e))
}

// List handles GET /guilds/:guild/events?from=&to= (RFC 3339, default the last 30 days).
func (h *Handler) List(c *gin.Context) {
	to := h.lifecycle.now()
	from := to.Add(-30 * 24 * time.Hour)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "invalid from")
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "invalid to")
			return
		}
		to = t
	}
	list, err := h.lifecycle.ListStarted(c.Request.Context(), c.Param("guild"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]EventView, 0, len(list))
	for i := range list {
		views = append(views, h.view(&list[i]))
	}
	response.OK(c, views)
}
