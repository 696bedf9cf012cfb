package polls

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/middleware"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/response"
)

// OpenRequest is the body for POST /guilds/:guild/polls.
type OpenRequest struct {
	Category models.Category `json:"category" binding:"required"`
}

// VoteRequest is the body for POST /guilds/:guild/polls/:id/votes.
type VoteRequest struct {
	OptionID string `json:"option_id" binding:"required"`
}

// PollView is a poll with its current tally.
type PollView struct {
	*models.Poll
	Tally map[string]int `json:"tally"`
}

// Broadcaster pushes live updates to dashboards.
type Broadcaster interface {
	BroadcastToGuild(guildID, event string, payload interface{})
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	engine *Engine
	hub    Broadcaster
}

// NewHandler creates a polls handler. hub may be nil.
func NewHandler(engine *Engine, hub Broadcaster) *Handler {
	return &Handler{engine: engine, hub: hub}
}

func pollID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return uuid.Nil, false
	}
	return id, true
}

// Open handles POST /guilds/:guild/polls (admin).
func (h *Handler) Open(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: category is required")
		return
	}
	p, err := h.engine.OpenPoll(c.Request.Context(), c.Param("guild"), req.Category)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) && p != nil {
			response.ConflictWith(c, apperr.Message(err), PollView{Poll: p, Tally: p.Tally()})
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, PollView{Poll: p, Tally: p.Tally()})
}

// Get handles GET /guilds/:guild/polls/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := pollID(c)
	if !ok {
		return
	}
	p, err := h.engine.Get(c.Request.Context(), c.Param("guild"), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, PollView{Poll: p, Tally: p.Tally()})
}

// Vote handles POST /guilds/:guild/polls/:id/votes.
func (h *Handler) Vote(c *gin.Context) {
	id, ok := pollID(c)
	if !ok {
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: option_id is required")
		return
	}
	guildID := c.Param("guild")
	res, err := h.engine.CastVote(c.Request.Context(), guildID, id, middleware.UserID(c), req.OptionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Outcome != VoteUnchanged && h.hub != nil {
		h.hub.BroadcastToGuild(guildID, "poll_tally", gin.H{"poll_id": id, "tally": res.Tally})
	}
	response.OK(c, res)
}

// Resolve handles POST /guilds/:guild/polls/:id/resolve (admin). Also used to force-close.
func (h *Handler) Resolve(c *gin.Context) {
	id, ok := pollID(c)
	if !ok {
		return
	}
	guildID := c.Param("guild")
	p, err := h.engine.ResolvePoll(c.Request.Context(), guildID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.hub != nil {
		h.hub.BroadcastToGuild(guildID, "poll_closed", gin.H{"poll_id": id, "winner_option_id": p.WinnerOptionID})
	}
	response.OK(c, PollView{Poll: p, Tally: p.Tally()})
}
