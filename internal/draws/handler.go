package draws

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aura-community/challenges/pkg/response"
)

// SnapshotRequest is the body for POST /guilds/:guild/draws.
type SnapshotRequest struct {
	WindowStart time.Time `json:"window_start" binding:"required"`
	WindowEnd   time.Time `json:"window_end" binding:"required"`
}

// Handler handles prize draw HTTP endpoints (admin).
type Handler struct {
	engine *Engine
}

// NewHandler creates a draws handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Snapshot handles POST /guilds/:guild/draws.
func (h *Handler) Snapshot(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: window_start and window_end are required")
		return
	}
	d, err := h.engine.SnapshotDraw(c.Request.Context(), c.Param("guild"), req.WindowStart, req.WindowEnd)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Get handles GET /guilds/:guild/draws/:id.
func (h *Handler) Get(c *gin.Context) {
	d, err := h.engine.Get(c.Request.Context(), c.Param("guild"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Roll handles POST /guilds/:guild/draws/:id/roll.
func (h *Handler) Roll(c *gin.Context) {
	d, err := h.engine.RollDraw(c.Request.Context(), c.Param("guild"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Announce handles POST /guilds/:guild/draws/:id/announce.
func (h *Handler) Announce(c *gin.Context) {
	d, err := h.engine.AnnounceDraw(c.Request.Context(), c.Param("guild"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}
