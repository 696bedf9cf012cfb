package stats

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/response"
)

// Reader returns member counters.
type Reader interface {
	GetStats(ctx context.Context, guildID, userID string) (*models.UserStats, error)
}

// Handler handles stats HTTP endpoints.
type Handler struct {
	stats Reader
}

// NewHandler creates a stats handler.
func NewHandler(stats Reader) *Handler {
	return &Handler{stats: stats}
}

// Get handles GET /guilds/:guild/users/:user/stats.
func (h *Handler) Get(c *gin.Context) {
	st, err := h.stats.GetStats(c.Request.Context(), c.Param("guild"), c.Param("user"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, st)
}
