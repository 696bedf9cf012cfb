package submissions

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/middleware"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/response"
)

// SubmitRequest is the body for POST /guilds/:guild/events/:id/submissions.
type SubmitRequest struct {
	Evidence []string `json:"evidence" binding:"required,min=1"`
	Notes    string   `json:"notes"`
}

// ReviewRequest is the body for POST /guilds/:guild/submissions/:id/review.
type ReviewRequest struct {
	Decision Decision `json:"decision" binding:"required,oneof=bronze silver gold reject"`
	Reason   string   `json:"reason"`
}

// Presigner issues download links for archived evidence.
type Presigner interface {
	GeneratePresignedDownloadURL(ctx context.Context, key string) (string, error)
}

// SubmissionView is a submission with links to its archived evidence.
type SubmissionView struct {
	*models.Submission
	ArchiveURLs []string `json:"archive_urls,omitempty"`
}

// Handler handles submission HTTP endpoints.
type Handler struct {
	service   *Service
	presigner Presigner
	logger    *zap.Logger
}

// NewHandler creates a submissions handler. presigner may be nil.
func NewHandler(service *Service, presigner Presigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, presigner: presigner, logger: logger}
}

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// Submit handles POST /guilds/:guild/events/:id/submissions.
func (h *Handler) Submit(c *gin.Context) {
	eventID, ok := parseID(c, "event")
	if !ok {
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: at least one evidence reference is required")
		return
	}
	sub, err := h.service.SubmitEvidence(c.Request.Context(), c.Param("guild"), eventID, middleware.UserID(c), req.Evidence, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// Review handles POST /guilds/:guild/submissions/:id/review (reviewer, admin).
func (h *Handler) Review(c *gin.Context) {
	id, ok := parseID(c, "submission")
	if !ok {
		return
	}
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: decision must be bronze, silver, gold or reject")
		return
	}
	res, err := h.service.ReviewSubmission(c.Request.Context(), c.Param("guild"), id, middleware.UserID(c), req.Decision, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Pending handles GET /guilds/:guild/submissions/pending (reviewer, admin).
func (h *Handler) Pending(c *gin.Context) {
	list, err := h.service.ListPending(c.Request.Context(), c.Param("guild"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if list == nil {
		list = []models.Submission{}
	}
	response.OK(c, list)
}

// Get handles GET /guilds/:guild/submissions/:id (reviewer, admin).
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c, "submission")
	if !ok {
		return
	}
	sub, err := h.service.Get(c.Request.Context(), c.Param("guild"), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	view := SubmissionView{Submission: sub}
	if h.presigner != nil {
		for _, key := range sub.ArchiveKeys {
			url, err := h.presigner.GeneratePresignedDownloadURL(c.Request.Context(), key)
			if err != nil {
				h.logger.Warn("presign evidence", zap.String("key", key), zap.Error(err))
				continue
			}
			view.ArchiveURLs = append(view.ArchiveURLs, url)
		}
	}
	response.OK(c, view)
}
