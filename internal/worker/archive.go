package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/queue"
	"github.com/aura-community/challenges/pkg/storage"
)

// Uploader stores archived evidence objects.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

// SubmissionStore records archive keys on submissions.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, guildID string, id uuid.UUID) (*models.Submission, error)
	UpdateSubmission(ctx context.Context, guildID string, id uuid.UUID, fn func(*models.Submission) error) (*models.Submission, error)
}

// EvidenceArchiver copies the evidence of resolved submissions to S3: download each link,
// stream it to the evidence bucket, record the object keys on the submission.
type EvidenceArchiver struct {
	submissions SubmissionStore
	uploader    Uploader
	client      *http.Client
	logger      *zap.Logger
	maxSize     int64
	hosts       []string
}

// ArchiverOption configures an EvidenceArchiver.
type ArchiverOption func(*EvidenceArchiver)

// WithMaxEvidenceSize overrides storage.MaxEvidenceSize as the per-object limit.
func WithMaxEvidenceSize(n int64) ArchiverOption {
	return func(a *EvidenceArchiver) { a.maxSize = n }
}

// WithAllowedHosts limits downloads to the given hosts and their subdomains.
// No hosts means any host.
func WithAllowedHosts(hosts ...string) ArchiverOption {
	return func(a *EvidenceArchiver) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				a.hosts = append(a.hosts, h)
			}
		}
	}
}

// NewEvidenceArchiver creates an evidence archival processor.
func NewEvidenceArchiver(submissions SubmissionStore, uploader Uploader, client *http.Client, logger *zap.Logger, opts ...ArchiverOption) *EvidenceArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	a := &EvidenceArchiver{
		submissions: submissions,
		uploader:    uploader,
		client:      client,
		logger:      logger,
		maxSize:     storage.MaxEvidenceSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *EvidenceArchiver) allowed(u *url.URL) bool {
	if len(a.hosts) == 0 {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range a.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// errTooLarge aborts an upload whose body runs past the size limit.
var errTooLarge = errors.New("evidence exceeds size limit")

// cappedReader fails once more than n bytes have been read.
type cappedReader struct {
	r        io.Reader
	n        int64
	exceeded bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if int64(len(p)) > c.n+1 {
		p = p[:c.n+1]
	}
	n, err := c.r.Read(p)
	c.n -= int64(n)
	if c.n < 0 {
		c.exceeded = true
		return 0, errTooLarge
	}
	return n, err
}

// Process executes one evidence archival job.
func (a *EvidenceArchiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEvidenceArchive {
		return drop("unexpected job type %s", job.Type)
	}
	var payload queue.EvidenceArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return drop("unmarshal payload: %v", err)
	}

	sub, err := a.submissions.GetSubmission(ctx, payload.GuildID, payload.SubmissionID)
	if err != nil {
		return fmt.Errorf("load submission %s: %w", payload.SubmissionID, err)
	}
	if len(sub.ArchiveKeys) > 0 {
		a.logger.Info("evidence already archived", zap.String("submission_id", sub.ID.String()))
		return nil
	}

	var keys []string
	for i, ref := range payload.Evidence {
		u, err := url.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if !a.allowed(u) {
			a.logger.Warn("evidence host not allowed", zap.String("url", ref))
			continue
		}
		key, err := a.archive(ctx, payload, i, u)
		if err != nil {
			return err
		}
		if key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		a.logger.Info("no archivable evidence", zap.String("submission_id", sub.ID.String()))
		return nil
	}

	_, err = a.submissions.UpdateSubmission(ctx, payload.GuildID, payload.SubmissionID, func(s *models.Submission) error {
		s.ArchiveKeys = keys
		return nil
	})
	if err != nil {
		a.logger.Error("record archive keys failed", zap.Error(err), zap.String("submission_id", payload.SubmissionID.String()))
		return fmt.Errorf("update submission: %w", err)
	}
	a.logger.Info("evidence archived", zap.String("submission_id", payload.SubmissionID.String()), zap.Int("objects", len(keys)))
	return nil
}

// archive streams one evidence link to the bucket. Links that are gone or too large are
// skipped and return an empty key.
func (a *EvidenceArchiver) archive(ctx context.Context, payload queue.EvidenceArchivePayload, index int, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", drop("create request: %v", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("download status: %d", resp.StatusCode)
	default:
		a.logger.Warn("evidence unavailable", zap.String("url", u.String()), zap.Int("status", resp.StatusCode))
		return "", nil
	}
	if resp.ContentLength > a.maxSize {
		a.logger.Warn("evidence too large", zap.String("url", u.String()), zap.Int64("size", resp.ContentLength))
		return "", nil
	}

	filename := path.Base(u.Path)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = storage.ContentTypeForFilename(filename)
	}
	key := storage.EvidenceKey(payload.GuildID, payload.SubmissionID.String(), index, filename)

	// Stream upload to S3 (no full buffer); chunked bodies are only measured as they arrive
	body := &cappedReader{r: resp.Body, n: a.maxSize}
	if _, err := a.uploader.Upload(ctx, key, contentType, body, resp.ContentLength); err != nil {
		if body.exceeded {
			a.logger.Warn("evidence too large", zap.String("url", u.String()), zap.Int64("limit", a.maxSize))
			return "", nil
		}
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	return key, nil
}
