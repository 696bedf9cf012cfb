package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aura-community/challenges/pkg/queue"
)

// DirectMessenger delivers direct message jobs to the gateway webhook, rate limited so a
// burst of review decisions cannot trip the platform's DM limits.
type DirectMessenger struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDirectMessenger creates a DM processor posting to url at most perSecond times a second.
func NewDirectMessenger(url string, perSecond float64, burst int, client *http.Client, logger *zap.Logger) *DirectMessenger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 1
	}
	return &DirectMessenger{url: url, client: client, limiter: rate.NewLimiter(rate.Limit(perSecond), burst), logger: logger}
}

// Process executes one direct message job.
func (m *DirectMessenger) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeDirectMessage {
		return drop("unexpected job type %s", job.Type)
	}
	var payload queue.DirectMessagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return drop("unmarshal payload: %v", err)
	}
	if payload.UserID == "" {
		return drop("direct message without user")
	}
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return drop("marshal request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return drop("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver dm: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		m.logger.Debug("direct message delivered", zap.String("guild_id", payload.GuildID), zap.String("user_id", payload.UserID))
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("gateway status: %d", resp.StatusCode)
	default:
		// closed DMs, unknown members
		return drop("gateway refused dm to %s: %d", payload.UserID, resp.StatusCode)
	}
}
