package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/pkg/queue"
)

// ChannelPrefix prefixes the per-guild Redis channel the gateway and dashboards subscribe to.
const ChannelPrefix = "challenges:outbound:"

const publishTimeout = 5 * time.Second

// Op is the action an Outbound message asks the gateway to perform.
type Op string

const (
	OpPost    Op = "post"
	OpEdit    Op = "edit"
	OpRetract Op = "retract"
)

// Outbound is the message published for the gateway.
type Outbound struct {
	Op        Op       `json:"op"`
	GuildID   string   `json:"guild_id"`
	ChannelID string   `json:"channel_id"`
	MessageID string   `json:"message_id"`
	Content   *Content `json:"content,omitempty"`
	At        int64    `json:"at"`
}

// GuildChannel returns the Redis channel of a guild.
func GuildChannel(guildID string) string {
	return ChannelPrefix + guildID
}

// DMQueue accepts direct message jobs.
type DMQueue interface {
	EnqueueDirectMessage(ctx context.Context, payload queue.DirectMessagePayload) error
}

// RedisSink publishes announcements on Redis pub/sub and queues direct messages for the
// worker. Message ids are assigned here so edits can be addressed before the gateway
// acknowledges the post.
type RedisSink struct {
	client *redis.Client
	dms    DMQueue
	logger *zap.Logger
}

// NewRedisSink creates a Redis-backed sink.
func NewRedisSink(client *redis.Client, dms DMQueue, logger *zap.Logger) *RedisSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSink{client: client, dms: dms, logger: logger}
}

func (s *RedisSink) publish(ctx context.Context, msg Outbound) error {
	msg.At = time.Now().Unix()
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbound: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.client.Publish(ctx, GuildChannel(msg.GuildID), body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Op, err)
	}
	return nil
}

// Post publishes a new announcement to channelID.
func (s *RedisSink) Post(ctx context.Context, guildID, channelID string, content Content) (models.MessageRef, error) {
	ref := models.MessageRef{ChannelID: channelID, MessageID: uuid.NewString()}
	err := s.publish(ctx, Outbound{Op: OpPost, GuildID: guildID, ChannelID: channelID, MessageID: ref.MessageID, Content: &content})
	if err != nil {
		return models.MessageRef{}, err
	}
	s.logger.Debug("announcement posted", zap.String("guild_id", guildID), zap.String("kind", string(content.Kind)), zap.String("message_id", ref.MessageID))
	return ref, nil
}

// Edit republishes the content of an earlier post.
func (s *RedisSink) Edit(ctx context.Context, guildID string, ref models.MessageRef, content Content) error {
	return s.publish(ctx, Outbound{Op: OpEdit, GuildID: guildID, ChannelID: ref.ChannelID, MessageID: ref.MessageID, Content: &content})
}

// Retract removes an earlier post.
func (s *RedisSink) Retract(ctx context.Context, guildID string, ref models.MessageRef) error {
	return s.publish(ctx, Outbound{Op: OpRetract, GuildID: guildID, ChannelID: ref.ChannelID, MessageID: ref.MessageID})
}

// DirectMessage queues a direct message; the worker delivers it with rate limiting and retries.
func (s *RedisSink) DirectMessage(ctx context.Context, guildID, userID string, content Content) error {
	body, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal dm content: %w", err)
	}
	return s.dms.EnqueueDirectMessage(ctx, queue.DirectMessagePayload{GuildID: guildID, UserID: userID, Content: body})
}
