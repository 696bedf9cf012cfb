package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-community/challenges/internal/notify"
)

const (
	channelPrefix = "challenges:dashboard:"
	eventTTL      = 5 * time.Second
	// EventAnnouncement carries the engine's outbound posts, edits and retracts.
	EventAnnouncement = "announcement"
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub implements RedisPublisher and RedisSubscriber using Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for dashboard events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// PublishGuildEvent publishes an event to the guild's dashboard channel.
func (r *RedisPubSub) PublishGuildEvent(guildID string, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTTL)
	defer cancel()
	return r.client.Publish(ctx, channelPrefix+guildID, body).Err()
}

// SubscribeGuild subscribes to the guild's dashboard channel and its outbound announcement
// channel, and calls handler for each message. Announcements arrive as EventAnnouncement
// with the outbound message as payload. Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeGuild(guildID string, handler func(event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelPrefix+guildID, notify.GuildChannel(guildID))
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event, data, ok := decode(msg.Channel, msg.Payload)
				if !ok {
					r.logger.Debug("dropping malformed pubsub message", zap.String("channel", msg.Channel))
					continue
				}
				handler(event, data)
			}
		}
	}()
	cancel = func() { cancelCtx() }
	return cancel, nil
}

func decode(channel, payload string) (string, []byte, bool) {
	if strings.HasPrefix(channel, notify.ChannelPrefix) {
		if !json.Valid([]byte(payload)) {
			return "", nil, false
		}
		return EventAnnouncement, []byte(payload), true
	}
	var p redisPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil || p.Event == "" {
		return "", nil, false
	}
	return p.Event, p.Data, true
}
