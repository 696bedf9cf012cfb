package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// AudienceChangeHandler is called when the number of dashboards connected to a guild changes.
type AudienceChangeHandler func(guildID string, count int)

// Hub maintains guild_id -> set of dashboard connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: every instance subscribes for the guilds it
// has clients for and broadcasts what it receives locally.
type Hub struct {
	// guildID -> map[clientID]*Client
	guilds     map[string]map[string]*Client
	subs       map[string]func() // cancel Redis subscription per guild
	mu         sync.RWMutex
	logger     *zap.Logger
	redis      RedisPublisher
	redisSub   RedisSubscriber
	onAudience AudienceChangeHandler
}

// RedisPublisher publishes dashboard events for every instance.
type RedisPublisher interface {
	PublishGuildEvent(guildID string, event string, payload []byte) error
}

// RedisSubscriber subscribes to a guild's dashboard and announcement channels.
type RedisSubscriber interface {
	SubscribeGuild(guildID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		guilds:   make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// SetAudienceChangeHandler sets the callback for dashboard count changes.
func (h *Hub) SetAudienceChangeHandler(fn AudienceChangeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onAudience = fn
}

// Register adds a client to its guild. Starts the Redis subscription for the guild on its first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.guilds[c.GuildID] == nil {
		h.guilds[c.GuildID] = make(map[string]*Client)
		if h.redisSub != nil {
			guildID := c.GuildID
			cancel, err := h.redisSub.SubscribeGuild(guildID, func(event string, payload []byte) {
				h.broadcastLocal(guildID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("guild subscription failed", zap.String("guild_id", guildID), zap.Error(err))
			} else {
				h.subs[guildID] = cancel
			}
		}
	}
	h.guilds[c.GuildID][c.ID] = c
	count := len(h.guilds[c.GuildID])
	onAudience := h.onAudience
	h.mu.Unlock()
	if onAudience != nil {
		onAudience(c.GuildID, count)
	}
	h.logger.Debug("dashboard connected", zap.String("client_id", c.ID), zap.String("guild_id", c.GuildID))
}

// Unregister removes a client. Cancels the Redis subscription when the guild's last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	var count int
	if m, ok := h.guilds[c.GuildID]; ok {
		delete(m, c.ID)
		count = len(m)
		if count == 0 {
			delete(h.guilds, c.GuildID)
			if cancel, ok := h.subs[c.GuildID]; ok {
				cancel()
				delete(h.subs, c.GuildID)
			}
		}
	}
	onAudience := h.onAudience
	h.mu.Unlock()
	if onAudience != nil {
		onAudience(c.GuildID, count)
	}
	h.logger.Debug("dashboard disconnected", zap.String("client_id", c.ID), zap.String("guild_id", c.GuildID))
}

// BroadcastToGuild delivers an event to every dashboard of a guild on all instances. With
// Redis configured the event is published only, and each instance's subscription performs
// the local broadcast once.
func (h *Hub) BroadcastToGuild(guildID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal dashboard event", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishGuildEvent(guildID, event, data); err != nil {
			h.logger.Warn("publish dashboard event", zap.String("guild_id", guildID), zap.Error(err))
		}
		return
	}
	h.broadcastLocal(guildID, event, json.RawMessage(data))
}

func (h *Hub) broadcastLocal(guildID string, event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.guilds[guildID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// AudienceCount returns the number of dashboards connected to a guild.
func (h *Hub) AudienceCount(guildID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.guilds[guildID])
}

// SendToClient sends a message to a single client of a guild.
func (h *Hub) SendToClient(guildID, clientID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	c, ok := h.guilds[guildID][clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
