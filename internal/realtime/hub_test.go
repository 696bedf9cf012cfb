package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/notify"
)

type fakeBus struct {
	mu        sync.Mutex
	handlers  map[string]func(event string, payload []byte)
	published []string
	cancelled []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]func(string, []byte))}
}

func (b *fakeBus) PublishGuildEvent(guildID string, event string, payload []byte) error {
	b.mu.Lock()
	h := b.handlers[guildID]
	b.published = append(b.published, guildID+":"+event)
	b.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (b *fakeBus) SubscribeGuild(guildID string, handler func(event string, payload []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[guildID] = handler
	return func() {
		b.mu.Lock()
		delete(b.handlers, guildID)
		b.cancelled = append(b.cancelled, guildID)
		b.mu.Unlock()
	}, nil
}

func newClient(h *Hub, id, guild string) *Client {
	return &Client{ID: id, GuildID: guild, hub: h, send: make(chan WSMessage, 8)}
}

func TestHubBroadcastLocal(t *testing.T) {
	h := NewHub(nil, nil, nil)
	a := newClient(h, "a", "g1")
	b := newClient(h, "b", "g2")
	h.Register(a)
	h.Register(b)

	h.BroadcastToGuild("g1", "poll_tally", map[string]int{"x": 1})

	require.Len(t, a.send, 1)
	msg := <-a.send
	assert.Equal(t, "poll_tally", msg.Event)
	assert.JSONEq(t, `{"x":1}`, string(msg.Data))
	assert.Empty(t, b.send)
}

func TestHubBroadcastThroughRedis(t *testing.T) {
	bus := newFakeBus()
	h := NewHub(nil, bus, bus)
	a := newClient(h, "a", "g1")
	h.Register(a)

	h.BroadcastToGuild("g1", "poll_closed", map[string]string{"poll_id": "p1"})

	assert.Equal(t, []string{"g1:poll_closed"}, bus.published)
	require.Len(t, a.send, 1, "delivered once, by the subscription")

	h.Unregister(a)
	assert.Equal(t, []string{"g1"}, bus.cancelled)
	assert.Zero(t, h.AudienceCount("g1"))
}

func TestHubAudienceChanges(t *testing.T) {
	h := NewHub(nil, nil, nil)
	var counts []int
	h.SetAudienceChangeHandler(func(guildID string, count int) {
		assert.Equal(t, "g1", guildID)
		counts = append(counts, count)
	})
	a := newClient(h, "a", "g1")
	b := newClient(h, "b", "g1")

	h.Register(a)
	h.Register(b)
	h.Unregister(a)
	h.Unregister(b)

	assert.Equal(t, []int{1, 2, 1, 0}, counts)
}

func TestHubSendToClient(t *testing.T) {
	h := NewHub(nil, nil, nil)
	a := newClient(h, "a", "g1")
	b := newClient(h, "b", "g1")
	h.Register(a)
	h.Register(b)

	h.SendToClient("g1", "b", "audience_count", map[string]int{"count": 2})
	h.SendToClient("g1", "missing", "audience_count", nil)

	assert.Empty(t, a.send)
	require.Len(t, b.send, 1)
}

func TestDecode(t *testing.T) {
	out, _ := json.Marshal(notify.Outbound{Op: notify.OpPost, GuildID: "g1", ChannelID: "ann", MessageID: "m1"})
	event, data, ok := decode(notify.GuildChannel("g1"), string(out))
	require.True(t, ok)
	assert.Equal(t, EventAnnouncement, event)
	assert.JSONEq(t, string(out), string(data))

	body, _ := json.Marshal(redisPayload{Event: "poll_tally", Data: json.RawMessage(`{"a":1}`)})
	event, data, ok = decode(channelPrefix+"g1", string(body))
	require.True(t, ok)
	assert.Equal(t, "poll_tally", event)
	assert.JSONEq(t, `{"a":1}`, string(data))

	_, _, ok = decode(channelPrefix+"g1", "not json")
	assert.False(t, ok)
	_, _, ok = decode(notify.GuildChannel("g1"), "{")
	assert.False(t, ok)
}
