// Package notifytest provides an in-memory notify.Sink for tests.
package notifytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/internal/notify"
)

// Message is one recorded Post, Edit or DirectMessage.
type Message struct {
	GuildID string
	Ref     models.MessageRef
	UserID  string
	Content notify.Content
}

// Recorder records every call. Set the Fail* fields to make an operation return an error.
type Recorder struct {
	mu        sync.Mutex
	seq       int
	Posts     []Message
	Edits     []Message
	Retracted []models.MessageRef
	DMs       []Message

	FailPost    error
	FailEdit    error
	FailRetract error
	FailDM      error
}

var _ notify.Sink = (*Recorder)(nil)

// New creates a Recorder.
func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Post(_ context.Context, guildID, channelID string, content notify.Content) (models.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailPost != nil {
		return models.MessageRef{}, r.FailPost
	}
	r.seq++
	ref := models.MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", r.seq)}
	r.Posts = append(r.Posts, Message{GuildID: guildID, Ref: ref, Content: content})
	return ref, nil
}

func (r *Recorder) Edit(_ context.Context, guildID string, ref models.MessageRef, content notify.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailEdit != nil {
		return r.FailEdit
	}
	r.Edits = append(r.Edits, Message{GuildID: guildID, Ref: ref, Content: content})
	return nil
}

func (r *Recorder) Retract(_ context.Context, _ string, ref models.MessageRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailRetract != nil {
		return r.FailRetract
	}
	r.Retracted = append(r.Retracted, ref)
	return nil
}

func (r *Recorder) DirectMessage(_ context.Context, guildID, userID string, content notify.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailDM != nil {
		return r.FailDM
	}
	r.DMs = append(r.DMs, Message{GuildID: guildID, UserID: userID, Content: content})
	return nil
}

// PostsOf returns recorded posts of a kind.
func (r *Recorder) PostsOf(kind notify.Kind) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.Posts {
		if m.Content.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}
