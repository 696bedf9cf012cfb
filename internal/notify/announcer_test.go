package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/memstore"
	"github.com/aura-community/challenges/internal/models"
	"github.com/aura-community/challenges/internal/notify"
	"github.com/aura-community/challenges/internal/notify/notifytest"
)

func TestAnnouncerDestinations(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.PutSettings(models.GuildSettings{GuildID: "g1", AnnouncementChannel: "ann", ReviewChannel: "rev"})
	rec := notifytest.New()
	a := notify.NewAnnouncer(rec, store, nil, nil)

	ref, err := a.Post(ctx, "g1", notify.Reviews, notify.Content{Kind: notify.KindSubmissionPending})
	require.NoError(t, err)
	assert.Equal(t, "rev", ref.ChannelID)

	ref, err = a.Post(ctx, "g1", notify.Draws, notify.Content{Kind: notify.KindDrawAnnounced})
	require.NoError(t, err)
	assert.Equal(t, "ann", ref.ChannelID, "draws fall back to the announcement channel")

	_, err = a.Post(ctx, "g2", notify.Announcements, notify.Content{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAnnouncerTryMethodsSwallowFailures(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.PutSettings(models.GuildSettings{GuildID: "g1", AnnouncementChannel: "ann"})
	rec := notifytest.New()
	rec.FailPost = errors.New("gateway down")
	rec.FailDM = errors.New("user blocks DMs")
	a := notify.NewAnnouncer(rec, store, nil, nil)

	_, err := a.Post(ctx, "g1", notify.Announcements, notify.Content{})
	assert.ErrorIs(t, err, apperr.ErrUnavailable)

	assert.True(t, a.TryPost(ctx, "g1", notify.Announcements, notify.Content{}).IsZero())
	a.TryDirectMessage(ctx, "g1", "u1", notify.Content{})
	a.TryEdit(ctx, "g1", models.MessageRef{}, notify.Content{})
	assert.Empty(t, rec.Edits, "zero refs are not edited")
}
