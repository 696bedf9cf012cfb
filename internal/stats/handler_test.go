package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/apperr"
	"github.com/aura-community/challenges/internal/memstore"
	"github.com/aura-community/challenges/internal/models"
)

func TestHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := memstore.New()
	ctx := context.Background()
	require.NoError(t, store.IncrementVotesCast(ctx, "g1", "u1"))
	require.NoError(t, store.IncrementVotesCast(ctx, "g1", "u1"))
	require.NoError(t, store.IncrementPrizesWon(ctx, "g1", "u1"))

	r := gin.New()
	r.GET("/guilds/:guild/users/:user/stats", NewHandler(store).Get)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guilds/g1/users/u1/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data models.UserStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.VotesCast)
	assert.Equal(t, 1, body.Data.PrizesWon)

	store.Fail = func(op string) error {
		if op == "GetStats" {
			return apperr.Unavailable(errors.New("connection reset"), "load stats")
		}
		return nil
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guilds/g1/users/u1/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
