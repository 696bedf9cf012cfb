package polls

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-community/challenges/internal/middleware"
)

type recordingHub struct {
	events []string
}

func (h *recordingHub) BroadcastToGuild(_, event string, _ interface{}) {
	h.events = append(h.events, event)
}

func TestHandlerVoteAndResolve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t, "A", "B")
	p := f.open(t)
	hub := &recordingHub{}
	h := NewHandler(f.engine, hub)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, "u1") })
	r.POST("/guilds/:guild/polls/:id/votes", h.Vote)
	r.POST("/guilds/:guild/polls/:id/resolve", h.Resolve)

	post := func(path string, body any) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	base := "/guilds/" + guild + "/polls/" + p.ID.String()
	w := post(base+"/votes", VoteRequest{OptionID: f.option(1)})
	require.Equal(t, http.StatusOK, w.Code)
	w = post(base+"/votes", VoteRequest{OptionID: f.option(1)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"poll_tally"}, hub.events, "unchanged votes are not broadcast")

	w = post(base+"/votes", VoteRequest{OptionID: "missing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(base+"/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data PollView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, f.option(1), body.Data.WinnerOptionID)
	assert.Equal(t, 1, body.Data.Tally[f.option(1)])
}
