package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aura-community/challenges/internal/auth"
	"github.com/aura-community/challenges/internal/models"
)

func newRouter(svc *auth.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/guilds/:guild", JWT(svc), RequireGuild())
	g.GET("/me", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })
	g.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuildScopedAuth(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(svc)
	member, err := svc.Generate("u1", "g1", "member")
	require.NoError(t, err)
	admin, err := svc.Generate("u2", "g1", "admin")
	require.NoError(t, err)

	w := do(r, "/guilds/g1/me", member)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "/guilds/g1/me", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/guilds/g2/me", member).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/guilds/g1/admin", member).Code)
	assert.Equal(t, http.StatusOK, do(r, "/guilds/g1/admin", admin).Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name    string
		allowed string
		origin  string
		want    string
	}{
		{name: "wildcard", allowed: "*", origin: "http://evil.example", want: "*"},
		{name: "listed origin", allowed: "http://localhost:5173, https://admin.example.com", origin: "https://admin.example.com", want: "https://admin.example.com"},
		{name: "unlisted origin", allowed: "http://localhost:5173", origin: "http://evil.example", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tc.allowed))
			r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodOptions, "/health", nil)
			req.Header.Set("Origin", tc.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, tc.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/guilds/:guild/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/guilds/:guild/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/guilds/:guild/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/guilds/g1/ok", "/guilds/g1/missing", "/guilds/g1/broken"} {
		do(r, path, "")
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.Equal(t, "g1", entries[0].ContextMap()["guild_id"])
	assert.Equal(t, "/guilds/:guild/missing", entries[1].ContextMap()["route"])
}
