package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizdm/studio-backend/config"
	"github.com/wizdm/studio-backend/internal/auth"
	"github.com/wizdm/studio-backend/internal/projects/service"
	"github.com/wizdm/studio-backend/internal/projects/session"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, closeStore, err := OpenStore(context.Background(), &config.Config{
		Store: config.StoreConfig{Backend: config.StoreMemory},
	}, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(closeStore)

	sessions := session.NewRegistry(func(id auth.Identity) *service.ProjectService {
		return service.NewProjectService(store, id, service.WithDebounce(time.Millisecond))
	})

	return BuildRouter(RouterDeps{
		ServiceName:    "studio-backend",
		Version:        "test",
		Backend:        config.StoreMemory,
		AllowedOrigins: []string{"https://studio.example.com"},
		KeepAlive:      time.Second,
		Store:          store,
		Sessions:       sessions,
		Log:            zerolog.Nop(),
	})
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &config.Config{
		Store: config.StoreConfig{Backend: "mongo"},
	}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenStore_FirestoreNeedsFirebase(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &config.Config{
		Store: config.StoreConfig{Backend: config.StoreFirestore},
	}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenStore_PostgresBadDSN(t *testing.T) {
	_, _, err := OpenStore(context.Background(), &config.Config{
		Store: config.StoreConfig{Backend: config.StorePostgres, PostgresDSN: "::not a dsn::"},
	}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuildRouter_Health(t *testing.T) {
	r := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestBuildRouter_HeaderIdentityFallsBackToDemoUser(t *testing.T) {
	r := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), auth.DemoUser)
}

func TestBuildRouter_ProjectsAndProfile(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{"name":"Demo"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-User-Email", "u1@example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
	req.Header.Set("X-User-Id", "u1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "u1@example.com")
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	req.Header.Set("Origin", "https://studio.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-Session-Id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://studio.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorsConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)

	cfg := corsConfig([]string{"https://a.example.com"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example.com"}, cfg.AllowOrigins)
}

func TestSetGinMode(t *testing.T) {
	t.Cleanup(func() { gin.SetMode(gin.TestMode) })

	SetGinMode("production")
	assert.Equal(t, gin.ReleaseMode, gin.Mode())
	SetGinMode("test")
	assert.Equal(t, gin.TestMode, gin.Mode())
}
