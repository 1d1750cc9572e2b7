package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/database/memory"
	"github.com/wizdm/studio-backend/internal/users"
)

func TestOptionalUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(OptionalUser())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, FromContext(c).UserID())
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, DemoUser, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", " u42 ")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "u42", w.Body.String())
}

func TestWithUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	backend := memory.New()
	repo := users.NewRepo(database.New(backend))

	router := gin.New()
	router.Use(OptionalUser(), WithUser(repo, zerolog.Nop()))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-User-Email", "u1@example.com")
	req.Header.Set("X-User-Name", "Ada")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	u, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1@example.com", u.Email)
	assert.Equal(t, "Ada", u.DisplayName)

	backend.FailWrites = errors.New("unavailable")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestWithUser_RequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(WithUser(users.NewRepo(database.New(memory.New())), zerolog.Nop()))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatic(t *testing.T) {
	var id Identity = Static("u9")
	assert.Equal(t, "u9", id.UserID())
}
