package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizdm/studio-backend/internal/auth"
	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/database/memory"
	"github.com/wizdm/studio-backend/internal/users"
)

func setupRouter(t *testing.T) (*gin.Engine, *users.Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := users.NewRepo(database.New(memory.New()))
	router := gin.New()
	group := router.Group("/api/v1/users")
	group.Use(auth.OptionalUser())
	New(repo).Register(group)
	return router, repo
}

func TestProfile(t *testing.T) {
	router, repo := setupRouter(t)

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/profile", nil)
		req.Header.Set("X-User-Id", "u1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}
	put := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/users/profile", strings.NewReader(body))
		req.Header.Set("X-User-Id", "u1")
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNotFound, get().Code)
	assert.Equal(t, http.StatusNotFound, put(`{"lang":"it"}`).Code)

	require.NoError(t, repo.EnsureUser(context.Background(), users.UpsertUser{FirebaseUID: "u1", DisplayName: "Ada"}))

	w := put(`{"lang":"it"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = get()
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		User users.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "it", resp.User.Lang)
	assert.Equal(t, "Ada", resp.User.DisplayName)

	assert.Equal(t, http.StatusBadRequest, put(`nope`).Code)
}
