package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wizdm/studio-backend/internal/auth"
	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/projects/domain"
	"github.com/wizdm/studio-backend/internal/projects/service"
	"github.com/wizdm/studio-backend/internal/projects/session"
	"github.com/wizdm/studio-backend/internal/stream"
)

// sessionService returns the caller's session service, writing the error response
// when none is available.
func (h *Handler) sessionService(c *gin.Context) (*service.ProjectService, bool) {
	uid := auth.UserFirebaseUID(c)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "user not authenticated"})
		return nil, false
	}

	svc, err := h.sessions.Acquire(uid, strings.TrimSpace(c.GetHeader(HeaderSessionID)))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return svc, true
}

// fail maps service errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error) {
	var writeErr *database.StoreWriteError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, service.ErrNoCurrentSelection),
		errors.Is(err, service.ErrNoSelection),
		errors.Is(err, service.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, database.ErrInvalidPath),
		errors.Is(err, service.ErrInvalidName):
		status = http.StatusBadRequest
	case errors.As(err, &writeErr):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("projects request failed")
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

// listQuery builds the refinement requested by the order and limit query
// parameters.
func listQuery(c *gin.Context) (database.QueryFn, error) {
	var fn database.QueryFn

	switch c.Query("order") {
	case "":
	case "name":
		fn = fn.Then(func(q database.Query) database.Query {
			return q.OrderBy("lowerCaseName", database.Asc)
		})
	default:
		return nil, errors.New("order must be \"name\"")
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, errors.New("limit must be a positive integer")
		}
		fn = fn.Then(func(q database.Query) database.Query { return q.Limit(n) })
	}
	return fn, nil
}

func (h *Handler) listStream(c *gin.Context) (*stream.Stream[[]domain.Project], bool) {
	svc, ok := h.sessionService(c)
	if !ok {
		return nil, false
	}

	fn, err := listQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return nil, false
	}

	ctx := c.Request.Context()
	switch c.Query("scope") {
	case "", "all":
		return svc.List(ctx, fn), true
	case "own":
		return svc.ListOwn(ctx, fn), true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "scope must be \"all\" or \"own\""})
		return nil, false
	}
}

func (h *Handler) list(c *gin.Context) {
	s, ok := h.listStream(c)
	if !ok {
		return
	}

	items, err := stream.First(c.Request.Context(), s)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) exists(c *gin.Context) {
	name := c.Query("name")
	if strings.TrimSpace(name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "name required"})
		return
	}

	svc, ok := h.sessionService(c)
	if !ok {
		return
	}

	found, err := svc.Exists(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "exists": found})
}

func (h *Handler) create(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	svc, ok := h.sessionService(c)
	if !ok {
		return
	}

	id, err := svc.Add(c.Request.Context(), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": id})
}

func (h *Handler) update(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	svc, ok := h.sessionService(c)
	if !ok {
		return
	}

	if err := svc.Update(c.Request.Context(), body); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) get(c *gin.Context) {
	svc, ok := h.sessionService(c)
	if !ok {
		return
	}

	p, err := stream.First(c.Request.Context(), svc.QueryByID(c.Request.Context(), c.Param("id")))
	if err != nil {
		h.fail(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p, "mine": svc.IsMine(*p)})
}

func (h *Handler) delete(c *gin.Context) {
	svc, ok := h.sessionService(c)
	if !ok {
		return
	}

	if err := svc.DeleteByID(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
