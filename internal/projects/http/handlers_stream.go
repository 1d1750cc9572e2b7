package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wizdm/studio-backend/internal/stream"
)

// streamList streams project list snapshots using Server-Sent Events (SSE)
func (h *Handler) streamList(c *gin.Context) {
	s, ok := h.listStream(c)
	if !ok {
		return
	}
	serveEvents(c, s, h.keepAlive, func(v any) any { return gin.H{"projects": v} })
}

// streamOne streams a single project, owner joined, using SSE. A null
// project means it does not exist (yet or anymore).
func (h *Handler) streamOne(c *gin.Context) {
	svc, ok := h.sessionService(c)
	if !ok {
		return
	}
	s := svc.QueryByID(c.Request.Context(), c.Param("id"))
	serveEvents(c, s, h.keepAlive, func(v any) any { return gin.H{"project": v} })
}

func serveEvents[T any](c *gin.Context, s *stream.Stream[T], keepAlive time.Duration, wrap func(any) any) {
	defer s.Close()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering
	c.Status(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return

		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case v, ok := <-s.C():
			if !ok {
				if err := s.Err(); err != nil {
					data, _ := json.Marshal(gin.H{"error": err.Error()})
					fmt.Fprintf(c.Writer, "event: error\ndata: %s\n\n", data)
				} else {
					fmt.Fprint(c.Writer, "event: end\ndata: {}\n\n")
				}
				flusher.Flush()
				return
			}

			data, err := json.Marshal(wrap(v))
			if err != nil {
				fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\":%q}\n\n", err.Error())
				flusher.Flush()
				return
			}
			fmt.Fprintf(c.Writer, "event: snapshot\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
