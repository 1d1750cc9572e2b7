package http

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/wizdm/studio-backend/internal/projects/session"
)

const (
	HeaderSessionID  = "X-Session-Id"
	defaultKeepAlive = 15 * time.Second
)

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	sessions  *session.Registry
	keepAlive time.Duration
	log       zerolog.Logger
}

func New(sessions *session.Registry, keepAlive time.Duration, log zerolog.Logger) *Handler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &Handler{sessions: sessions, keepAlive: keepAlive, log: log}
}
