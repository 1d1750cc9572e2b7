package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	httpapi "github.com/wizdm/studio-backend/internal/api/http"
	"github.com/wizdm/studio-backend/internal/api/http/middleware"
	"github.com/wizdm/studio-backend/internal/auth"
	authmw "github.com/wizdm/studio-backend/internal/auth/middleware"
	"github.com/wizdm/studio-backend/internal/database"
	projectshttp "github.com/wizdm/studio-backend/internal/projects/http"
	"github.com/wizdm/studio-backend/internal/projects/session"
	"github.com/wizdm/studio-backend/internal/users"
	usershttp "github.com/wizdm/studio-backend/internal/users/http"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	Backend        string
	AllowedOrigins []string
	KeepAlive      time.Duration
	Store          *database.Store
	Sessions       *session.Registry
	// Verifier enables Firebase ID token checks. When nil the X-User-Id
	// header is trusted, which is only suitable for development.
	Verifier authmw.TokenVerifier
	Log      zerolog.Logger
}

// SetGinMode maps APP_ENV onto gin's mode. Unknown environments keep gin's
// debug default.
func SetGinMode(env string) {
	switch env {
	case "production", "staging":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.Log))
	r.Use(cors.New(corsConfig(dep.AllowedOrigins)))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Backend, dep.Store)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")
	if dep.Verifier != nil {
		api.Use(authmw.FirebaseAuthMiddleware(dep.Verifier))
	} else {
		dep.Log.Warn().Msg("firebase auth disabled, trusting X-User-Id header")
		api.Use(auth.OptionalUser())
	}

	userRepo := users.NewRepo(dep.Store)
	api.Use(auth.WithUser(userRepo, dep.Log))

	usershttp.New(userRepo).Register(api.Group("/users"))
	projectshttp.New(dep.Sessions, dep.KeepAlive, dep.Log).Register(api.Group("/projects"))

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "X-User-Id", "X-Session-Id", middleware.HeaderRequestID)
	cfg.ExposeHeaders = []string{middleware.HeaderRequestID}

	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
