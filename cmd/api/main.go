package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/wizdm/studio-backend/config"
	"github.com/wizdm/studio-backend/internal/auth"
	authmw "github.com/wizdm/studio-backend/internal/auth/middleware"
	"github.com/wizdm/studio-backend/internal/bootstrap"
	"github.com/wizdm/studio-backend/internal/logging"
	"github.com/wizdm/studio-backend/internal/projects/service"
	"github.com/wizdm/studio-backend/internal/projects/session"
)

const serviceName = "studio-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("load config")
	}

	log, err := logging.New(cfg.Log, serviceName)
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("build logger")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap.SetGinMode(cfg.App.Environment)

	var (
		fb       *auth.FirebaseClients
		verifier authmw.TokenVerifier
	)
	if cfg.Firebase.Enabled() {
		clients, err := auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			return err
		}
		defer clients.Close()
		fb, verifier = clients, clients.Auth
	}

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, fb, log)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions := session.NewRegistry(func(identity auth.Identity) *service.ProjectService {
		return service.NewProjectService(store, identity,
			service.WithDebounce(cfg.Projects.ExistsDebounce),
			service.WithLogger(log.With().Str("user_id", identity.UserID()).Logger()),
		)
	},
		session.WithRate(cfg.Session.RatePerSec, cfg.Session.RateBurst),
		session.WithLogger(log),
	)

	sweeper, err := session.StartSweeper(sessions, cfg.Session.SweepSpec, cfg.Session.IdleTTL)
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    serviceName,
		Version:        cfg.App.Version,
		Backend:        cfg.Store.Backend,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		KeepAlive:      cfg.Server.StreamKeepAlive,
		Store:          store,
		Sessions:       sessions,
		Verifier:       verifier,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.App.Environment).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
