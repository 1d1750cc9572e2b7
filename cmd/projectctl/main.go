package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"

	"github.com/docopt/docopt-go"
	"github.com/rs/zerolog"

	"github.com/wizdm/studio-backend/config"
	"github.com/wizdm/studio-backend/internal/auth"
	"github.com/wizdm/studio-backend/internal/bootstrap"
	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/logging"
	"github.com/wizdm/studio-backend/internal/projects/domain"
	"github.com/wizdm/studio-backend/internal/projects/service"
	"github.com/wizdm/studio-backend/internal/stream"
)

const ProjectCtlVersion = "0.1.0"

func main() {
	usage := `Project store control.

The store backend is read from the same environment as the API server
(STORE_BACKEND, REDIS_ADDR, DB_DSN, FIREBASE_CREDENTIALS_PATH, ...).

Usage:
    projectctl seed <file>
    projectctl list --user=<uid> [--own] [--limit=<n>]
    projectctl exists --user=<uid> <name>
    projectctl delete --user=<uid> <id>

Options:
    -h --help         Show this screen.
    --version         Show version.
    --user=<uid>      Act as this user.
    --own             Only list projects owned by --user.
    --limit=<n>       Cap the number of listed projects.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ProjectCtlVersion)
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("load config")
	}
	cfg.Log.Format = "console"
	log, err := logging.New(cfg.Log, "projectctl")
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("build logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var fb *auth.FirebaseClients
	if cfg.Store.Backend == config.StoreFirestore {
		fb, err = auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			log.Fatal().Err(err).Msg("init firebase")
		}
		defer fb.Close()
	}

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, fb, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer closeStore()

	if seed_, _ := opts.Bool("seed"); seed_ {
		err = seedCmd(ctx, opts, store)
	} else if list_, _ := opts.Bool("list"); list_ {
		err = listCmd(ctx, opts, store)
	} else if exists_, _ := opts.Bool("exists"); exists_ {
		err = existsCmd(ctx, opts, store)
	} else if delete_, _ := opts.Bool("delete"); delete_ {
		err = deleteCmd(ctx, opts, store)
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		closeStore()
		os.Exit(1)
	}
}

func serviceFor(opts docopt.Opts, store *database.Store) *service.ProjectService {
	uid, _ := opts.String("--user")
	return service.NewProjectService(store, auth.Static(uid))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func seedCmd(ctx context.Context, opts docopt.Opts, store *database.Store) error {
	path, _ := opts.String("<file>")
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	seed, err := parseSeed(f)
	if err != nil {
		return err
	}
	ids, err := seed.apply(ctx, store)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"users": len(seed.Users), "projects": ids})
}

func listCmd(ctx context.Context, opts docopt.Opts, store *database.Store) error {
	svc := serviceFor(opts, store)

	var fn database.QueryFn
	if limit, err := opts.Int("--limit"); err == nil && limit > 0 {
		fn = func(q database.Query) database.Query { return q.Limit(limit) }
	}

	var s *stream.Stream[[]domain.Project]
	if own, _ := opts.Bool("--own"); own {
		s = svc.ListOwn(ctx, fn)
	} else {
		s = svc.List(ctx, fn)
	}
	projects, err := stream.First(ctx, s)
	if err != nil {
		return err
	}
	return printJSON(projects)
}

func existsCmd(ctx context.Context, opts docopt.Opts, store *database.Store) error {
	name, _ := opts.String("<name>")
	exists, err := serviceFor(opts, store).Exists(ctx, name)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"name": name, "exists": exists})
}

func deleteCmd(ctx context.Context, opts docopt.Opts, store *database.Store) error {
	id, _ := opts.String("<id>")
	if err := serviceFor(opts, store).DeleteByID(ctx, id); err != nil {
		return err
	}
	return printJSON(map[string]any{"deleted": id})
}
