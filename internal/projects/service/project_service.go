package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wizdm/studio-backend/internal/auth"
	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/projects/debounce"
	"github.com/wizdm/studio-backend/internal/projects/domain"
	"github.com/wizdm/studio-backend/internal/projects/repository"
	"github.com/wizdm/studio-backend/internal/stream"
	"github.com/wizdm/studio-backend/internal/users"
)

const DefaultExistsDebounce = 500 * time.Millisecond

var (
	// ErrNoCurrentSelection is returned by Update when no project is selected.
	ErrNoCurrentSelection = errors.New("no current project selected")
	// ErrNoSelection is returned by DeleteByID when neither an id nor a
	// current selection is available.
	ErrNoSelection = errors.New("no project id given and none selected")
	// ErrSuperseded is returned by Exists when a newer check replaced it.
	ErrSuperseded = debounce.ErrSuperseded
	// ErrInvalidName is returned by Add and Update when name is present but
	// not a string. Nothing is written.
	ErrInvalidName = errors.New("project name must be a string")
)

// ProjectService is the per-session project API. It tracks the "current"
// project of its session: set by Add and QueryByID, cleared by DeleteByID.
// Concurrent operations race on the selection; the last write wins.
type ProjectService struct {
	repo     *repository.ProjectRepository
	users    *users.Repo
	identity auth.Identity
	exists   *debounce.Debouncer
	log      zerolog.Logger

	mu        sync.Mutex
	currentID string
}

type Option func(*ProjectService)

func WithDebounce(d time.Duration) Option {
	return func(s *ProjectService) { s.exists = debounce.New(d) }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *ProjectService) { s.log = log }
}

// NewProjectService creates a service acting on behalf of identity.
func NewProjectService(store *database.Store, identity auth.Identity, opts ...Option) *ProjectService {
	s := &ProjectService{
		repo:     repository.NewProjectRepository(store),
		users:    users.NewRepo(store),
		identity: identity,
		exists:   debounce.New(DefaultExistsDebounce),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID is the id of the signed-in user.
func (s *ProjectService) UserID() string {
	return s.identity.UserID()
}

// IsMine reports whether p is owned by the signed-in user.
func (s *ProjectService) IsMine(p domain.Project) bool {
	switch p.Owner.Kind() {
	case domain.OwnerEmbedded:
		return p.Owner.User().ID == s.UserID()
	default:
		return p.Owner.ID() == s.UserID()
	}
}

// CurrentID returns the selected project id, if any.
func (s *ProjectService) CurrentID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID, s.currentID != ""
}

func (s *ProjectService) setCurrent(id string) {
	s.mu.Lock()
	s.currentID = id
	s.mu.Unlock()
}

// List streams every project matching fn.
func (s *ProjectService) List(ctx context.Context, fn database.QueryFn) *stream.Stream[[]domain.Project] {
	return s.repo.List(ctx, fn)
}

// ListOwn streams the signed-in user's projects. fn is applied before the
// owner filter.
func (s *ProjectService) ListOwn(ctx context.Context, fn database.QueryFn) *stream.Stream[[]domain.Project] {
	uid := s.UserID()
	return s.List(ctx, fn.Then(func(q database.Query) database.Query {
		return q.Where("owner", database.OpEqual, uid)
	}))
}

// Exists reports whether any project has the given name, ignoring case and
// surrounding spaces. Calls are debounced: a call made while another is
// waiting replaces it, and the replaced call fails with ErrSuperseded.
func (s *ProjectService) Exists(ctx context.Context, name string) (bool, error) {
	normalized := normalizeName(name)

	if err := s.exists.Wait(ctx); err != nil {
		return false, err
	}

	found, err := stream.First(ctx, s.repo.Match(ctx, func(q database.Query) database.Query {
		return q.Where("lowerCaseName", database.OpEqual, normalized)
	}))
	if err != nil {
		return false, fmt.Errorf("check project name: %w", err)
	}
	return len(found) > 0, nil
}

// Add creates a project owned by the signed-in user and selects it.
func (s *ProjectService) Add(ctx context.Context, data database.Fields) (string, error) {
	formatted, err := s.format(data)
	if err != nil {
		return "", err
	}

	id, err := s.repo.Create(ctx, formatted)
	if err != nil {
		return "", fmt.Errorf("add project: %w", err)
	}

	s.setCurrent(id)
	s.log.Info().Str("project_id", id).Str("user_id", s.UserID()).Msg("project added")
	return id, nil
}

// Update merges data into the selected project.
func (s *ProjectService) Update(ctx context.Context, data database.Fields) error {
	id, ok := s.CurrentID()
	if !ok {
		return ErrNoCurrentSelection
	}

	formatted, err := s.format(data)
	if err != nil {
		return err
	}

	if err := s.repo.Merge(ctx, id, formatted); err != nil {
		return fmt.Errorf("update project %s: %w", id, err)
	}
	return nil
}

// QueryByID streams the project id, or the selected one when id is empty,
// with its owner joined from /users. The stream emits nil while the
// project does not exist, and a single nil when there is nothing to query.
// Every emitted project becomes the current selection.
func (s *ProjectService) QueryByID(ctx context.Context, id string) *stream.Stream[*domain.Project] {
	if id == "" {
		id, _ = s.CurrentID()
	}
	if id == "" {
		return stream.Of[*domain.Project](nil)
	}

	joined := stream.Switch(s.repo.Watch(ctx, id), func(ctx context.Context, p *domain.Project) *stream.Stream[*domain.Project] {
		if p == nil || p.Owner.Kind() != domain.OwnerRaw || p.Owner.ID() == "" {
			return stream.Of(p)
		}
		return stream.Map(s.users.Watch(ctx, p.Owner.ID()), func(u *users.User) *domain.Project {
			out := *p
			if u != nil {
				out.Owner = domain.EmbeddedOwner(u)
			}
			return &out
		})
	})

	return stream.Tap(joined, func(p *domain.Project) {
		if p != nil {
			s.setCurrent(p.ID)
		}
	})
}

// DeleteByID deletes project id, or the selected one when id is empty, and
// clears the selection.
func (s *ProjectService) DeleteByID(ctx context.Context, id string) error {
	if id == "" {
		id, _ = s.CurrentID()
	}
	if id == "" {
		return ErrNoSelection
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}

	s.setCurrent("")
	s.log.Info().Str("project_id", id).Str("user_id", s.UserID()).Msg("project deleted")
	return nil
}

// format returns a copy of data with the name trimmed, lowerCaseName
// derived from it and owner set to the signed-in user. lowerCaseName is
// never taken from the caller; without a name the stored value is kept.
func (s *ProjectService) format(data database.Fields) (database.Fields, error) {
	out := data.Clone()
	if out == nil {
		out = database.Fields{}
	}
	delete(out, "lowerCaseName")

	if raw, present := out["name"]; present {
		name, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrInvalidName, raw)
		}
		out["name"] = strings.TrimSpace(name)
		out["lowerCaseName"] = normalizeName(name)
	}
	out["owner"] = s.UserID()
	return out, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
