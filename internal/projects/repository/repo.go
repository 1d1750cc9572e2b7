package repository

import (
	"context"

	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/projects/domain"
	"github.com/wizdm/studio-backend/internal/stream"
)

const collection = "projects"

// ProjectRepository maps the /projects collection to domain.Project streams.
type ProjectRepository struct {
	store *database.Store
}

func NewProjectRepository(store *database.Store) *ProjectRepository {
	return &ProjectRepository{store: store}
}

func CollectionPath() string { return database.Join(collection) }

func DocumentPath(id string) string { return database.Join(collection, id) }

// List streams projects matching fn with their ids.
func (r *ProjectRepository) List(ctx context.Context, fn database.QueryFn) *stream.Stream[[]domain.Project] {
	return database.CollectionWithIDs[domain.Project](ctx, r.store, CollectionPath(), fn)
}

// Match streams projects matching fn without id annotation.
func (r *ProjectRepository) Match(ctx context.Context, fn database.QueryFn) *stream.Stream[[]domain.Project] {
	return database.Collection[domain.Project](ctx, r.store, CollectionPath(), fn)
}

// Watch streams a single project, nil while it does not exist.
func (r *ProjectRepository) Watch(ctx context.Context, id string) *stream.Stream[*domain.Project] {
	return database.DocumentWithID[domain.Project](ctx, r.store, DocumentPath(id))
}

func (r *ProjectRepository) Create(ctx context.Context, data database.Fields) (string, error) {
	ref, err := r.store.Add(ctx, CollectionPath(), data)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (r *ProjectRepository) Merge(ctx context.Context, id string, data database.Fields) error {
	return r.store.Merge(ctx, DocumentPath(id), data)
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, DocumentPath(id))
}
