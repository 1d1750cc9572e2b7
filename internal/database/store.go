// Package database adapts a remote document database into typed,
// identifier-annotated streams and plain write calls. It owns no business
// semantics and keeps no cache: every read is a fresh backend subscription.
package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wizdm/studio-backend/internal/stream"
)

// Ref identifies a newly created document.
type Ref struct {
	ID   string
	Path string
}

// Store is the document store adapter over a Backend.
type Store struct {
	backend Backend
	log     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger. Stores log nothing by default.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log.With().Str("component", "store").Logger()
	}
}

// New wraps backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Add appends a document with a store-generated identifier to the
// collection at path.
func (s *Store) Add(ctx context.Context, path string, data Fields) (Ref, error) {
	collection, err := CollectionPath(path)
	if err != nil {
		return Ref{}, writeError("add", path, err)
	}

	id, err := s.backend.Add(ctx, collection, data.Clone())
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("add failed")
		return Ref{}, writeError("add", path, err)
	}

	s.log.Debug().Str("path", path).Str("id", id).Msg("document added")
	return Ref{ID: id, Path: Join(collection, id)}, nil
}

// Merge partially updates the document at path; fields not in data are left
// untouched.
func (s *Store) Merge(ctx context.Context, path string, data Fields) error {
	collection, id, err := DocumentPath(path)
	if err != nil {
		return writeError("merge", path, err)
	}

	if err := s.backend.Merge(ctx, collection, id, data.Clone()); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("merge failed")
		return writeError("merge", path, err)
	}

	s.log.Debug().Str("path", path).Msg("document merged")
	return nil
}

// Delete removes the document at path. Deleting a document that does not
// exist succeeds.
func (s *Store) Delete(ctx context.Context, path string) error {
	collection, id, err := DocumentPath(path)
	if err != nil {
		return writeError("delete", path, err)
	}

	if err := s.backend.Delete(ctx, collection, id); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("delete failed")
		return writeError("delete", path, err)
	}

	s.log.Debug().Str("path", path).Msg("document deleted")
	return nil
}

func (s *Store) watchQuery(ctx context.Context, path string, fn QueryFn) *stream.Stream[[]Snapshot] {
	collection, err := CollectionPath(path)
	if err != nil {
		return stream.Fail[[]Snapshot](err)
	}
	q := fn.Apply(NewQuery(collection))

	return stream.New(ctx, func(ctx context.Context, emit func([]Snapshot) bool) error {
		s.log.Debug().Str("path", path).Int("filters", len(q.Filters)).Msg("collection subscribed")
		defer s.log.Debug().Str("path", path).Msg("collection unsubscribed")

		return s.backend.WatchQuery(ctx, q, emit)
	})
}

func (s *Store) watchDocument(ctx context.Context, path string) *stream.Stream[*Snapshot] {
	collection, id, err := DocumentPath(path)
	if err != nil {
		return stream.Fail[*Snapshot](err)
	}

	return stream.New(ctx, func(ctx context.Context, emit func(*Snapshot) bool) error {
		s.log.Debug().Str("path", path).Msg("document subscribed")
		defer s.log.Debug().Str("path", path).Msg("document unsubscribed")

		return s.backend.WatchDocument(ctx, collection, id, emit)
	})
}

// CollectionWithIDs streams the records of the collection at path matching
// fn, each annotated with its identifier under the "id" field. A new slice
// is emitted on every change until the stream is closed.
func CollectionWithIDs[T any](ctx context.Context, s *Store, path string, fn QueryFn) *stream.Stream[[]T] {
	return decodeAll[T](s.watchQuery(ctx, path, fn), true)
}

// Collection is CollectionWithIDs without identifier annotation, for
// existence and membership checks.
func Collection[T any](ctx context.Context, s *Store, path string, fn QueryFn) *stream.Stream[[]T] {
	return decodeAll[T](s.watchQuery(ctx, path, fn), false)
}

// DocumentWithID streams the document at path annotated with its
// identifier, emitting nil whenever it does not exist.
func DocumentWithID[T any](ctx context.Context, s *Store, path string) *stream.Stream[*T] {
	src := s.watchDocument(ctx, path)

	return stream.New(ctx, func(ctx context.Context, emit func(*T) bool) error {
		defer src.Close()

		for {
			select {
			case snap, ok := <-src.C():
				if !ok {
					return src.Err()
				}
				if snap == nil {
					if !emit(nil) {
						return nil
					}
					continue
				}
				var rec T
				if err := Decode(withID(snap.Data, snap.ID), &rec); err != nil {
					return fmt.Errorf("decode %s: %w", path, err)
				}
				if !emit(&rec) {
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}

func decodeAll[T any](src *stream.Stream[[]Snapshot], annotate bool) *stream.Stream[[]T] {
	return stream.New(context.Background(), func(ctx context.Context, emit func([]T) bool) error {
		defer src.Close()

		for {
			select {
			case snaps, ok := <-src.C():
				if !ok {
					return src.Err()
				}
				out := make([]T, 0, len(snaps))
				for _, snap := range snaps {
					data := snap.Data
					if annotate {
						data = withID(data, snap.ID)
					}
					var rec T
					if err := Decode(data, &rec); err != nil {
						return fmt.Errorf("decode %s: %w", snap.ID, err)
					}
					out = append(out, rec)
				}
				if !emit(out) {
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}
