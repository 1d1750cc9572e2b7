// Package firestore implements database.Backend on Cloud Firestore using
// realtime snapshot listeners.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wizdm/studio-backend/internal/database"
)

// Backend wraps a Firestore client.
type Backend struct {
	client *firestore.Client
}

var _ database.Backend = (*Backend)(nil)

func New(client *firestore.Client) *Backend {
	return &Backend{client: client}
}

func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.Collections(ctx).Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

func (b *Backend) Add(ctx context.Context, collection string, data database.Fields) (string, error) {
	ref, _, err := b.client.Collection(collection).Add(ctx, map[string]any(data))
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (b *Backend) Merge(ctx context.Context, collection, id string, data database.Fields) error {
	_, err := b.client.Collection(collection).Doc(id).Set(ctx, map[string]any(data), firestore.MergeAll)
	return err
}

func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	_, err := b.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

func (b *Backend) WatchQuery(ctx context.Context, q database.Query, emit func([]database.Snapshot) bool) error {
	it := b.query(q).Snapshots(ctx)
	defer it.Stop()

	for {
		qs, err := it.Next()
		if err != nil {
			if isTeardown(ctx, err) {
				return nil
			}
			return fmt.Errorf("listen %s: %w", q.Collection, err)
		}

		docs, err := qs.Documents.GetAll()
		if err != nil {
			if isTeardown(ctx, err) {
				return nil
			}
			return fmt.Errorf("read %s: %w", q.Collection, err)
		}

		out := make([]database.Snapshot, 0, len(docs))
		for _, d := range docs {
			out = append(out, database.Snapshot{ID: d.Ref.ID, Data: d.Data()})
		}
		if !emit(out) {
			return nil
		}
	}
}

func (b *Backend) WatchDocument(ctx context.Context, collection, id string, emit func(*database.Snapshot) bool) error {
	it := b.client.Collection(collection).Doc(id).Snapshots(ctx)
	defer it.Stop()

	for {
		// A missing document arrives as a snapshot with Exists() false;
		// iterator errors are terminal.
		ds, err := it.Next()
		if err != nil {
			if isTeardown(ctx, err) {
				return nil
			}
			return fmt.Errorf("listen %s/%s: %w", collection, id, err)
		}

		if !ds.Exists() {
			if !emit(nil) {
				return nil
			}
			continue
		}
		if !emit(&database.Snapshot{ID: ds.Ref.ID, Data: ds.Data()}) {
			return nil
		}
	}
}

func (b *Backend) query(q database.Query) firestore.Query {
	fq := b.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, string(f.Op), f.Value)
	}
	for _, o := range q.Orders {
		fq = fq.OrderBy(o.Field, direction(o.Direction))
	}
	if q.Max > 0 {
		fq = fq.Limit(q.Max)
	}
	return fq
}

func direction(d database.Direction) firestore.Direction {
	if d == database.Desc {
		return firestore.Desc
	}
	return firestore.Asc
}

// isTeardown reports whether err only signals that the listener was stopped.
func isTeardown(ctx context.Context, err error) bool {
	if errors.Is(err, iterator.Done) || errors.Is(err, context.Canceled) {
		return true
	}
	if status.Code(err) == codes.Canceled {
		return true
	}
	return ctx.Err() != nil
}
