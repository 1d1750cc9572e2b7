// Package memory is an in-process database.Backend. It notifies watchers on
// every write and is used for local development and tests.
package memory

import (
	"context"
	"reflect"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wizdm/studio-backend/internal/database"
)

type watcher struct {
	collection string
	notify     chan struct{}
}

// Backend keeps documents in maps keyed by collection and identifier.
type Backend struct {
	mu       sync.RWMutex
	docs     map[string]map[string]database.Fields
	watchers map[*watcher]struct{}

	// FailWrites, when set, is returned by every write. Tests use it to
	// simulate rejected writes.
	FailWrites error
}

var _ database.Backend = (*Backend)(nil)

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		docs:     make(map[string]map[string]database.Fields),
		watchers: make(map[*watcher]struct{}),
	}
}

func (b *Backend) Ping(context.Context) error { return nil }

func (b *Backend) Add(_ context.Context, collection string, data database.Fields) (string, error) {
	id := ulid.Make().String()

	b.mu.Lock()
	if err := b.FailWrites; err != nil {
		b.mu.Unlock()
		return "", err
	}
	b.collection(collection)[id] = data.Clone()
	b.mu.Unlock()

	b.publish(collection)
	return id, nil
}

func (b *Backend) Merge(_ context.Context, collection, id string, data database.Fields) error {
	b.mu.Lock()
	if err := b.FailWrites; err != nil {
		b.mu.Unlock()
		return err
	}
	col := b.collection(collection)
	col[id] = col[id].Merge(data)
	b.mu.Unlock()

	b.publish(collection)
	return nil
}

func (b *Backend) Delete(_ context.Context, collection, id string) error {
	b.mu.Lock()
	if err := b.FailWrites; err != nil {
		b.mu.Unlock()
		return err
	}
	_, existed := b.docs[collection][id]
	delete(b.docs[collection], id)
	b.mu.Unlock()

	if existed {
		b.publish(collection)
	}
	return nil
}

func (b *Backend) WatchQuery(ctx context.Context, q database.Query, emit func([]database.Snapshot) bool) error {
	return b.watch(ctx, q.Collection, func() any {
		return q.Run(b.snapshots(q.Collection))
	}, func(v any) bool {
		return emit(v.([]database.Snapshot))
	})
}

func (b *Backend) WatchDocument(ctx context.Context, collection, id string, emit func(*database.Snapshot) bool) error {
	return b.watch(ctx, collection, func() any {
		b.mu.RLock()
		defer b.mu.RUnlock()
		data, ok := b.docs[collection][id]
		if !ok {
			return (*database.Snapshot)(nil)
		}
		return &database.Snapshot{ID: id, Data: data.Clone()}
	}, func(v any) bool {
		return emit(v.(*database.Snapshot))
	})
}

// watch emits load() once and again after every change to collection that
// alters the loaded value.
func (b *Backend) watch(ctx context.Context, collection string, load func() any, emit func(any) bool) error {
	w := &watcher{collection: collection, notify: make(chan struct{}, 1)}

	b.mu.Lock()
	b.watchers[w] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.watchers, w)
		b.mu.Unlock()
	}()

	last := load()
	if !emit(last) {
		return nil
	}

	for {
		select {
		case <-w.notify:
			next := load()
			if reflect.DeepEqual(next, last) {
				continue
			}
			last = next
			if !emit(next) {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Backend) publish(collection string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for w := range b.watchers {
		if w.collection != collection {
			continue
		}
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

func (b *Backend) snapshots(collection string) []database.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]database.Snapshot, 0, len(b.docs[collection]))
	for id, data := range b.docs[collection] {
		out = append(out, database.Snapshot{ID: id, Data: data.Clone()})
	}
	return out
}

// collection must be called with mu held for writing.
func (b *Backend) collection(name string) map[string]database.Fields {
	col, ok := b.docs[name]
	if !ok {
		col = make(map[string]database.Fields)
		b.docs[name] = col
	}
	return col
}
