// Package redis implements database.Backend on Redis. Documents are stored as
// JSON strings, collections as sets of identifiers, and every write publishes
// the affected identifier on the collection's change channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wizdm/studio-backend/internal/database"
)

const (
	docKeyPrefix        = "doc:"     // Document JSON: doc:{collection}/{id}
	collectionKeyPrefix = "col:"     // Set of ids: col:{collection}
	changeChannelPrefix = "changes:" // Pub/Sub channel: changes:{collection}
	maxMergeAttempts    = 5
)

// Backend stores documents in Redis.
type Backend struct {
	client *redis.Client
	prefix string
}

var _ database.Backend = (*Backend)(nil)

// New creates a backend. prefix namespaces every key and channel.
func New(client *redis.Client, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Backend) Add(ctx context.Context, collection string, data database.Fields) (string, error) {
	id := ulid.Make().String()

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.docKey(collection, id), raw, 0)
		pipe.SAdd(ctx, b.collectionKey(collection), id)
		pipe.Publish(ctx, b.changeChannel(collection), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to add document: %w", err)
	}
	return id, nil
}

func (b *Backend) Merge(ctx context.Context, collection, id string, data database.Fields) error {
	key := b.docKey(collection, id)

	merge := func(tx *redis.Tx) error {
		current, err := b.load(ctx, tx, key)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(current.Merge(data))
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.SAdd(ctx, b.collectionKey(collection), id)
			pipe.Publish(ctx, b.changeChannel(collection), id)
			return nil
		})
		return err
	}

	for i := 0; i < maxMergeAttempts; i++ {
		err := b.client.Watch(ctx, merge, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to merge document: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to merge document: %w", redis.TxFailedErr)
}

func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.docKey(collection, id))
		pipe.SRem(ctx, b.collectionKey(collection), id)
		pipe.Publish(ctx, b.changeChannel(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (b *Backend) WatchQuery(ctx context.Context, q database.Query, emit func([]database.Snapshot) bool) error {
	return b.watch(ctx, q.Collection, func(string) bool { return true }, func() (any, error) {
		snaps, err := b.snapshots(ctx, q.Collection)
		if err != nil {
			return nil, err
		}
		return q.Run(snaps), nil
	}, func(v any) bool {
		return emit(v.([]database.Snapshot))
	})
}

func (b *Backend) WatchDocument(ctx context.Context, collection, id string, emit func(*database.Snapshot) bool) error {
	key := b.docKey(collection, id)

	return b.watch(ctx, collection, func(changed string) bool { return changed == id }, func() (any, error) {
		data, err := b.load(ctx, b.client, key)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return (*database.Snapshot)(nil), nil
		}
		return &database.Snapshot{ID: id, Data: data}, nil
	}, func(v any) bool {
		return emit(v.(*database.Snapshot))
	})
}

// watch subscribes to the collection's change channel before the first load
// so no write between load and subscribe is missed.
func (b *Backend) watch(
	ctx context.Context,
	collection string,
	relevant func(id string) bool,
	load func() (any, error),
	emit func(any) bool,
) error {
	sub := b.client.Subscribe(ctx, b.changeChannel(collection))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	messages := sub.Channel()

	last, err := load()
	if err != nil {
		return err
	}
	if !emit(last) {
		return nil
	}

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if !relevant(msg.Payload) {
				continue
			}
			next, err := load()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
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

func (b *Backend) snapshots(ctx context.Context, collection string) ([]database.Snapshot, error) {
	ids, err := b.client.SMembers(ctx, b.collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}
	if len(ids) == 0 {
		return []database.Snapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.docKey(collection, id)
	}
	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	out := make([]database.Snapshot, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var data database.Fields
		if err := json.Unmarshal([]byte(s), &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", ids[i], err)
		}
		out = append(out, database.Snapshot{ID: ids[i], Data: data})
	}
	return out, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// load returns the stored document or nil when it does not exist.
func (b *Backend) load(ctx context.Context, c getter, key string) (database.Fields, error) {
	raw, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var data database.Fields
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return data, nil
}

func (b *Backend) docKey(collection, id string) string {
	return fmt.Sprintf("%s%s%s/%s", b.prefix, docKeyPrefix, collection, id)
}

func (b *Backend) collectionKey(collection string) string {
	return fmt.Sprintf("%s%s%s", b.prefix, collectionKeyPrefix, collection)
}

func (b *Backend) changeChannel(collection string) string {
	return fmt.Sprintf("%s%s%s", b.prefix, changeChannelPrefix, collection)
}
