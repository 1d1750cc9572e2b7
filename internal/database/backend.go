package database

import "context"

// Backend is a remote document database. Implementations live in the
// sub-packages (firestore, memory, redis, postgres).
//
// Watch methods emit the current state first and then once per observed
// change, blocking until ctx is cancelled (returning nil or ctx.Err()) or the
// subscription fails. They must return as soon as emit reports false.
type Backend interface {
	WatchQuery(ctx context.Context, q Query, emit func([]Snapshot) bool) error
	// WatchDocument emits nil while the document does not exist.
	WatchDocument(ctx context.Context, collection, id string, emit func(*Snapshot) bool) error

	Add(ctx context.Context, collection string, data Fields) (string, error)
	// Merge writes the given fields, leaving all others untouched. A missing
	// document is created.
	Merge(ctx context.Context, collection, id string, data Fields) error
	// Delete removes a document. Deleting a missing document succeeds.
	Delete(ctx context.Context, collection, id string) error

	Ping(ctx context.Context) error
}
