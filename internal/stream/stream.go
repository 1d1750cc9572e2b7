// Package stream provides a single-subscriber push stream backed by a producer
// goroutine. Values are delivered over an unbuffered channel, so the consumer
// sees them in exactly the order the producer emitted them.
package stream

import (
	"context"
	"errors"
)

// ErrEmpty is returned by First when a stream completes without emitting.
var ErrEmpty = errors.New("stream completed without a value")

// Producer pushes values through emit until it returns. emit reports false
// once the stream has been closed; the producer must return promptly then.
type Producer[T any] func(ctx context.Context, emit func(T) bool) error

// Stream is a cancellable sequence of values of type T.
type Stream[T any] struct {
	c      chan T
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New starts produce in its own goroutine and returns the stream it feeds.
// Cancelling ctx has the same effect as calling Close.
func New[T any](ctx context.Context, produce Producer[T]) *Stream[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		c:      make(chan T),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.c)

		err := produce(ctx, func(v T) bool {
			select {
			case s.c <- v:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.err = err
		}
	}()

	return s
}

// Of returns a stream that emits v once and completes.
func Of[T any](v T) *Stream[T] {
	return New(context.Background(), func(_ context.Context, emit func(T) bool) error {
		emit(v)
		return nil
	})
}

// Fail returns a stream that completes immediately with err.
func Fail[T any](err error) *Stream[T] {
	return New(context.Background(), func(context.Context, func(T) bool) error {
		return err
	})
}

// C returns the channel values are delivered on. It is closed when the
// stream completes, fails, or is closed.
func (s *Stream[T]) C() <-chan T {
	return s.c
}

// Err returns the error that terminated the stream; cancellation is not an
// error. It blocks until the producer has exited, so call it after C closes.
func (s *Stream[T]) Err() error {
	<-s.done
	return s.err
}

// Done is closed once the producer goroutine has exited.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes: it cancels the producer and waits for it to exit.
// Safe to call more than once.
func (s *Stream[T]) Close() {
	s.cancel()
	<-s.done
}

// First waits for the first value of s, then closes it.
func First[T any](ctx context.Context, s *Stream[T]) (T, error) {
	defer s.Close()

	var zero T
	select {
	case v, ok := <-s.C():
		if !ok {
			if err := s.Err(); err != nil {
				return zero, err
			}
			return zero, ErrEmpty
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
