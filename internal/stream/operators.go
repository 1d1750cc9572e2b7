package stream

import "context"

// Map returns a stream of fn applied to every value of src. Closing the
// result closes src.
func Map[T, U any](src *Stream[T], fn func(T) U) *Stream[U] {
	return New(context.Background(), func(ctx context.Context, emit func(U) bool) error {
		defer src.Close()

		for {
			select {
			case v, ok := <-src.C():
				if !ok {
					return src.Err()
				}
				if !emit(fn(v)) {
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// Tap calls fn for every value of src before passing it on unchanged.
func Tap[T any](src *Stream[T], fn func(T)) *Stream[T] {
	return Map(src, func(v T) T {
		fn(v)
		return v
	})
}

// Switch maps every value of src to an inner stream and forwards that inner
// stream's values. A new outer value closes the previous inner stream before
// subscribing to the next one. The result completes once src and the current
// inner stream have both completed.
func Switch[T, U any](src *Stream[T], fn func(ctx context.Context, v T) *Stream[U]) *Stream[U] {
	return New(context.Background(), func(ctx context.Context, emit func(U) bool) error {
		defer src.Close()

		var inner *Stream[U]
		defer func() {
			if inner != nil {
				inner.Close()
			}
		}()

		outerC := src.C()
		var innerC <-chan U

		for {
			select {
			case v, ok := <-outerC:
				if !ok {
					if err := src.Err(); err != nil {
						return err
					}
					outerC = nil
					if innerC == nil {
						return nil
					}
					continue
				}
				if inner != nil {
					inner.Close()
				}
				inner = fn(ctx, v)
				innerC = inner.C()

			case u, ok := <-innerC:
				if !ok {
					if err := inner.Err(); err != nil {
						return err
					}
					innerC = nil
					if outerC == nil {
						return nil
					}
					continue
				}
				if !emit(u) {
					return nil
				}

			case <-ctx.Done():
				return nil
			}
		}
	})
}
