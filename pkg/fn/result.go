// Package fn holds the small generic helpers the ingestion pipeline is
// composed from: a Result type, typed stages and bounded parallel maps.
package fn

// Result carries either a value or an error.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps an error. A nil err still yields a failed Result.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = errNilErr
	}
	return Result[T]{err: err}
}

func (r Result[T]) IsOk() bool         { return r.err == nil }
func (r Result[T]) IsErr() bool        { return r.err != nil }
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }
