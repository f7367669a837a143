package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts configures exponential backoff.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
}

// DefaultRetry suits calls to a local model server.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

// backoff returns the wait before attempt n+1 (n counts from zero).
func (o RetryOpts) backoff(n int) time.Duration {
	d := o.InitialWait << n
	if o.MaxWait > 0 && (d > o.MaxWait || d <= 0) {
		d = o.MaxWait
	}
	if o.Jitter && d > 0 {
		d = d/2 + rand.N(d)
	}
	return d
}

// Retry calls f until it succeeds, MaxAttempts is reached or ctx ends.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := max(opts.MaxAttempts, 1)
	var r Result[T]
	for n := range attempts {
		if r = f(ctx); r.IsOk() || n == attempts-1 {
			return r
		}
		t := time.NewTimer(opts.backoff(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return Err[T](ctx.Err())
		case <-t.C:
		}
	}
	return r
}

// RetryStage retries stage with opts.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] {
			return stage(ctx, in)
		})
	}
}
