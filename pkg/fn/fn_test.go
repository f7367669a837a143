package fn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestResult(t *testing.T) {
	v, err := Ok(3).Unwrap()
	if v != 3 || err != nil {
		t.Fatalf("Ok: got %d, %v", v, err)
	}
	if r := Err[int](errBoom); r.IsOk() || !r.IsErr() {
		t.Fatal("Err must not be ok")
	}
	if _, err := Err[int](nil).Unwrap(); err == nil {
		t.Fatal("Err(nil) must still carry an error")
	}
}

func TestThenShortCircuits(t *testing.T) {
	called := false
	fail := Stage[int, int](func(context.Context, int) Result[int] { return Err[int](errBoom) })
	second := Stage[int, string](func(context.Context, int) Result[string] {
		called = true
		return Ok("x")
	})
	_, err := Then(fail, second)(context.Background(), 1).Unwrap()
	if !errors.Is(err, errBoom) || called {
		t.Fatalf("expected short circuit, got err=%v called=%v", err, called)
	}

	double := MapStage(func(n int) int { return n * 2 })
	str := MapStage(func(n int) string { return string(rune('a' + n)) })
	if s, _ := Then(double, str)(context.Background(), 1).Unwrap(); s != "c" {
		t.Fatalf("expected c, got %q", s)
	}
}

func TestTracedStagePassesThrough(t *testing.T) {
	st := TracedStage("test", MapStage(func(n int) int { return n + 1 }))
	if v, _ := st(context.Background(), 1).Unwrap(); v != 2 {
		t.Fatalf("expected 2, got %d", v)
	}
	failing := TracedStage("test", Stage[int, int](func(context.Context, int) Result[int] { return Err[int](errBoom) }))
	if !failing(context.Background(), 1).IsErr() {
		t.Fatal("expected error")
	}
}

func TestRetry(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	var calls int
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		calls++
		if calls < 3 {
			return Err[int](errBoom)
		}
		return Ok(calls)
	})
	if v, err := r.Unwrap(); err != nil || v != 3 {
		t.Fatalf("expected success on third attempt, got %d, %v", v, err)
	}

	calls = 0
	r = Retry(context.Background(), opts, func(context.Context) Result[int] {
		calls++
		return Err[int](errBoom)
	})
	if !errors.Is(r.err, errBoom) || calls != 3 {
		t.Fatalf("expected 3 failed attempts, got %d (%v)", calls, r.err)
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	var calls int
	Retry(context.Background(), RetryOpts{}, func(context.Context) Result[int] {
		calls++
		return Err[int](errBoom)
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour}
	st := RetryStage(opts, Stage[int, int](func(context.Context, int) Result[int] {
		cancel()
		return Err[int](errBoom)
	}))
	if _, err := st(ctx, 1).Unwrap(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffCapped(t *testing.T) {
	o := RetryOpts{InitialWait: time.Second, MaxWait: 3 * time.Second}
	for n, want := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second} {
		if got := o.backoff(n); got != want {
			t.Fatalf("backoff(%d) = %v, want %v", n, got, want)
		}
	}
	if got := o.backoff(80); got != 3*time.Second {
		t.Fatalf("overflowed backoff not capped: %v", got)
	}
}

func TestParMapKeepsOrderAndBound(t *testing.T) {
	var running, peak atomic.Int32
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := ParMap(items, 3, func(n int) int {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return n * n
	})
	for i, n := range items {
		if out[i] != n*n {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], n*n)
		}
	}
	if peak.Load() > 3 {
		t.Fatalf("expected at most 3 workers, saw %d", peak.Load())
	}
	if len(ParMap([]int{}, 2, func(n int) int { return n })) != 0 {
		t.Fatal("empty input")
	}
}

func TestParMapResult(t *testing.T) {
	res := ParMapResult([]int{1, 2}, 0, func(n int) Result[int] {
		if n == 2 {
			return Err[int](errBoom)
		}
		return Ok(n)
	})
	if res[0].IsErr() || res[1].IsOk() {
		t.Fatalf("unexpected results %+v", res)
	}
}

func TestSliceHelpers(t *testing.T) {
	words := []string{"soil", "", "algae", "soil"}
	got := Unique(Filter(words, func(s string) bool { return s != "" }))
	if len(got) != 2 || got[0] != "soil" || got[1] != "algae" {
		t.Fatalf("unexpected %v", got)
	}
	lens := Map(got, func(s string) int { return len(s) })
	if lens[0] != 4 || lens[1] != 5 {
		t.Fatalf("unexpected %v", lens)
	}
}

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 || chunks[2][0] != 5 {
		t.Fatalf("unexpected chunks %v", chunks)
	}
	// Chunks must not alias beyond their bounds.
	chunks[0] = append(chunks[0], 99)
	if chunks[1][0] != 3 {
		t.Fatal("append to a chunk overwrote the next one")
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("n <= 0 must return nil")
	}
	if len(Chunk([]int{}, 3)) != 0 {
		t.Fatal("empty input")
	}
}
