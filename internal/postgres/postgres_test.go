package postgres

import (
	"context"
	"testing"
	"time"
)

func TestQueryObserver_SetAndGet(t *testing.T) {
	// Not parallel: mutates the package-level observer.
	var calls int
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, method, route, outcome string, _ time.Duration) {
		calls++
		if method != "POST" || route != "/api/v1/alerts" || outcome != "ok" {
			t.Errorf("observer got %s %s %s", method, route, outcome)
		}
	}))
	t.Cleanup(func() { SetQueryObserver(nil) })

	obs := getQueryObserver()
	if obs == nil {
		t.Fatal("observer not set")
	}
	obs.ObserveQuery(context.Background(), "POST", "/api/v1/alerts", "ok", time.Millisecond)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	SetQueryObserver(nil)
	if getQueryObserver() != nil {
		t.Error("observer not cleared")
	}
}

func TestWithHTTPMethod(t *testing.T) {
	t.Parallel()

	ctx := WithHTTPMethod(context.Background(), "PATCH")
	if got := httpMethodFromContext(ctx); got != "PATCH" {
		t.Errorf("method = %q, want PATCH", got)
	}

	// Empty method leaves the context untouched.
	base := context.Background()
	if WithHTTPMethod(base, "") != base {
		t.Error("empty method should return the same context")
	}
	if got := httpMethodFromContext(base); got != "" {
		t.Errorf("method on bare context = %q, want empty", got)
	}
}
