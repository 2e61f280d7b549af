package scheduler

import (
	"context"
	"testing"
	"time"
)

type ctxKey struct{}

func TestRunner_RejectsBadSpec(t *testing.T) {
	r := New(context.Background())
	if _, err := r.Add("every fifteen minutes", func(context.Context) {}); err == nil {
		t.Error("Expected an error for an invalid spec")
	}
}

func TestRunner_RunsWithBaseContext(t *testing.T) {
	base := context.WithValue(context.Background(), ctxKey{}, "base")
	r := New(base)

	got := make(chan any, 1)
	id, err := r.Add("@every 1s", func(ctx context.Context) {
		select {
		case got <- ctx.Value(ctxKey{}):
		default:
		}
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	r.Start()
	defer r.Stop()

	select {
	case v := <-got:
		if v != "base" {
			t.Errorf("Job got context value %v", v)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Job did not run")
	}
	if next := r.Next(id); next.IsZero() {
		t.Error("Expected a scheduled next run")
	}
}
