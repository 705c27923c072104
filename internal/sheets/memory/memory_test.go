package memory

import (
	"context"
	"errors"
	"testing"

	"txlens/internal/core"
)

func TestMirrorReplace(t *testing.T) {
	m := New()
	ctx := context.Background()

	first := []core.Transaction{{ID: 1, Description: "a"}, {ID: 2, Description: "b"}}
	if err := m.ReplaceTransactions(ctx, first); err != nil {
		t.Fatal(err)
	}
	first[0].Description = "mutated"

	if err := m.ReplaceTransactions(ctx, first[1:]); err != nil {
		t.Fatal(err)
	}

	snap := m.Snapshot()
	if len(snap) != 1 || snap[0].Description != "b" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if m.Replaced() != 2 {
		t.Fatalf("replaced = %d, want 2", m.Replaced())
	}
}

func TestMirrorFailure(t *testing.T) {
	m := New()
	boom := errors.New("quota exceeded")
	m.FailWith(boom)

	if err := m.ReplaceTransactions(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if m.Replaced() != 0 {
		t.Fatal("failed replace must not count")
	}

	m.FailWith(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.ReplaceTransactions(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
