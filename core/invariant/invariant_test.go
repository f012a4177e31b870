package invariant_test

import (
	"context"
	"testing"

	"github.com/bscript/container/core/invariant"
)

func TestPreconditionPasses(t *testing.T) {
	invariant.Precondition(true, "should not panic")
}

func TestPreconditionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	invariant.Precondition(false, "boom %d", 1)
}

func TestNotNilTypedNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on typed nil pointer")
		}
	}()
	var p *int
	invariant.NotNil(p, "p")
}

func TestBoundedAllowsExactLimit(t *testing.T) {
	invariant.Bounded(10, 10, "update_refs")
}

func TestBoundedPanicsPastLimit(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	invariant.Bounded(11, 10, "update_refs")
}

func TestContextNotBackgroundPasses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	invariant.ContextNotBackground(ctx, "test")
}

func TestContextNotBackgroundPanicsOnBackground(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	invariant.ContextNotBackground(context.Background(), "test")
}
