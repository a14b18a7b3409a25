package notebook

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	f, err := os.CreateTemp("", "folio-notebook-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	db, err := store.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db, slog.New(slog.DiscardHandler))
}

func TestCreate_ValidatesName(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	for _, name := range []string{"", "   ", "a/b", `a\b`} {
		if _, err := s.Create(ctx, CreateInput{Name: name}); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("Create(%q) err = %v, want ErrValidation", name, err)
		}
	}
	missing := "missing"
	if _, err := s.Create(ctx, CreateInput{Name: "x", ParentID: &missing}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown parent err = %v", err)
	}
}

func TestMove_RejectsCycles(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, CreateInput{Name: "a"})
	b, _ := s.Create(ctx, CreateInput{Name: "b", ParentID: &a.ID})
	c, _ := s.Create(ctx, CreateInput{Name: "c", ParentID: &b.ID})

	if _, err := s.Move(ctx, a.ID, &a.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("self move err = %v", err)
	}
	if _, err := s.Move(ctx, a.ID, &c.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("move under descendant err = %v", err)
	}
	if _, err := s.Move(ctx, "missing", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("move unknown err = %v", err)
	}

	moved, err := s.Move(ctx, c.ID, &a.ID)
	if err != nil {
		t.Fatalf("legal move: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != a.ID {
		t.Errorf("parent = %v, want %s", moved.ParentID, a.ID)
	}
	anc, _ := s.Ancestors(ctx, c.ID)
	if diff := cmp.Diff([]string{a.ID}, anc); diff != "" {
		t.Errorf("ancestors (-want +got):\n%s", diff)
	}
}

func TestDelete_ReparentsChildren(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	a, _ := s.Create(ctx, CreateInput{Name: "a"})
	b, _ := s.Create(ctx, CreateInput{Name: "b", ParentID: &a.ID})
	c, _ := s.Create(ctx, CreateInput{Name: "c", ParentID: &b.ID})

	if err := s.Delete(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	anc, _ := s.Ancestors(ctx, c.ID)
	if diff := cmp.Diff([]string{a.ID}, anc); diff != "" {
		t.Errorf("c ancestors after delete (-want +got):\n%s", diff)
	}
	if err := s.Delete(ctx, b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}

	all, _ := s.List(ctx, "")
	if len(all) != 2 {
		t.Errorf("notebooks = %d, want 2", len(all))
	}
}
