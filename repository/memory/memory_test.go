package memory

import (
	"context"
	"errors"
	"testing"

	"RecordStore/models"
	"RecordStore/repository"
)

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := &models.Account{Email: " A@X.com ", PasswordHash: "h", Role: models.RoleCustomer, Enabled: true}
	if err := s.Save(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	if a.ID == 0 || a.Email != "a@x.com" {
		t.Fatalf("unexpected account %+v", a)
	}
	got, err := s.FindByEmail(ctx, "a@X.COM")
	if err != nil || got.ID != a.ID {
		t.Fatalf("find by email: %v %+v", err, got)
	}
	if err := s.Save(ctx, &models.Account{Email: "A@x.com"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.FindByID(ctx, a.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	b := &models.Account{Email: "a@x.com"}
	if err := s.Save(ctx, b); err != nil {
		t.Fatalf("re-register after delete: %v", err)
	}
	if b.ID == a.ID {
		t.Fatalf("identifier reused")
	}
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()
	s := New()
	it := &models.Item{Name: "Blue Train", Stock: 5}
	if err := s.SaveItem(ctx, it); err != nil {
		t.Fatalf("save item: %v", err)
	}

	if err := s.AdjustStock(ctx, it.ID, 4, -1); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := s.AdjustStock(ctx, it.ID, 5, -2); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	got, _ := s.FindItem(ctx, it.ID)
	if got.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", got.Stock)
	}
	if err := s.AdjustStock(ctx, 999, 0, 1); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCartLines(t *testing.T) {
	ctx := context.Background()
	s := New()

	if lines, err := s.Lines(ctx, 1); err != nil || len(lines) != 0 {
		t.Fatalf("empty cart: %v %v", err, lines)
	}
	_, _ = s.AddToLine(ctx, 1, 9, 2)
	_, _ = s.AddToLine(ctx, 1, 3, 1)
	if qty, err := s.AddToLine(ctx, 1, 9, 3); err != nil || qty != 5 {
		t.Fatalf("increment: %d %v", qty, err)
	}

	lines, _ := s.Lines(ctx, 1)
	if len(lines) != 2 || lines[0].ItemID != 3 || lines[1].Quantity != 5 {
		t.Fatalf("unexpected lines %+v", lines)
	}
	if qty, err := s.TakeLine(ctx, 1, 42); err != nil || qty != 0 {
		t.Fatalf("taking a missing line: %d %v", qty, err)
	}
	if qty, _ := s.TakeLine(ctx, 1, 3); qty != 1 {
		t.Fatalf("expected to take 1, got %d", qty)
	}
	if qty, _ := s.TakeLine(ctx, 1, 3); qty != 0 {
		t.Fatalf("line taken twice: %d", qty)
	}
	if _, err := s.Line(ctx, 1, 42); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_ = s.DeleteCart(ctx, 1)
	if lines, _ := s.Lines(ctx, 1); len(lines) != 0 {
		t.Fatalf("cart not deleted: %+v", lines)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().FindItem(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
