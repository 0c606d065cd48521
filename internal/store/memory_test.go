package store

import (
	"context"
	"testing"
	"time"

	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

func TestMemoryCacheSaveLoadDelete(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	rec := models.EnrollmentRecord{UserID: "u1", Alias: "alias1"}
	if err := c.Save(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := c.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Alias != "alias1" {
		t.Fatalf("expected loaded alias to match saved record")
	}

	if err := c.Delete(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Load(ctx, "u1"); errs.KindOf(err) != errs.NotFound {
		t.Fatalf("expected NotFound after delete, got %v", errs.KindOf(err))
	}
}

func TestMemoryCacheLoadMissingIsNotFound(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	if _, err := c.Load(context.Background(), "missing"); errs.KindOf(err) != errs.NotFound {
		t.Fatalf("expected NotFound, got %v", errs.KindOf(err))
	}
}

func TestMemoryCacheExpiresEntry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	rec := models.EnrollmentRecord{UserID: "u1", ExpiresAt: time.Now().Add(-time.Second)}
	if err := c.Save(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Load(ctx, "u1"); errs.KindOf(err) != errs.NotFound {
		t.Fatalf("expected an already-expired entry to behave as NotFound, got %v", errs.KindOf(err))
	}
}

func TestMemoryCacheDeleteIsIdempotent(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	if err := c.Delete(context.Background(), "never-existed"); err != nil {
		t.Fatalf("expected delete of a nonexistent user to succeed, got %v", err)
	}
}
