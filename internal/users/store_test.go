package users

import (
	"context"
	"errors"
	"testing"
)

func TestEnsureAddsUnknownUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	exists, err := store.Exists(ctx, "alice")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Fatal("new store should not know alice")
	}

	if err := store.Ensure(ctx, "alice"); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	exists, err = store.Exists(ctx, "alice")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("alice should exist after Ensure")
	}

	// Ensure is idempotent.
	if err := store.Ensure(ctx, "alice"); err != nil {
		t.Errorf("repeated Ensure failed: %v", err)
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Register(ctx, "alice", "s3cret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := store.Authenticate(ctx, "alice", "s3cret"); err != nil {
		t.Errorf("Authenticate with correct password failed: %v", err)
	}
	if err := store.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if err := store.Authenticate(ctx, "bob", "s3cret"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Register(ctx, "alice", "s3cret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := store.Register(ctx, "alice", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}
