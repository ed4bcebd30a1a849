package objstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_PutGet(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	url, err := store.Put(ctx, "plants/p1/image.png", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url == "" {
		t.Error("Put() returned empty URL")
	}

	got, err := store.Get(ctx, "plants/p1/image.png")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "png-bytes" {
		t.Errorf("Get() = %q", got)
	}

	// Mutating the returned slice must not affect stored data.
	got[0] = 'X'
	again, err := store.Get(ctx, "plants/p1/image.png")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(again) != "png-bytes" {
		t.Errorf("stored object mutated through returned slice: %q", again)
	}
}

func TestMemory_GetNotFound(t *testing.T) {
	store := NewMemory()

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemory_Exists(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ok, err := store.Exists(ctx, "k")
	if err != nil || ok {
		t.Errorf("Exists() = %v, %v, want false, nil", ok, err)
	}

	if _, err := store.Put(ctx, "k", []byte("v"), ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	ok, err = store.Exists(ctx, "k")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v, want true, nil", ok, err)
	}
}
