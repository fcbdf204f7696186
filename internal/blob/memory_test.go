package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Put(ctx, "letters/2026/ref.pdf", "application/pdf", strings.NewReader("first")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := store.Open(ctx, "letters/2026/ref.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("first")) {
		t.Fatalf("unexpected content: %q", data)
	}

	// Second Put at the same path overwrites.
	if err := store.Put(ctx, "letters/2026/ref.pdf", "application/pdf", strings.NewReader("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	rc, err = store.Open(ctx, "letters/2026/ref.pdf")
	if err != nil {
		t.Fatalf("Open after overwrite: %v", err)
	}
	data, _ = io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(data, []byte("second")) {
		t.Fatalf("overwrite not applied: %q", data)
	}
}

func TestMemoryStoreMissingObject(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Open(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open: expected ErrNotFound, got %v", err)
	}
	if _, err := store.SignedURL(ctx, "missing", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SignedURL: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSignedURL(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Put(ctx, "a/b.pdf", "application/pdf", strings.NewReader("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	url, err := store.SignedURL(ctx, "a/b.pdf", 10*time.Minute)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	if !strings.Contains(url, "expires=") {
		t.Fatalf("expected expiry in url: %q", url)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Put(ctx, "a", "text/plain", strings.NewReader("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
