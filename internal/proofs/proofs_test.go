package proofs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/uploads/")
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	artifact, err := store.Put(context.Background(), Upload{
		OriginalName: "Receipt.PNG",
		MimeType:     "image/png",
		Size:         5,
		Body:         strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if !strings.HasPrefix(artifact.URL, "http://localhost:8080/uploads/payment-") {
		t.Fatalf("unexpected url %q", artifact.URL)
	}
	if !strings.HasSuffix(artifact.PublicID, ".png") {
		t.Fatalf("expected lowercased extension, got %q", artifact.PublicID)
	}
	if artifact.OriginalName != "Receipt.PNG" || artifact.MimeType != "image/png" || artifact.Size != 5 {
		t.Fatalf("unexpected artifact %+v", artifact)
	}

	data, err := os.ReadFile(filepath.Join(dir, artifact.PublicID))
	if err != nil {
		t.Fatalf("read stored proof: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected stored content %q", data)
	}
}

func TestLocalStoreHonoursCancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, Upload{OriginalName: "a.pdf", Body: strings.NewReader("x")}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
