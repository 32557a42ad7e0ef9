package imagestore

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLocalStore_SaveAndLoad(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx := context.Background()

	data := []byte("fake image bytes")
	ref, err := store.Save(ctx, "voucher.png", data)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !strings.HasPrefix(ref, "/uploads/") {
		t.Errorf("ref = %q, want /uploads/ prefix", ref)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Errorf("ref = %q, want original extension kept", ref)
	}

	got, err := store.Load(ctx, ref)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("loaded bytes differ from saved bytes")
	}
}

func TestLocalStore_DefaultExtension(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ref, err := store.Save(context.Background(), "noext", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(ref, ".jpg") {
		t.Errorf("ref = %q, want .jpg fallback", ref)
	}
}

func TestLocalStore_UniqueNames(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ref1, _ := store.Save(ctx, "same.jpg", []byte("one"))
	ref2, _ := store.Save(ctx, "same.jpg", []byte("two"))
	if ref1 == ref2 {
		t.Error("same-named uploads must get distinct references")
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, ref := range []string{"/uploads/../etc/passwd", "/uploads/a/b.jpg", "/uploads/", "plain.jpg/../x"} {
		t.Run(ref, func(t *testing.T) {
			if _, err := store.Load(context.Background(), ref); err == nil {
				t.Errorf("Load(%q) expected error", ref)
			}
		})
	}
}
