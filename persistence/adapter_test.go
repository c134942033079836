package persistence

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"birthday-templates/core"
	"birthday-templates/editor"
	"birthday-templates/stores/memory"
)

// failingStore wraps a real store and injects errors.
type failingStore struct {
	core.TemplateStore
	findErr error
	saveErr error
}

func (s *failingStore) FindID(ctx context.Context, id string) (*core.Template, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.TemplateStore.FindID(ctx, id)
}

func (s *failingStore) Save(ctx context.Context, t *core.Template) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.TemplateStore.Save(ctx, t)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUpload(t *testing.T) {
	cache := NewMemoryCache()
	adapter := NewAdapter(memory.NewStore(), cache)
	data := pngBytes(t, 40, 30)

	tpl, err := adapter.Upload(context.Background(), "card.png", data)
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if tpl.ID == "" || tpl.ContentType != "image/png" || tpl.OriginalFilename != "card.png" {
		t.Errorf("Upload() = %+v", tpl)
	}
	if tpl.Image != nil {
		t.Error("Upload() should return a summary without the image")
	}

	cached, ok := adapter.Cached(tpl.ID)
	if !ok {
		t.Fatal("Upload() did not populate the local cache")
	}
	if !strings.HasPrefix(cached.DataURL, "data:image/png;base64,") || !bytes.Equal(cached.Image, data) {
		t.Errorf("cached image mismatch: %q", cached.DataURL[:30])
	}
	if _, ok := adapter.Cached("another-template"); ok {
		t.Error("Cached() returned an image for a different template")
	}
}

func TestUpload_RejectsNonImage(t *testing.T) {
	store := memory.NewStore()
	cache := NewMemoryCache()
	adapter := NewAdapter(store, cache)

	_, err := adapter.Upload(context.Background(), "notes.txt", []byte("hello"))
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Upload() error = %v, want ErrInvalidInput", err)
	}
	if list, _ := store.List(context.Background()); len(list) != 0 {
		t.Errorf("rejected upload created %d templates", len(list))
	}
	if _, ok := cache.Get(CacheKey); ok {
		t.Error("rejected upload touched the cache")
	}
}

func TestFetch(t *testing.T) {
	store := memory.NewStore()
	adapter := NewAdapter(store, nil)
	ctx := context.Background()
	data := pngBytes(t, 10, 10)

	id, err := store.Create(ctx, &core.Template{ContentType: "image/png", Image: data})
	if err != nil {
		t.Fatal(err)
	}

	got, err := adapter.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if !bytes.Equal(got.Image, data) || got.FromCache || got.Bundle != nil {
		t.Errorf("Fetch() = %+v", got)
	}

	if _, err := adapter.Fetch(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestFetch_FallsBackToCache(t *testing.T) {
	cache := NewMemoryCache()
	data := pngBytes(t, 10, 10)
	if err := writeCachedImage(cache, CachedImage{TemplateID: "tpl-1", DataURL: EncodeDataURL("image/png", data)}); err != nil {
		t.Fatal(err)
	}
	adapter := NewAdapter(memory.NewStore(), cache)

	got, err := adapter.Fetch(context.Background(), "tpl-1")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if !got.FromCache || !bytes.Equal(got.Image, data) {
		t.Errorf("Fetch() = %+v, want cached image", got)
	}
}

func TestFetch_StoreError(t *testing.T) {
	adapter := NewAdapter(&failingStore{TemplateStore: memory.NewStore(), findErr: errors.New("disk on fire")}, nil)
	if _, err := adapter.Fetch(context.Background(), "x"); !errors.Is(err, core.ErrLoadFailure) {
		t.Errorf("Fetch() error = %v, want ErrLoadFailure", err)
	}
}

func TestSave(t *testing.T) {
	store := memory.NewStore()
	adapter := NewAdapter(store, nil)
	ctx := context.Background()

	tpl, err := adapter.Upload(ctx, "card.png", pngBytes(t, 10, 10))
	if err != nil {
		t.Fatal(err)
	}

	state := editor.SetQuote(editor.NewState(), "Cheers")
	if err := adapter.Save(ctx, tpl.ID, state.Bundle(), []byte("png")); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := adapter.Fetch(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if got.Bundle == nil || got.Bundle.Quote != "Cheers" {
		t.Errorf("Fetch() bundle = %+v, want quote Cheers", got.Bundle)
	}
	stored, _ := store.FindID(ctx, tpl.ID)
	if string(stored.Rendered) != "png" {
		t.Errorf("rendered = %q, want png", stored.Rendered)
	}
}

func TestSave_Failures(t *testing.T) {
	ctx := context.Background()
	base := memory.NewStore()
	id, err := base.Create(ctx, &core.Template{ContentType: "image/png", Image: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}

	adapter := NewAdapter(&failingStore{TemplateStore: base, saveErr: errors.New("quota exceeded")}, nil)
	err = adapter.Save(ctx, id, editor.NewState().Bundle(), nil)
	if !errors.Is(err, core.ErrSaveFailure) {
		t.Errorf("Save() error = %v, want ErrSaveFailure", err)
	}
	if stored, _ := base.FindID(ctx, id); stored.Bundle != nil {
		t.Error("failed Save() left a partial write")
	}

	err = NewAdapter(base, nil).Save(ctx, "missing", editor.NewState().Bundle(), nil)
	if !errors.Is(err, core.ErrSaveFailure) || !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Save() error = %v, want ErrSaveFailure and ErrNotFound", err)
	}
}

func TestDataURL(t *testing.T) {
	url := EncodeDataURL("image/jpeg", []byte{1, 2, 3})
	ct, data, err := DecodeDataURL(url)
	if err != nil {
		t.Fatalf("DecodeDataURL() failed: %v", err)
	}
	if ct != "image/jpeg" || !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("DecodeDataURL() = (%s, %v)", ct, data)
	}

	for _, bad := range []string{"http://x", "data:image/png;base64", "data:text/plain,hi", "data:image/png;base64,%%%"} {
		if _, _, err := DecodeDataURL(bad); !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("DecodeDataURL(%q) error = %v, want ErrInvalidInput", bad, err)
		}
	}
}
