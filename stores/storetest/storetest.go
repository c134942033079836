// Package storetest runs the behaviour every core.TemplateStore must share.
package storetest

import (
	"birthday-templates/core"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// Run exercises a store created fresh by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) core.TemplateStore) {
	t.Run("CreateAndFind", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, &core.Template{
			OriginalFilename: "card.png",
			ContentType:      "image/png",
			Image:            []byte("image-bytes"),
		})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if len(id) != 26 {
			t.Errorf("Create() returned invalid ID length: got %d, want 26", len(id))
		}

		got, err := store.FindID(ctx, id)
		if err != nil {
			t.Fatalf("FindID() failed: %v", err)
		}
		if got.ID != id || got.OriginalFilename != "card.png" || got.ContentType != "image/png" {
			t.Errorf("FindID() metadata mismatch: %+v", got)
		}
		if !bytes.Equal(got.Image, []byte("image-bytes")) {
			t.Errorf("FindID() image mismatch: got %q", got.Image)
		}
		if got.CreatedAt.IsZero() {
			t.Error("Create() should set CreatedAt")
		}
	})

	t.Run("FindMissing", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.FindID(context.Background(), "missing-template"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("FindID() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("SaveReplacesPayloads", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, &core.Template{ContentType: "image/png", Image: []byte("v1")})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		created, _ := store.FindID(ctx, id)

		time.Sleep(5 * time.Millisecond)
		update := *created
		update.Bundle = []byte(`{"quote":"hi"}`)
		update.Rendered = []byte("png")
		if err := store.Save(ctx, &update); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}

		got, err := store.FindID(ctx, id)
		if err != nil {
			t.Fatalf("FindID() failed: %v", err)
		}
		if string(got.Bundle) != `{"quote":"hi"}` || string(got.Rendered) != "png" || string(got.Image) != "v1" {
			t.Errorf("Save() payload mismatch: %+v", got)
		}
		if !got.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("Save() changed CreatedAt: got %v, want %v", got.CreatedAt, created.CreatedAt)
		}
		if !got.UpdatedAt.After(created.UpdatedAt) {
			t.Errorf("Save() should advance UpdatedAt: %v <= %v", got.UpdatedAt, created.UpdatedAt)
		}
	})

	t.Run("SaveMissing", func(t *testing.T) {
		store := newStore(t)
		err := store.Save(context.Background(), &core.Template{ID: "missing-template"})
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Save() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListOmitsPayloads", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, name := range []string{"a.png", "b.png", "c.png"} {
			if _, err := store.Create(ctx, &core.Template{OriginalFilename: name, Image: []byte(name)}); err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
		}

		list, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("List() returned %d templates, want 3", len(list))
		}
		for i, tpl := range list {
			if tpl.Image != nil || tpl.Bundle != nil || tpl.Rendered != nil {
				t.Errorf("List()[%d] carries binary payloads", i)
			}
			if i > 0 && list[i-1].ID >= tpl.ID {
				t.Errorf("List() not ordered by ID at %d", i)
			}
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, &core.Template{Image: []byte("x")})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if err := store.Delete(ctx, id); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if _, err := store.FindID(ctx, id); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("FindID() after Delete() error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, id); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("second Delete() error = %v, want ErrNotFound", err)
		}
	})
}
