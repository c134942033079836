package core

import (
	"context"
	"time"
)

type (
	// Template is an uploaded background image together with the last saved
	// editor bundle and composited render.
	Template struct {
		ID               string    `json:"id"`
		OriginalFilename string    `json:"originalFilename"`
		ContentType      string    `json:"contentType"`
		Image            []byte    `json:"image,omitempty"`    // Source image, not included in list views.
		Bundle           []byte    `json:"bundle,omitempty"`   // Opaque editor bundle (elements, people, quote).
		Rendered         []byte    `json:"rendered,omitempty"` // Last saved PNG composite.
		CreatedAt        time.Time `json:"createdAt"`
		UpdatedAt        time.Time `json:"updatedAt"`
	}

	// TemplateStore defines the persistence layer for templates.
	TemplateStore interface {
		// Create stores a new template and returns its generated ID.
		Create(ctx context.Context, template *Template) (string, error)

		// FindID returns a single template including its binary payloads.
		FindID(ctx context.Context, id string) (*Template, error)

		// List returns metadata for all templates.
		// The returned templates should not carry Image, Bundle or Rendered.
		List(ctx context.Context) ([]*Template, error)

		// Save replaces an existing template. It fails with ErrNotFound when
		// the template does not exist.
		Save(ctx context.Context, template *Template) error

		// Delete removes a template.
		Delete(ctx context.Context, id string) error
	}
)

// Summary returns a copy of t without its binary payloads.
func (t *Template) Summary() *Template {
	return &Template{
		ID:               t.ID,
		OriginalFilename: t.OriginalFilename,
		ContentType:      t.ContentType,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}
