package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTemplateSummary(t *testing.T) {
	now := time.Now()
	tpl := &Template{
		ID:               "tpl-1",
		OriginalFilename: "card.png",
		ContentType:      "image/png",
		Image:            []byte("image"),
		Bundle:           []byte("{}"),
		Rendered:         []byte("png"),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	summary := tpl.Summary()
	if summary.ID != tpl.ID || summary.OriginalFilename != tpl.OriginalFilename {
		t.Errorf("Summary() lost metadata: %+v", summary)
	}
	if summary.Image != nil || summary.Bundle != nil || summary.Rendered != nil {
		t.Error("Summary() should drop binary payloads")
	}
	if tpl.Image == nil {
		t.Error("Summary() must not modify the original template")
	}
}

func TestErrorKindsWrap(t *testing.T) {
	err := fmt.Errorf("template %s: %w", "abc", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped error should match ErrNotFound")
	}
	if errors.Is(err, ErrSaveFailure) {
		t.Error("wrapped error should not match ErrSaveFailure")
	}
}
