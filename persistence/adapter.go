// Package persistence moves templates between the editor and a
// core.TemplateStore: uploading images, fetching them back for editing
// and saving the edited bundle with its rendered composite.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"birthday-templates/core"
	"birthday-templates/editor"
	"birthday-templates/render"

	"github.com/sirupsen/logrus"
)

// Fetched is a template image ready for the editor.
type Fetched struct {
	TemplateID  string
	ContentType string
	Image       []byte
	DataURL     string

	// Bundle is the last saved editor content, nil if never saved.
	Bundle *editor.Bundle

	// FromCache is set when the image came from the local cache.
	FromCache bool
}

type Adapter struct {
	store core.TemplateStore
	cache Cache
}

func NewAdapter(store core.TemplateStore, cache Cache) *Adapter {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Adapter{store: store, cache: cache}
}

// Upload stores data as a new template and caches it locally. Payloads
// that are not a supported image are rejected before anything is written.
func (a *Adapter) Upload(ctx context.Context, filename string, data []byte) (*core.Template, error) {
	contentType, width, height, err := render.Sniff(data)
	if err != nil {
		return nil, err
	}

	template := &core.Template{
		OriginalFilename: filename,
		ContentType:      contentType,
		Image:            data,
	}
	id, err := a.store.Create(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSaveFailure, err)
	}
	template.ID = id

	log := logrus.WithFields(logrus.Fields{
		"template_id": id,
		"filename":    filename,
		"size":        fmt.Sprintf("%dx%d", width, height),
	})
	err = writeCachedImage(a.cache, CachedImage{TemplateID: id, DataURL: EncodeDataURL(contentType, data)})
	if err != nil {
		log.WithError(err).Warn("Failed to cache uploaded image")
	}
	log.Info("Template uploaded")

	if stored, err := a.store.FindID(ctx, id); err == nil {
		return stored.Summary(), nil
	}
	return template.Summary(), nil
}

// Cached returns the locally cached image if it belongs to templateID.
func (a *Adapter) Cached(templateID string) (*Fetched, bool) {
	img, ok := readCachedImage(a.cache)
	if !ok || img.TemplateID != templateID {
		return nil, false
	}
	contentType, data, err := DecodeDataURL(img.DataURL)
	if err != nil {
		logrus.WithError(err).Warn("Discarding unreadable cached image")
		return nil, false
	}
	return &Fetched{
		TemplateID:  templateID,
		ContentType: contentType,
		Image:       data,
		DataURL:     img.DataURL,
		FromCache:   true,
	}, true
}

// Fetch loads a template image and its saved bundle from the store,
// falling back to the local cache when the store has no such template.
func (a *Adapter) Fetch(ctx context.Context, id string) (*Fetched, error) {
	template, err := a.store.FindID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		if cached, ok := a.Cached(id); ok {
			return cached, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrLoadFailure, err)
	}

	fetched := &Fetched{
		TemplateID:  template.ID,
		ContentType: template.ContentType,
		Image:       template.Image,
		DataURL:     EncodeDataURL(template.ContentType, template.Image),
	}
	if len(template.Bundle) > 0 {
		bundle, err := editor.DecodeBundle(template.Bundle)
		if err != nil {
			logrus.WithField("template_id", id).WithError(err).Warn("Ignoring unreadable saved bundle")
		} else {
			fetched.Bundle = &bundle
		}
	}
	return fetched, nil
}

// Save stores the bundle and rendered PNG on an existing template in a
// single write. Every failure wraps core.ErrSaveFailure.
func (a *Adapter) Save(ctx context.Context, id string, bundle editor.Bundle, rendered []byte) error {
	template, err := a.store.FindID(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrSaveFailure, err)
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("%w: encode bundle: %w", core.ErrSaveFailure, err)
	}
	template.Bundle = data
	template.Rendered = rendered
	if err := a.store.Save(ctx, template); err != nil {
		return fmt.Errorf("%w: %w", core.ErrSaveFailure, err)
	}
	logrus.WithFields(logrus.Fields{
		"template_id":   id,
		"bundle_length": len(data),
		"png_length":    len(rendered),
	}).Info("Template saved")
	return nil
}
