package memory

import (
	"birthday-templates/core"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore keeps templates in process memory.
type memStore struct {
	mu        sync.RWMutex
	templates map[string]core.Template
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{templates: make(map[string]core.Template)}
}

func (s *memStore) Create(ctx context.Context, template *core.Template) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	now := time.Now()
	stored := clone(template)
	stored.ID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.templates[id] = stored

	logrus.WithFields(logrus.Fields{
		"template_id": id,
		"data_length": len(template.Image),
	}).Info("Template created successfully")
	return id, nil
}

func (s *memStore) FindID(ctx context.Context, id string) (*core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("template_id", id)
	val, ok := s.templates[id]
	if !ok {
		log.Warn("Template with specified ID not found")
		return nil, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	log.Debug("Template retrieved successfully")
	out := clone(&val)
	return &out, nil
}

func (s *memStore) List(ctx context.Context) ([]*core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]*core.Template, 0, len(s.templates))
	for _, t := range s.templates {
		templates = append(templates, t.Summary())
	}
	slices.SortFunc(templates, func(a, b *core.Template) int { return strings.Compare(a.ID, b.ID) })

	logrus.Debugf("Listed %d templates", len(templates))
	return templates, nil
}

func (s *memStore) Save(ctx context.Context, template *core.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("template_id", template.ID)
	existing, ok := s.templates[template.ID]
	if !ok {
		log.Warn("Cannot save unknown template")
		return fmt.Errorf("template %s: %w", template.ID, core.ErrNotFound)
	}
	stored := clone(template)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	s.templates[template.ID] = stored

	log.Info("Template saved successfully")
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	delete(s.templates, id)
	logrus.WithField("template_id", id).Info("Template deleted successfully")
	return nil
}

func clone(t *core.Template) core.Template {
	out := *t
	out.Image = slices.Clone(t.Image)
	out.Bundle = slices.Clone(t.Bundle)
	out.Rendered = slices.Clone(t.Rendered)
	return out
}
