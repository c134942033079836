package filesystem

import (
	"birthday-templates/core"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const fileExt = ".json"

// fsStore keeps one JSON file per template under basePath.
type fsStore struct {
	basePath string
	mu       sync.Mutex
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// templatePath resolves the file for id and rejects ids that would escape basePath.
func (s *fsStore) templatePath(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", fmt.Errorf("invalid template id %q: %w", id, core.ErrInvalidInput)
	}
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filepath.Join(s.basePath, id+fileExt))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid template id %q: %w", id, core.ErrInvalidInput)
	}
	return absFile, nil
}

func (s *fsStore) read(id string) (*core.Template, error) {
	filePath, err := s.templatePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	var template core.Template
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %s: %w", id, err)
	}
	return &template, nil
}

func (s *fsStore) write(template *core.Template) error {
	filePath, err := s.templatePath(template.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}

func (s *fsStore) Create(ctx context.Context, template *core.Template) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *template
	stored.ID = ulid.Make().String()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt

	log := logrus.WithFields(logrus.Fields{
		"template_id": stored.ID,
		"data_length": len(stored.Image),
	})
	if err := s.write(&stored); err != nil {
		log.WithError(err).Error("Failed to create template")
		return "", err
	}
	log.Info("Template created successfully")
	return stored.ID, nil
}

func (s *fsStore) FindID(ctx context.Context, id string) (*core.Template, error) {
	log := logrus.WithField("template_id", id)
	template, err := s.read(id)
	if err != nil {
		log.WithError(err).Warn("Failed to retrieve template")
		return nil, err
	}
	log.Debug("Template retrieved successfully")
	return template, nil
}

func (s *fsStore) List(ctx context.Context) ([]*core.Template, error) {
	log := logrus.WithField("path", s.basePath)

	files, err := os.ReadDir(s.basePath)
	if err != nil {
		log.WithError(err).Error("Failed to read template directory")
		return nil, err
	}

	templates := make([]*core.Template, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), fileExt) {
			continue
		}
		template, err := s.read(strings.TrimSuffix(file.Name(), fileExt))
		if err != nil {
			log.WithError(err).Warnf("Skipping unreadable template file %s", file.Name())
			continue
		}
		templates = append(templates, template.Summary())
	}
	slices.SortFunc(templates, func(a, b *core.Template) int { return strings.Compare(a.ID, b.ID) })

	log.Debugf("Listed %d templates", len(templates))
	return templates, nil
}

func (s *fsStore) Save(ctx context.Context, template *core.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("template_id", template.ID)
	existing, err := s.read(template.ID)
	if err != nil {
		log.WithError(err).Warn("Cannot save template")
		return err
	}

	stored := *template
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now()
	if err := s.write(&stored); err != nil {
		log.WithError(err).Error("Failed to write template file")
		return err
	}
	log.Info("Template saved successfully")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, id string) error {
	filePath, err := s.templatePath(id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"template_id": id, "path": filePath})

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("Template file not found for deletion")
			return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to delete template file")
		return err
	}
	log.Info("Template deleted successfully")
	return nil
}
