package sqlite

import (
	"birthday-templates/core"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	tableStmt := `
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		original_filename TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		image BLOB,
		bundle BLOB,
		rendered BLOB,
		created_at DATETIME,
		updated_at DATETIME
	);`
	if _, err = db.Exec(tableStmt); err != nil {
		log.Fatalf("failed to create templates table: %v", err)
	}

	return &sqliteStore{db}
}

// Close closes the underlying database.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, template *core.Template) (string, error) {
	id := ulid.Make().String()
	now := time.Now().UTC()
	log := logrus.WithFields(logrus.Fields{
		"template_id": id,
		"data_length": len(template.Image),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO templates (id, original_filename, content_type, image, bundle, rendered, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		id, template.OriginalFilename, template.ContentType, template.Image, template.Bundle, template.Rendered, now, now)
	if err != nil {
		log.WithError(err).Error("Failed to create template")
		return "", err
	}
	log.Info("Template created successfully")
	return id, nil
}

func (s *sqliteStore) FindID(ctx context.Context, id string) (*core.Template, error) {
	log := logrus.WithField("template_id", id)
	log.Debug("Retrieving template by ID")

	template := core.Template{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT original_filename, content_type, image, bundle, rendered, created_at, updated_at FROM templates WHERE id = ?", id).
		Scan(&template.OriginalFilename, &template.ContentType, &template.Image, &template.Bundle, &template.Rendered, &template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Template with specified ID not found")
			return nil, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve template")
		return nil, err
	}
	return &template, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]*core.Template, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, original_filename, content_type, created_at, updated_at FROM templates ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []*core.Template{}
	for rows.Next() {
		var template core.Template
		if err := rows.Scan(&template.ID, &template.OriginalFilename, &template.ContentType, &template.CreatedAt, &template.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, &template)
	}
	return templates, rows.Err()
}

func (s *sqliteStore) Save(ctx context.Context, template *core.Template) error {
	log := logrus.WithField("template_id", template.ID)

	res, err := s.db.ExecContext(ctx,
		"UPDATE templates SET original_filename = ?, content_type = ?, image = ?, bundle = ?, rendered = ?, updated_at = ? WHERE id = ?",
		template.OriginalFilename, template.ContentType, template.Image, template.Bundle, template.Rendered, time.Now().UTC(), template.ID)
	if err != nil {
		log.WithError(err).Error("Failed to save template")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warn("Cannot save unknown template")
		return fmt.Errorf("template %s: %w", template.ID, core.ErrNotFound)
	}
	log.Info("Template saved successfully")
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	logrus.WithField("template_id", id).Info("Template deleted successfully")
	return nil
}
