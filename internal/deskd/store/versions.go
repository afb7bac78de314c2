package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sorenmh/gendesk/internal/deskd/models"
)

// VersionStore handles app version database operations
type VersionStore struct {
	db *sql.DB
}

// NewVersionStore creates a new version store
func NewVersionStore(db *sql.DB) *VersionStore {
	return &VersionStore{db: db}
}

// CreateNext appends a version numbered max+1 for the app. Numbering and
// insert share a transaction so concurrent runs cannot reuse a number.
func (s *VersionStore) CreateNext(ctx context.Context, appID, storagePath, prompt string) (*models.Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version_number), 0) FROM app_versions WHERE app_id = ?", appID).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version number: %w", err)
	}

	version := &models.Version{
		ID:              uuid.New().String(),
		AppID:           appID,
		VersionNumber:   current + 1,
		HTMLStoragePath: storagePath,
		Prompt:          prompt,
		CreatedAt:       time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO app_versions (id, app_id, version_number, html_storage_path, prompt, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, version.ID, version.AppID, version.VersionNumber, version.HTMLStoragePath, version.Prompt, version.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit version: %w", err)
	}

	return version, nil
}

// List lists an app's versions, newest first
func (s *VersionStore) List(ctx context.Context, appID string) ([]models.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, app_id, version_number, html_storage_path, prompt, created_at
		FROM app_versions
		WHERE app_id = ?
		ORDER BY version_number DESC
	`, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := []models.Version{}
	for rows.Next() {
		var v models.Version
		if err := rows.Scan(&v.ID, &v.AppID, &v.VersionNumber, &v.HTMLStoragePath, &v.Prompt, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

// GetByNumber gets one version of an app
func (s *VersionStore) GetByNumber(ctx context.Context, appID string, number int) (*models.Version, error) {
	var v models.Version
	err := s.db.QueryRowContext(ctx, `
		SELECT id, app_id, version_number, html_storage_path, prompt, created_at
		FROM app_versions
		WHERE app_id = ? AND version_number = ?
	`, appID, number).Scan(&v.ID, &v.AppID, &v.VersionNumber, &v.HTMLStoragePath, &v.Prompt, &v.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("version %d of app %s: %w", number, appID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return &v, nil
}
