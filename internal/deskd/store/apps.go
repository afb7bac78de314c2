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

const appColumns = `id, owner_id, name, icon, description, prompt, model, generation_time_ms,
	status, error_message, html_storage_path, created_at, updated_at, deleted_at`

// AppStore handles app record database operations
type AppStore struct {
	db *sql.DB
}

// NewAppStore creates a new app store
func NewAppStore(db *sql.DB) *AppStore {
	return &AppStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApp(row rowScanner) (*models.App, error) {
	var (
		app              models.App
		description      sql.NullString
		generationTimeMs sql.NullInt64
		errorMessage     sql.NullString
		htmlStoragePath  sql.NullString
		deletedAt        sql.NullTime
	)

	err := row.Scan(&app.ID, &app.OwnerID, &app.Name, &app.Icon, &description, &app.Prompt, &app.Model,
		&generationTimeMs, &app.Status, &errorMessage, &htmlStoragePath, &app.CreatedAt, &app.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		app.Description = &description.String
	}
	if generationTimeMs.Valid {
		app.GenerationTimeMs = &generationTimeMs.Int64
	}
	if errorMessage.Valid {
		app.ErrorMessage = &errorMessage.String
	}
	if htmlStoragePath.Valid {
		app.HTMLStoragePath = &htmlStoragePath.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		app.DeletedAt = &t
	}

	return &app, nil
}

// Create inserts a new app in status generating with placeholder display fields
func (s *AppStore) Create(ctx context.Context, ownerID, prompt, model string) (*models.App, error) {
	now := time.Now().UTC()
	app := &models.App{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      models.PlaceholderName,
		Icon:      models.PlaceholderIcon,
		Prompt:    prompt,
		Model:     model,
		Status:    models.StatusGenerating,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO apps (id, owner_id, name, icon, prompt, model, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, app.ID, app.OwnerID, app.Name, app.Icon, app.Prompt, app.Model, app.Status, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}

	return app, nil
}

// GetByID gets an app by ID, trashed or not
func (s *AppStore) GetByID(ctx context.Context, id string) (*models.App, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+appColumns+` FROM apps WHERE id = ?`, id)

	app, err := scanApp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("app %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	return app, nil
}

// GetOwned gets an app only if ownerID owns it. Apps owned by someone else are
// reported as not found so their existence does not leak.
func (s *AppStore) GetOwned(ctx context.Context, ownerID, id string) (*models.App, error) {
	app, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.OwnerID != ownerID {
		return nil, fmt.Errorf("app %s: %w", id, models.ErrNotFound)
	}
	return app, nil
}

// VerifyOwner reports whether userID owns the app
func (s *AppStore) VerifyOwner(ctx context.Context, userID, appID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM apps WHERE id = ? AND owner_id = ?)", appID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to verify owner: %w", err)
	}
	return exists, nil
}

// List lists an owner's apps, newest first. trashed selects the trash instead
// of the desktop.
func (s *AppStore) List(ctx context.Context, ownerID string, trashed bool) ([]models.App, error) {
	filter := "deleted_at IS NULL"
	if trashed {
		filter = "deleted_at IS NOT NULL"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+appColumns+`
		FROM apps
		WHERE owner_id = ? AND `+filter+`
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	apps := []models.App{}
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, *app)
	}

	return apps, rows.Err()
}

// UpdateMetadata sets the display fields produced by the metadata phase
func (s *AppStore) UpdateMetadata(ctx context.Context, id string, meta models.Metadata) error {
	return s.exec(ctx, "update metadata", `
		UPDATE apps SET name = ?, icon = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, meta.Name, meta.Icon, meta.Description, time.Now().UTC(), id)
}

// MarkGenerating puts an app back into generating for a regeneration run. The
// storage reference is kept so the last good content stays servable.
func (s *AppStore) MarkGenerating(ctx context.Context, id, prompt, model string) error {
	return s.exec(ctx, "mark generating", `
		UPDATE apps SET status = ?, error_message = NULL, prompt = ?, model = ?, updated_at = ?
		WHERE id = ?
	`, models.StatusGenerating, prompt, model, time.Now().UTC(), id)
}

// MarkReady records a successful run
func (s *AppStore) MarkReady(ctx context.Context, id, storagePath string, durationMs int64) error {
	return s.exec(ctx, "mark ready", `
		UPDATE apps SET status = ?, error_message = NULL, html_storage_path = ?, generation_time_ms = ?, updated_at = ?
		WHERE id = ?
	`, models.StatusReady, storagePath, durationMs, time.Now().UTC(), id)
}

// MarkError records a failed run. The storage reference is left untouched.
func (s *AppStore) MarkError(ctx context.Context, id, message string) error {
	return s.exec(ctx, "mark error", `
		UPDATE apps SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, models.StatusError, message, time.Now().UTC(), id)
}

// Update applies a partial rename / icon change
func (s *AppStore) Update(ctx context.Context, id string, req models.UpdateAppRequest) error {
	now := time.Now().UTC()
	if req.Name != nil {
		if err := s.exec(ctx, "rename app", `UPDATE apps SET name = ?, updated_at = ? WHERE id = ?`, *req.Name, now, id); err != nil {
			return err
		}
	}
	if req.Icon != nil {
		if err := s.exec(ctx, "update icon", `UPDATE apps SET icon = ?, updated_at = ? WHERE id = ?`, *req.Icon, now, id); err != nil {
			return err
		}
	}
	return nil
}

// SetContent points the app at an existing version's content
func (s *AppStore) SetContent(ctx context.Context, id, storagePath, prompt string) error {
	return s.exec(ctx, "set content", `
		UPDATE apps SET html_storage_path = ?, prompt = ?, status = ?, error_message = NULL, updated_at = ?
		WHERE id = ?
	`, storagePath, prompt, models.StatusReady, time.Now().UTC(), id)
}

// SoftDelete moves an app to the trash
func (s *AppStore) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.exec(ctx, "trash app", `UPDATE apps SET deleted_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
}

// Restore takes an app out of the trash
func (s *AppStore) Restore(ctx context.Context, id string) error {
	return s.exec(ctx, "restore app", `UPDATE apps SET deleted_at = NULL, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
}

// Delete permanently removes an app and its version rows
func (s *AppStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM app_versions WHERE app_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete versions: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM apps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete app: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("app %s: %w", id, models.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// StorageRefs returns every distinct content reference held by the app and
// its versions.
func (s *AppStore) StorageRefs(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT html_storage_path FROM apps WHERE id = ? AND html_storage_path IS NOT NULL
		UNION
		SELECT html_storage_path FROM app_versions WHERE app_id = ?
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage refs: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan storage ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *AppStore) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	// the id is always the last argument
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("app %v: %w", args[len(args)-1], models.ErrNotFound)
	}
	return nil
}
