package models

import "time"

// AppStatus is the lifecycle status of a generated app
type AppStatus string

const (
	StatusGenerating AppStatus = "generating"
	StatusReady      AppStatus = "ready"
	StatusError      AppStatus = "error"
)

// IsTerminal reports whether a generation run has finished.
func (s AppStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusError
}

// Placeholder display values used before the metadata phase names an app.
const (
	PlaceholderName = "Generating…"
	PlaceholderIcon = "⏳"
)

// App is the server-side record of one generated application.
type App struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"ownerId"`
	Name             string     `json:"name"`
	Icon             string     `json:"icon"`
	Description      *string    `json:"description,omitempty"`
	Prompt           string     `json:"prompt"`
	Model            string     `json:"model"`
	GenerationTimeMs *int64     `json:"generationTimeMs,omitempty"`
	Status           AppStatus  `json:"status"`
	ErrorMessage     *string    `json:"errorMessage,omitempty"`
	HTMLStoragePath  *string    `json:"htmlStoragePath,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`
}

// Trashed reports whether the app has been soft-deleted.
func (a *App) Trashed() bool {
	return a.DeletedAt != nil
}

// Snapshot returns the subset of the record pushed over the stream channel.
func (a *App) Snapshot() Snapshot {
	return Snapshot{
		ID:               a.ID,
		Name:             a.Name,
		Icon:             a.Icon,
		Status:           a.Status,
		ErrorMessage:     a.ErrorMessage,
		GenerationTimeMs: a.GenerationTimeMs,
	}
}

// Metadata is the display metadata produced by the metadata phase.
type Metadata struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// GenerateRequest starts a new generation
type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Model  string `json:"model,omitempty"`
}

// GenerateResponse is returned as soon as the app record exists
type GenerateResponse struct {
	AppID     string `json:"appId"`
	StreamURL string `json:"streamUrl"`
}

// RegenerateRequest re-runs the code phase for an existing app
type RegenerateRequest struct {
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model,omitempty"`
}

// RegenerateResponse is the response for a regeneration
type RegenerateResponse struct {
	StreamURL string `json:"streamUrl"`
}

// UpdateAppRequest renames an app or changes its icon. At least one field
// must be present.
type UpdateAppRequest struct {
	Name *string `json:"name,omitempty" binding:"omitempty,min=1,max=100"`
	Icon *string `json:"icon,omitempty" binding:"omitempty,glyph"`
}

// Empty reports whether no field was supplied.
func (r UpdateAppRequest) Empty() bool {
	return r.Name == nil && r.Icon == nil
}

// ListAppsResponse is the response for listing apps
type ListAppsResponse struct {
	Apps  []App `json:"apps"`
	Total int   `json:"total"`
}

// EmptyTrashResponse reports how many apps were permanently removed
type EmptyTrashResponse struct {
	Deleted int `json:"deleted"`
}

// HealthResponse is the response for the health endpoint
type HealthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	DatabaseAccessible bool   `json:"databaseAccessible"`
	Storage            string `json:"storage"`
}
