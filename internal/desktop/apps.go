package desktop

import (
	"time"

	"github.com/sorenmh/gendesk/internal/deskd/models"
)

// AppsState is the local app cache keyed by id. Order keeps insertion order
// so listings are stable.
type AppsState struct {
	Apps  map[string]models.App
	Order []string
}

func (s AppsState) clone() AppsState {
	apps := make(map[string]models.App, len(s.Apps))
	for id, app := range s.Apps {
		apps[id] = app
	}
	order := make([]string, len(s.Order))
	copy(order, s.Order)
	return AppsState{Apps: apps, Order: order}
}

// Placeholder is the optimistic record shown before the server has named
// the app.
func Placeholder(id, prompt, model string, now time.Time) models.App {
	return models.App{
		ID:        id,
		Name:      models.PlaceholderName,
		Icon:      models.PlaceholderIcon,
		Prompt:    prompt,
		Model:     model,
		Status:    models.StatusGenerating,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reconcile overwrites the display and lifecycle fields of local with the
// pushed snapshot. Fields the snapshot does not carry are kept.
func Reconcile(local models.App, remote models.Snapshot) models.App {
	local.ID = remote.ID
	local.Name = remote.Name
	local.Icon = remote.Icon
	local.Status = remote.Status
	local.ErrorMessage = remote.ErrorMessage
	if remote.GenerationTimeMs != nil {
		local.GenerationTimeMs = remote.GenerationTimeMs
	}
	return local
}

// Merge folds a snapshot into the cache: matching records are reconciled in
// place, unknown ids are inserted.
func Merge(state AppsState, remote models.Snapshot) AppsState {
	next := state.clone()
	local, ok := next.Apps[remote.ID]
	if !ok {
		next.Order = append(next.Order, remote.ID)
	}
	next.Apps[remote.ID] = Reconcile(local, remote)
	return next
}

// AppCache is the client's view of the owner's apps.
type AppCache struct {
	store *Store[AppsState]
}

func NewAppCache() *AppCache {
	return &AppCache{store: NewStore(AppsState{Apps: map[string]models.App{}})}
}

func (c *AppCache) Subscribe(fn func(AppsState)) func() {
	return c.store.Subscribe(fn)
}

// Upsert inserts or replaces a full record.
func (c *AppCache) Upsert(app models.App) {
	c.store.Dispatch(func(s AppsState) AppsState {
		next := s.clone()
		if _, ok := next.Apps[app.ID]; !ok {
			next.Order = append(next.Order, app.ID)
		}
		next.Apps[app.ID] = app
		return next
	})
}

// Apply reconciles a pushed snapshot and returns the merged record.
func (c *AppCache) Apply(remote models.Snapshot) models.App {
	state := c.store.Dispatch(func(s AppsState) AppsState {
		return Merge(s, remote)
	})
	return state.Apps[remote.ID]
}

// MarkFailed moves a cached app to error status. Unknown ids are ignored.
func (c *AppCache) MarkFailed(id, message string) {
	c.store.Dispatch(func(s AppsState) AppsState {
		app, ok := s.Apps[id]
		if !ok {
			return s
		}
		next := s.clone()
		app.Status = models.StatusError
		app.ErrorMessage = &message
		next.Apps[id] = app
		return next
	})
}

// Remove drops an app from the cache
func (c *AppCache) Remove(id string) {
	c.store.Dispatch(func(s AppsState) AppsState {
		if _, ok := s.Apps[id]; !ok {
			return s
		}
		next := s.clone()
		delete(next.Apps, id)
		for i, existing := range next.Order {
			if existing == id {
				next.Order = append(next.Order[:i], next.Order[i+1:]...)
				break
			}
		}
		return next
	})
}

// Replace swaps the whole cache for a listing fetched from the server.
func (c *AppCache) Replace(apps []models.App) {
	c.store.Dispatch(func(AppsState) AppsState {
		next := AppsState{Apps: make(map[string]models.App, len(apps)), Order: make([]string, 0, len(apps))}
		for _, app := range apps {
			if _, ok := next.Apps[app.ID]; !ok {
				next.Order = append(next.Order, app.ID)
			}
			next.Apps[app.ID] = app
		}
		return next
	})
}

func (c *AppCache) Get(id string) (models.App, bool) {
	app, ok := c.store.Get().Apps[id]
	return app, ok
}

// List returns cached apps in insertion order.
func (c *AppCache) List() []models.App {
	state := c.store.Get()
	apps := make([]models.App, 0, len(state.Order))
	for _, id := range state.Order {
		apps = append(apps, state.Apps[id])
	}
	return apps
}
