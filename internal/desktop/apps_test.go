package desktop

import (
	"testing"
	"time"

	"github.com/sorenmh/gendesk/internal/deskd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestReconcile(t *testing.T) {
	now := time.Now()
	local := Placeholder("app-1", "a clock", "model-a", now)

	merged := Reconcile(local, models.Snapshot{
		ID:     "app-1",
		Name:   "Clock",
		Icon:   "🕰",
		Status: models.StatusGenerating,
	})

	assert.Equal(t, "Clock", merged.Name)
	assert.Equal(t, "🕰", merged.Icon)
	assert.Equal(t, models.StatusGenerating, merged.Status)
	assert.Equal(t, "a clock", merged.Prompt)
	assert.Equal(t, "model-a", merged.Model)
	assert.Equal(t, now, merged.CreatedAt)

	merged = Reconcile(merged, models.Snapshot{
		ID:               "app-1",
		Name:             "Clock",
		Icon:             "🕰",
		Status:           models.StatusReady,
		GenerationTimeMs: ptr(int64(1200)),
	})
	assert.Equal(t, models.StatusReady, merged.Status)
	require.NotNil(t, merged.GenerationTimeMs)
	assert.Equal(t, int64(1200), *merged.GenerationTimeMs)

	// a later snapshot without a duration keeps the known one
	merged = Reconcile(merged, models.Snapshot{ID: "app-1", Name: "Clock", Icon: "🕰", Status: models.StatusReady})
	require.NotNil(t, merged.GenerationTimeMs)

	// an error message is cleared when the snapshot has none
	failed := Reconcile(merged, models.Snapshot{ID: "app-1", Status: models.StatusError, ErrorMessage: ptr("boom")})
	assert.Equal(t, "boom", *failed.ErrorMessage)
	cleared := Reconcile(failed, models.Snapshot{ID: "app-1", Status: models.StatusGenerating})
	assert.Nil(t, cleared.ErrorMessage)
}

func TestMergeKeysByID(t *testing.T) {
	state := AppsState{Apps: map[string]models.App{}}

	state = Merge(state, models.Snapshot{ID: "a", Name: "A", Status: models.StatusGenerating})
	state = Merge(state, models.Snapshot{ID: "b", Name: "B", Status: models.StatusGenerating})
	next := Merge(state, models.Snapshot{ID: "a", Name: "A2", Status: models.StatusReady})

	assert.Equal(t, []string{"a", "b"}, next.Order)
	assert.Len(t, next.Apps, 2)
	assert.Equal(t, "A2", next.Apps["a"].Name)

	// the input state is untouched
	assert.Equal(t, "A", state.Apps["a"].Name)
}

func TestAppCache(t *testing.T) {
	c := NewAppCache()

	var notified int
	unsubscribe := c.Subscribe(func(AppsState) { notified++ })
	defer unsubscribe()

	c.Upsert(Placeholder("a", "p", "m", time.Now()))
	c.Upsert(Placeholder("b", "p", "m", time.Now()))

	app := c.Apply(models.Snapshot{ID: "a", Name: "Alpha", Icon: "🅰", Status: models.StatusReady})
	assert.Equal(t, "Alpha", app.Name)
	assert.Len(t, c.List(), 2)

	c.MarkFailed("b", "stream closed")
	b, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, models.StatusError, b.Status)
	assert.Equal(t, "stream closed", *b.ErrorMessage)

	c.MarkFailed("missing", "ignored")
	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Remove("a")
	list := c.List()
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	c.Replace([]models.App{{ID: "x"}, {ID: "y"}})
	list = c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "x", list[0].ID)
	assert.Equal(t, "y", list[1].ID)

	assert.Equal(t, 7, notified)
}
