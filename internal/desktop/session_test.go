package desktop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sorenmh/gendesk/internal/deskd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend replays a fixed event sequence. When gate is set, Watch waits
// for it to close before emitting anything.
type fakeBackend struct {
	mu          sync.Mutex
	appID       string
	startErr    error
	events      []models.StreamEvent
	watchErr    error
	gate        chan struct{}
	starts      int
	regenerated []string
}

func (f *fakeBackend) StartGeneration(_ context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &models.GenerateResponse{AppID: f.appID, StreamURL: "/api/v1/apps/" + f.appID + "/stream"}, nil
}

func (f *fakeBackend) Regenerate(_ context.Context, appID string, _ models.RegenerateRequest) (*models.RegenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.regenerated = append(f.regenerated, appID)
	return &models.RegenerateResponse{StreamURL: "/api/v1/apps/" + appID + "/stream"}, nil
}

func (f *fakeBackend) Watch(ctx context.Context, _ string, fn func(models.StreamEvent) error) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, event := range f.events {
		if err := fn(event); err != nil {
			return err
		}
	}
	return f.watchErr
}

func snapshotEvent(id, name string, status models.AppStatus) models.StreamEvent {
	return models.StreamEvent{
		Type:     models.EventSnapshot,
		Snapshot: &models.Snapshot{ID: id, Name: name, Icon: "🕰", Status: status},
	}
}

func newTestDesktop(t *testing.T, backend Backend) *Desktop {
	t.Helper()
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, backend, logger)
}

func TestGenerateReconcilesToReady(t *testing.T) {
	backend := &fakeBackend{
		appID: "app-1",
		events: []models.StreamEvent{
			snapshotEvent("app-1", models.PlaceholderName, models.StatusGenerating),
			snapshotEvent("app-1", "Clock", models.StatusGenerating),
			snapshotEvent("app-1", "Clock", models.StatusReady),
			// never delivered: the session stops at the terminal snapshot
			snapshotEvent("app-1", "Late", models.StatusError),
		},
	}
	d := newTestDesktop(t, backend)

	var completed []models.App
	appID, err := d.Session.Generate(context.Background(), "a clock", "", func(app models.App) {
		completed = append(completed, app)
	})
	require.NoError(t, err)
	assert.Equal(t, "app-1", appID)

	d.Session.Wait()

	apps := d.Apps.List()
	require.Len(t, apps, 1)
	assert.Equal(t, "Clock", apps[0].Name)
	assert.Equal(t, models.StatusReady, apps[0].Status)
	assert.Equal(t, "a clock", apps[0].Prompt)

	require.Len(t, completed, 1)
	assert.Equal(t, models.StatusReady, completed[0].Status)
	assert.False(t, d.Session.Busy())

	var percents []int
	for _, p := range d.Stream.Get().Progress {
		percents = append(percents, p.Percent)
	}
	assert.Equal(t, []int{5, 10, 50, 100}, percents)
	assert.Empty(t, d.Stream.Get().Error)
}

func TestGeneratePlaceholderAndSingleFlight(t *testing.T) {
	backend := &fakeBackend{
		appID:  "app-1",
		gate:   make(chan struct{}),
		events: []models.StreamEvent{snapshotEvent("app-1", "Clock", models.StatusReady)},
	}
	d := newTestDesktop(t, backend)

	_, err := d.Session.Generate(context.Background(), "a clock", "", nil)
	require.NoError(t, err)

	app, ok := d.Apps.Get("app-1")
	require.True(t, ok)
	assert.Equal(t, models.PlaceholderName, app.Name)
	assert.Equal(t, models.PlaceholderIcon, app.Icon)
	assert.Equal(t, models.StatusGenerating, app.Status)
	assert.True(t, d.Session.Busy())

	_, err = d.Session.Generate(context.Background(), "another", "", nil)
	assert.ErrorIs(t, err, ErrGenerationInFlight)
	assert.Equal(t, 1, backend.starts)

	close(backend.gate)
	d.Session.Wait()
	assert.False(t, d.Session.Busy())
	assert.Len(t, d.Apps.List(), 1)
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	backend := &fakeBackend{appID: "app-1"}
	d := newTestDesktop(t, backend)

	_, err := d.Session.Generate(context.Background(), "  ", "", nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, 0, backend.starts)
	assert.False(t, d.Session.Busy())
}

func TestGenerateStartFailureCreatesNoPlaceholder(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("invalid_request: prompt exceeds 10 characters")}
	d := newTestDesktop(t, backend)

	called := false
	_, err := d.Session.Generate(context.Background(), "a clock", "", func(models.App) { called = true })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt exceeds")

	d.Session.Wait()
	assert.Empty(t, d.Apps.List())
	assert.False(t, d.Session.Busy())
	assert.False(t, called)
	assert.Contains(t, d.Stream.Get().Error, "prompt exceeds")
}

func TestDisconnectWithoutTerminalMarksFailed(t *testing.T) {
	tests := []struct {
		name     string
		watchErr error
	}{
		{name: "clean close"},
		{name: "transport error", watchErr: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				appID:    "app-1",
				events:   []models.StreamEvent{snapshotEvent("app-1", "Clock", models.StatusGenerating)},
				watchErr: tt.watchErr,
			}
			d := newTestDesktop(t, backend)

			var completed models.App
			_, err := d.Session.Generate(context.Background(), "a clock", "", func(app models.App) { completed = app })
			require.NoError(t, err)
			d.Session.Wait()

			app, ok := d.Apps.Get("app-1")
			require.True(t, ok)
			assert.Equal(t, models.StatusError, app.Status)
			assert.Equal(t, "Clock", app.Name)
			require.NotNil(t, app.ErrorMessage)
			assert.Contains(t, *app.ErrorMessage, "stream closed")
			if tt.watchErr != nil {
				assert.Contains(t, *app.ErrorMessage, "connection reset")
			}

			assert.True(t, strings.HasPrefix(d.Stream.Get().Error, models.CodeChannelTimeout))
			assert.Equal(t, models.StatusError, completed.Status)
			assert.False(t, d.Session.Busy())
		})
	}
}

func TestErrorEventMarksFailed(t *testing.T) {
	backend := &fakeBackend{
		appID: "app-1",
		events: []models.StreamEvent{{
			Type:  models.EventError,
			Code:  models.CodeChannelTimeout,
			Error: "timed out waiting for generation to finish",
		}},
	}
	d := newTestDesktop(t, backend)

	_, err := d.Session.Generate(context.Background(), "a clock", "", nil)
	require.NoError(t, err)
	d.Session.Wait()

	app, _ := d.Apps.Get("app-1")
	assert.Equal(t, models.StatusError, app.Status)
	assert.Equal(t, "channel_timeout: timed out waiting for generation to finish", *app.ErrorMessage)
	assert.Equal(t, *app.ErrorMessage, d.Stream.Get().Error)
}

func TestGenerationFailedSnapshot(t *testing.T) {
	failed := snapshotEvent("app-1", "Clock", models.StatusError)
	failed.Snapshot.ErrorMessage = ptr("model unavailable")
	backend := &fakeBackend{appID: "app-1", events: []models.StreamEvent{failed}}
	d := newTestDesktop(t, backend)

	_, err := d.Session.Generate(context.Background(), "a clock", "", nil)
	require.NoError(t, err)
	d.Session.Wait()

	app, _ := d.Apps.Get("app-1")
	assert.Equal(t, models.StatusError, app.Status)
	assert.Equal(t, "model unavailable", *app.ErrorMessage)
	assert.Equal(t, "model unavailable", d.Stream.Get().Error)
	assert.Empty(t, d.Windows.List())
}

func TestProgressEventsFillStreamState(t *testing.T) {
	backend := &fakeBackend{
		appID: "app-1",
		events: []models.StreamEvent{
			{Type: models.EventThinking, Text: "planning"},
			{Type: models.EventTool, Tool: &models.ToolCall{Name: "write_file"}},
			{Type: models.EventHTML, Text: "<html>"},
			{Type: "unknown"},
			snapshotEvent("app-1", "Clock", models.StatusReady),
		},
	}
	d := newTestDesktop(t, backend)

	_, err := d.Session.Generate(context.Background(), "a clock", "", nil)
	require.NoError(t, err)
	d.Session.Wait()

	st := d.Stream.Get()
	assert.Equal(t, []string{"planning"}, st.Thinking)
	assert.Equal(t, []string{"<html>"}, st.HTML)
	assert.Equal(t, "app-1", st.HTMLAppID)
	require.NotNil(t, st.Tool)

	// the next generation starts from an empty stream state
	backend.events = []models.StreamEvent{snapshotEvent("app-1", "Clock", models.StatusReady)}
	_, err = d.Session.Generate(context.Background(), "again", "", nil)
	require.NoError(t, err)
	d.Session.Wait()

	st = d.Stream.Get()
	assert.Empty(t, st.Thinking)
	assert.Empty(t, st.HTML)
	assert.Nil(t, st.Tool)
}

func TestRegenerate(t *testing.T) {
	backend := &fakeBackend{
		appID:  "app-1",
		events: []models.StreamEvent{snapshotEvent("app-1", "Clock", models.StatusReady)},
	}
	d := newTestDesktop(t, backend)

	_, err := d.Session.Generate(context.Background(), "a clock", "", nil)
	require.NoError(t, err)
	d.Session.Wait()

	backend.gate = make(chan struct{})
	require.NoError(t, d.Session.Regenerate(context.Background(), "app-1", "", "", nil))

	app, _ := d.Apps.Get("app-1")
	assert.Equal(t, models.StatusGenerating, app.Status)
	assert.Equal(t, "Clock", app.Name)

	close(backend.gate)
	d.Session.Wait()

	app, _ = d.Apps.Get("app-1")
	assert.Equal(t, models.StatusReady, app.Status)
	assert.Equal(t, []string{"app-1"}, backend.regenerated)
	assert.Len(t, d.Apps.List(), 1)
}

func TestRegenerateUnknownAppInsertsPlaceholder(t *testing.T) {
	backend := &fakeBackend{
		events: []models.StreamEvent{snapshotEvent("app-9", "Clock", models.StatusReady)},
	}
	d := newTestDesktop(t, backend)

	require.NoError(t, d.Session.Regenerate(context.Background(), "app-9", "p", "", nil))
	d.Session.Wait()

	app, ok := d.Apps.Get("app-9")
	require.True(t, ok)
	assert.Equal(t, "Clock", app.Name)
	assert.Equal(t, "p", app.Prompt)
}

func TestDesktopOpensWindowWhenReady(t *testing.T) {
	backend := &fakeBackend{
		appID:  "app-1",
		events: []models.StreamEvent{snapshotEvent("app-1", "Clock", models.StatusReady)},
	}
	d := newTestDesktop(t, backend)

	var callbackSawWindow bool
	_, err := d.Generate(context.Background(), "a clock", "", func(app models.App) {
		callbackSawWindow = len(d.Windows.ByApp(app.ID)) == 1
	})
	require.NoError(t, err)
	d.Session.Wait()

	assert.True(t, callbackSawWindow)
	require.Len(t, d.Windows.List(), 1)

	// regenerating an app already on screen does not open a second window
	require.NoError(t, d.Regenerate(context.Background(), "app-1", "", "", nil))
	d.Session.Wait()
	assert.Len(t, d.Windows.List(), 1)

	d.RemoveApp("app-1")
	assert.Empty(t, d.Windows.List())
	assert.Empty(t, d.Apps.List())
}

func TestWatchStopsWithSessionContext(t *testing.T) {
	backend := &fakeBackend{appID: "app-1", gate: make(chan struct{})}
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	d := New(ctx, backend, logger)

	_, err := d.Session.Generate(context.Background(), "a clock", "", nil)
	require.NoError(t, err)

	cancel()
	d.Session.Wait()

	app, _ := d.Apps.Get("app-1")
	assert.Equal(t, models.StatusError, app.Status)
	assert.Contains(t, *app.ErrorMessage, context.Canceled.Error())
}
