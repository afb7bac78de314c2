package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sorenmh/gendesk/internal/deskd/api"
	"github.com/sorenmh/gendesk/internal/deskd/completion"
	"github.com/sorenmh/gendesk/internal/deskd/config"
	"github.com/sorenmh/gendesk/internal/deskd/db"
	"github.com/sorenmh/gendesk/internal/deskd/models"
	"github.com/sorenmh/gendesk/internal/deskd/storage"
	"github.com/sorenmh/gendesk/internal/deskd/store"
	"github.com/sorenmh/gendesk/internal/deskd/workflow"
	"github.com/sorenmh/gendesk/internal/desktop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey = "test-key"
	testDoc = "<!doctype html><html><body>clock</body></html>"
)

func collect(t *testing.T, body string) []models.StreamEvent {
	t.Helper()
	var events []models.StreamEvent
	require.NoError(t, readEvents(strings.NewReader(body), func(e models.StreamEvent) error {
		events = append(events, e)
		return nil
	}))
	return events
}

func TestReadEvents(t *testing.T) {
	body := ": keep-alive\n" +
		"event:snapshot\n" +
		"data:{\"type\":\"snapshot\",\"snapshot\":{\"id\":\"a\",\"status\":\"generating\"}}\n" +
		"\n" +
		"event: thinking\n" +
		"data: {\"text\":\"line one\"}\n" +
		"\n" +
		"event:failure\n" +
		"data:{\"code\":\"not_found\",\"error\":\"app not found\"}\n"

	events := collect(t, body)
	require.Len(t, events, 3)

	assert.Equal(t, models.EventSnapshot, events[0].Type)
	require.NotNil(t, events[0].Snapshot)
	assert.Equal(t, models.StatusGenerating, events[0].Snapshot.Status)

	// the event name fills in a missing type
	assert.Equal(t, models.EventThinking, events[1].Type)
	assert.Equal(t, "line one", events[1].Text)

	// failures travel under their own event name
	assert.Equal(t, models.EventError, events[2].Type)
	assert.Equal(t, models.CodeNotFound, events[2].Code)
	assert.True(t, events[2].Terminal())
}

func TestReadEventsErrors(t *testing.T) {
	err := readEvents(strings.NewReader("data:{not json\n\n"), func(models.StreamEvent) error { return nil })
	assert.ErrorContains(t, err, "failed to decode stream event")

	stop := errors.New("stop")
	calls := 0
	body := "data:{\"type\":\"snapshot\"}\n\ndata:{\"type\":\"snapshot\"}\n\n"
	err = readEvents(strings.NewReader(body), func(models.StreamEvent) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	assert.Empty(t, collect(t, "\n\n: comment\n\n"))
}

func TestAPIError(t *testing.T) {
	err := &APIError{Status: 400, Code: "invalid_request", Message: "bad", Details: "prompt: is required"}
	assert.Equal(t, "API returned status 400 (invalid_request): bad: prompt: is required", err.Error())

	wrapped := errors.Join(errors.New("context"), &APIError{Status: http.StatusNotFound})
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsNotFound(err))
}

type staticCompleter struct{}

func (staticCompleter) Complete(_ context.Context, req completion.Request) (string, error) {
	if strings.Contains(req.System, "JSON") {
		return "```json\n{\"name\":\"Clock\",\"icon\":\"🕰\",\"description\":\"A clock\"}\n```", nil
	}
	return "Here you go:\n" + testDoc + "\nEnjoy!", nil
}

type testEnv struct {
	client  *Client
	engine  *workflow.Engine
	storage *storage.MemoryStorage
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.engine.Wait(ctx))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{
			APIKeys:         []config.APIKey{{Name: "tester", Key: testKey}},
			ShutdownTimeout: time.Second,
		},
		Completion: config.CompletionConfig{DefaultModel: "model-a"},
		Generation: config.GenerationConfig{SystemPrompt: "Build a single HTML file.", MaxPromptLength: 200},
		Stream:     config.StreamConfig{PollInterval: 5 * time.Millisecond, MaxAttempts: 1000},
	}

	database, err := db.Open("sqlite", filepath.Join(t.TempDir(), "desk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	logger, _ := test.NewNullLogger()
	mem := storage.NewMemoryStorage()
	engine := workflow.NewEngine(context.Background(),
		store.NewAppStore(database.DB), store.NewVersionStore(database.DB),
		mem, staticCompleter{}, workflow.Options{
			DefaultModel: cfg.Completion.DefaultModel,
			SystemPrompt: cfg.Generation.SystemPrompt,
		}, logger)

	server := api.NewServer(cfg, database, mem, engine, logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{client: NewClient(ts.URL+"/", testKey), engine: engine, storage: mem}
}

func TestDesktopAgainstServer(t *testing.T) {
	env := newTestEnv(t)
	logger, _ := test.NewNullLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d := desktop.New(ctx, env.client, logger)

	done := make(chan models.App, 1)
	appID, err := d.Generate(ctx, "a tic-tac-toe game", "", func(app models.App) { done <- app })
	require.NoError(t, err)

	select {
	case app := <-done:
		assert.Equal(t, appID, app.ID)
		assert.Equal(t, models.StatusReady, app.Status)
		assert.Equal(t, "Clock", app.Name)
	case <-ctx.Done():
		t.Fatal("generation did not finish")
	}
	d.Session.Wait()

	windows := d.Windows.ByApp(appID)
	require.Len(t, windows, 1)

	cached, ok := d.Apps.Get(appID)
	require.True(t, ok)
	assert.Equal(t, "a tic-tac-toe game", cached.Prompt)
	assert.Empty(t, d.Stream.Get().Error)

	html, err := env.client.HTML(ctx, appID, 0)
	require.NoError(t, err)
	assert.Equal(t, testDoc, string(html))
}

func TestClientOperations(t *testing.T) {
	env := newTestEnv(t)
	c := env.client
	ctx := context.Background()

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)

	_, err = c.StartGeneration(ctx, models.GenerateRequest{Prompt: strings.Repeat("x", 201)})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, models.CodeInvalidRequest, apiErr.Code)

	started, err := c.StartGeneration(ctx, models.GenerateRequest{Prompt: "a clock"})
	require.NoError(t, err)
	env.wait(t)

	id, err := c.ResolveAppID(ctx, "Clock")
	require.NoError(t, err)
	assert.Equal(t, started.AppID, id)
	id, err = c.ResolveAppID(ctx, started.AppID)
	require.NoError(t, err)
	assert.Equal(t, started.AppID, id)
	_, err = c.ResolveAppID(ctx, "Nope")
	assert.Error(t, err)

	var events []models.StreamEvent
	require.NoError(t, c.Watch(ctx, started.AppID, func(e models.StreamEvent) error {
		events = append(events, e)
		return nil
	}))
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusReady, events[0].Snapshot.Status)

	name := "Wall Clock"
	app, err := c.UpdateApp(ctx, started.AppID, models.UpdateAppRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, app.Name)

	_, err = c.Regenerate(ctx, started.AppID, models.RegenerateRequest{Prompt: "a wall clock"})
	require.NoError(t, err)
	env.wait(t)

	versions, err := c.ListVersions(ctx, started.AppID)
	require.NoError(t, err)
	require.Equal(t, 2, versions.Total)
	assert.True(t, versions.Versions[0].IsCurrent)

	restored, err := c.RestoreVersion(ctx, started.AppID, 1)
	require.NoError(t, err)
	assert.Equal(t, "a clock", restored.App.Prompt)

	html, err := c.HTML(ctx, started.AppID, 2)
	require.NoError(t, err)
	assert.Equal(t, testDoc, string(html))

	err = c.DeleteApp(ctx, started.AppID)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	trashed, err := c.TrashApp(ctx, started.AppID)
	require.NoError(t, err)
	assert.True(t, trashed.Trashed())

	list, err := c.ListApps(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	// names resolve in the trash too
	id, err = c.ResolveAppID(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, started.AppID, id)

	_, err = c.RestoreApp(ctx, started.AppID)
	require.NoError(t, err)
	_, err = c.TrashApp(ctx, started.AppID)
	require.NoError(t, err)

	emptied, err := c.EmptyTrash(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, emptied.Deleted)
	assert.Equal(t, 0, env.storage.Len())

	_, err = c.GetApp(ctx, started.AppID)
	assert.True(t, IsNotFound(err))
}

func TestWatchUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	c := NewClient(env.client.baseURL, "wrong")

	err := c.Watch(context.Background(), "anything", func(models.StreamEvent) error { return nil })
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, models.CodeUnauthorized, apiErr.Code)
}
