package desktop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sorenmh/gendesk/internal/deskd/models"
)

var (
	ErrEmptyPrompt        = errors.New("prompt is required")
	ErrGenerationInFlight = errors.New("a generation is already in progress")

	errStopWatching = errors.New("stop watching")
)

// Backend is the server surface a Session drives.
type Backend interface {
	StartGeneration(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error)
	Regenerate(ctx context.Context, appID string, req models.RegenerateRequest) (*models.RegenerateResponse, error)
	// Watch delivers stream events for appID until the server closes the
	// stream, ctx is done or fn returns an error.
	Watch(ctx context.Context, appID string, fn func(models.StreamEvent) error) error
}

// CompletionFunc receives the cached record once a watched generation stops.
type CompletionFunc func(app models.App)

// Session starts generations and reflects their progress in the app cache
// and the stream state. At most one generation is in flight per session.
type Session struct {
	ctx     context.Context
	backend Backend
	apps    *AppCache
	stream  *StreamState
	logger  logrus.FieldLogger
	now     func() time.Time

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewSession creates a session. ctx bounds every stream the session opens.
func NewSession(ctx context.Context, backend Backend, apps *AppCache, stream *StreamState, logger logrus.FieldLogger) *Session {
	return &Session{
		ctx:     ctx,
		backend: backend,
		apps:    apps,
		stream:  stream,
		logger:  logger.WithField("component", "session"),
		now:     time.Now,
	}
}

// Busy reports whether a generation is in flight
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Wait blocks until every stream opened by the session has stopped.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Generate starts a generation and returns the new app id. The placeholder
// is added only once the server has accepted the request; progress arrives
// asynchronously.
func (s *Session) Generate(ctx context.Context, prompt, model string, onComplete CompletionFunc) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if !s.busy.CompareAndSwap(false, true) {
		return "", ErrGenerationInFlight
	}
	s.stream.Reset()

	resp, err := s.backend.StartGeneration(ctx, models.GenerateRequest{Prompt: prompt, Model: model})
	if err != nil {
		s.busy.Store(false)
		s.stream.SetError(err.Error())
		return "", fmt.Errorf("failed to start generation: %w", err)
	}

	s.apps.Upsert(Placeholder(resp.AppID, prompt, model, s.now()))
	s.stream.AddProgress(5, "Generation started")
	s.watch(resp.AppID, onComplete)
	return resp.AppID, nil
}

// Regenerate re-runs code generation for an existing app. An empty prompt
// reuses the app's last prompt.
func (s *Session) Regenerate(ctx context.Context, appID, prompt, model string, onComplete CompletionFunc) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrGenerationInFlight
	}
	s.stream.Reset()

	if _, err := s.backend.Regenerate(ctx, appID, models.RegenerateRequest{Prompt: prompt, Model: model}); err != nil {
		s.busy.Store(false)
		s.stream.SetError(err.Error())
		return fmt.Errorf("failed to start regeneration: %w", err)
	}

	if cached, ok := s.apps.Get(appID); ok {
		snap := cached.Snapshot()
		snap.Status = models.StatusGenerating
		snap.ErrorMessage = nil
		s.apps.Apply(snap)
	} else {
		s.apps.Upsert(Placeholder(appID, prompt, model, s.now()))
	}
	s.stream.AddProgress(5, "Regeneration started")
	s.watch(appID, onComplete)
	return nil
}

func (s *Session) watch(appID string, onComplete CompletionFunc) {
	log := s.logger.WithField("app_id", appID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		terminal := false
		err := s.backend.Watch(s.ctx, appID, func(event models.StreamEvent) error {
			s.handle(appID, event)
			if event.Terminal() {
				terminal = true
				return errStopWatching
			}
			return nil
		})

		if !terminal {
			message := "stream closed before generation finished"
			if err != nil {
				message = fmt.Sprintf("%s: %v", message, err)
			}
			log.Warn(message)
			s.apps.MarkFailed(appID, message)
			s.stream.SetError(models.CodeChannelTimeout + ": " + message)
		}

		s.busy.Store(false)
		if onComplete != nil {
			app, _ := s.apps.Get(appID)
			onComplete(app)
		}
	}()
}

func (s *Session) handle(appID string, event models.StreamEvent) {
	switch event.Type {
	case models.EventSnapshot:
		if event.Snapshot == nil {
			return
		}
		app := s.apps.Apply(*event.Snapshot)
		s.stream.AddProgress(progressFor(app))
		if app.Status == models.StatusError && app.ErrorMessage != nil {
			s.stream.SetError(*app.ErrorMessage)
		}
	case models.EventError:
		message := event.Error
		if event.Code != "" {
			message = event.Code + ": " + message
		}
		s.apps.MarkFailed(appID, message)
		s.stream.SetError(message)
	// thinking, html and tool events come from generators that stream their
	// output; deskd's poller sends only snapshots and failures
	case models.EventThinking:
		s.stream.AddThinking(event.Text)
	case models.EventHTML:
		target := event.AppID
		if target == "" {
			target = appID
		}
		s.stream.AddHTML(target, event.Text)
	case models.EventTool:
		s.stream.SetTool(event.Tool)
	default:
		s.logger.WithField("type", event.Type).Debug("Ignoring unknown stream event")
	}
}

func progressFor(app models.App) (int, string) {
	switch {
	case app.Status == models.StatusReady:
		return 100, "Ready"
	case app.Status == models.StatusError:
		return 100, "Generation failed"
	case app.Name != models.PlaceholderName:
		return 50, "Building " + app.Name
	default:
		return 10, "Naming app"
	}
}
