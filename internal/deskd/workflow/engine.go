// Package workflow runs app generation in the background. A run outlives the
// request that started it and always leaves the app record in a terminal
// status.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sorenmh/gendesk/internal/deskd/completion"
	"github.com/sorenmh/gendesk/internal/deskd/extract"
	"github.com/sorenmh/gendesk/internal/deskd/models"
	"github.com/sorenmh/gendesk/internal/deskd/storage"
	"github.com/sorenmh/gendesk/internal/deskd/store"
)

const metadataSystemPrompt = `You name small web applications. Reply with ONLY a JSON object of the form
{"name": "<2-4 word title>", "icon": "<one emoji>", "description": "<one sentence>"}`

// Options tunes the completion calls of a run
type Options struct {
	DefaultModel        string
	SystemPrompt        string
	MetadataTemperature float64
	CodeTemperature     float64
	MetadataMaxTokens   int
	CodeMaxTokens       int
}

// Engine owns the generation lifecycle of app records
type Engine struct {
	apps      *store.AppStore
	versions  *store.VersionStore
	storage   storage.Storage
	completer completion.Completer
	opts      Options
	logger    logrus.FieldLogger

	base  context.Context
	locks *keyedMutex
	wg    sync.WaitGroup
	now   func() time.Time
}

// NewEngine creates an engine. Runs inherit values from base but are never
// cancelled by it.
func NewEngine(base context.Context, apps *store.AppStore, versions *store.VersionStore, st storage.Storage,
	completer completion.Completer, opts Options, logger logrus.FieldLogger) *Engine {
	return &Engine{
		apps:      apps,
		versions:  versions,
		storage:   st,
		completer: completer,
		opts:      opts,
		logger:    logger.WithField("component", "workflow"),
		base:      context.WithoutCancel(base),
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// Start inserts a generating app record and runs both phases in the
// background. It returns as soon as the record exists.
func (e *Engine) Start(ctx context.Context, ownerID, prompt, model string) (*models.App, error) {
	started := e.now()
	if model == "" {
		model = e.opts.DefaultModel
	}

	app, err := e.apps.Create(ctx, ownerID, prompt, model)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"app_id": app.ID,
		"owner":  ownerID,
		"model":  model,
	}).Info("Generation started")

	e.spawn(app.ID, func(ctx context.Context, log logrus.FieldLogger) error {
		e.describe(ctx, log, app.ID, prompt, model)
		return e.build(ctx, log, app.ID, prompt, model, started)
	})

	return app, nil
}

// Regenerate re-runs the code phase for an app the caller owns, with the
// given prompt or the app's last prompt.
func (e *Engine) Regenerate(ctx context.Context, ownerID, appID, prompt, model string) (*models.App, error) {
	started := e.now()

	app, err := e.apps.GetOwned(ctx, ownerID, appID)
	if err != nil {
		return nil, err
	}
	if app.Trashed() {
		return nil, fmt.Errorf("app %s is in the trash, restore it first: %w", appID, models.ErrInvalidRequest)
	}

	if prompt == "" {
		prompt = app.Prompt
	}
	if model == "" {
		model = app.Model
	}

	if err := e.apps.MarkGenerating(ctx, appID, prompt, model); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"app_id": appID,
		"owner":  ownerID,
		"model":  model,
	}).Info("Regeneration started")

	e.spawn(appID, func(ctx context.Context, log logrus.FieldLogger) error {
		// a run queued behind another one for the same app sees the status
		// that run left behind
		if err := e.apps.MarkGenerating(ctx, appID, prompt, model); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				log.Info("App deleted before its regeneration ran")
				return nil
			}
			return err
		}
		return e.build(ctx, log, appID, prompt, model, started)
	})

	return e.apps.GetByID(ctx, appID)
}

// Wait blocks until every in-flight run has finished or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn detached from the caller. Runs for the same app are
// serialized; any error or panic is recorded on the app record.
func (e *Engine) spawn(appID string, fn func(ctx context.Context, log logrus.FieldLogger) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		unlock := e.locks.Lock(appID)
		defer unlock()

		log := e.logger.WithField("app_id", appID)
		if err := e.safeRun(log, fn); err != nil {
			e.fail(log, appID, err)
		}
	}()
}

func (e *Engine) safeRun(log logrus.FieldLogger, fn func(ctx context.Context, log logrus.FieldLogger) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
		}
	}()
	return fn(e.base, log)
}

// fail is the result sink for a failed run
func (e *Engine) fail(log logrus.FieldLogger, appID string, cause error) {
	log.WithError(cause).Error("Generation failed")

	if err := e.apps.MarkError(e.base, appID, cause.Error()); err != nil {
		log.WithError(err).Error("Failed to record generation failure")
	}
}

// discard deletes a document no app record references
func (e *Engine) discard(ctx context.Context, log logrus.FieldLogger, ref string) {
	if err := e.storage.Delete(ctx, ref); err != nil {
		log.WithError(err).WithField("ref", ref).Warn("Failed to delete orphaned content")
		return
	}
	log.WithField("ref", ref).Info("App deleted during generation, content discarded")
}

// describe runs the metadata phase. It never fails the run: unusable output
// falls back to metadata derived from the prompt.
func (e *Engine) describe(ctx context.Context, log logrus.FieldLogger, appID, prompt, model string) {
	log = log.WithField("phase", "metadata")

	meta := extract.FallbackMetadata(prompt)
	out, err := e.completer.Complete(ctx, completion.Request{
		Model:       model,
		System:      metadataSystemPrompt,
		Prompt:      prompt,
		Temperature: e.opts.MetadataTemperature,
		MaxTokens:   e.opts.MetadataMaxTokens,
	})
	if err != nil {
		log.WithError(err).Warn("Metadata completion failed, using fallback")
	} else if parsed, perr := extract.ParseMetadata(out); perr != nil {
		log.WithError(perr).Warn("Unusable metadata, using fallback")
	} else {
		meta = parsed
	}

	if err := e.apps.UpdateMetadata(ctx, appID, meta); err != nil {
		log.WithError(err).Warn("Failed to update metadata")
		return
	}
	log.WithField("name", meta.Name).Debug("Metadata updated")
}

// build runs the code phase, stores the document and records the version.
func (e *Engine) build(ctx context.Context, log logrus.FieldLogger, appID, prompt, model string, started time.Time) error {
	log = log.WithField("phase", "code")

	out, err := e.completer.Complete(ctx, completion.Request{
		Model:       model,
		System:      e.opts.SystemPrompt,
		Prompt:      prompt,
		Temperature: e.opts.CodeTemperature,
		MaxTokens:   e.opts.CodeMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("code generation failed: %w", err)
	}

	html, err := extract.ExtractHTML(out)
	if err != nil {
		return fmt.Errorf("code generation failed: %w", err)
	}

	ref, err := e.storage.Write(ctx, storage.AppHTMLKey(appID), []byte(html), storage.MimeHTML)
	if err != nil {
		return fmt.Errorf("failed to store HTML: %w", err)
	}

	duration := e.now().Sub(started).Milliseconds()
	if err := e.apps.MarkReady(ctx, appID, ref, duration); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// purged while the run was in flight; nothing points at ref
			e.discard(ctx, log, ref)
			return nil
		}
		return err
	}

	version, err := e.versions.CreateNext(ctx, appID, ref, prompt)
	if err != nil {
		// the record already serves the new content
		log.WithError(err).Error("Failed to record version")
		return nil
	}

	log.WithFields(logrus.Fields{
		"version":     version.VersionNumber,
		"duration_ms": duration,
		"bytes":       len(html),
	}).Info("Generation finished")
	return nil
}
