// Package stream relays app status transitions to one subscriber by polling
// the app record store. A watch always ends with exactly one terminal event.
package stream

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sorenmh/gendesk/internal/deskd/models"
)

// AppReader reads the current app record
type AppReader interface {
	GetByID(ctx context.Context, id string) (*models.App, error)
}

// AppReaderFunc adapts a function to AppReader
type AppReaderFunc func(ctx context.Context, id string) (*models.App, error)

func (f AppReaderFunc) GetByID(ctx context.Context, id string) (*models.App, error) {
	return f(ctx, id)
}

// Poller watches app records
type Poller struct {
	interval    time.Duration
	maxAttempts int
	logger      logrus.FieldLogger
}

func NewPoller(interval time.Duration, maxAttempts int, logger logrus.FieldLogger) *Poller {
	return &Poller{
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger.WithField("component", "stream"),
	}
}

// Watch polls the app immediately and then once per interval, calling emit
// for every changed snapshot. It returns after a terminal snapshot, a
// not_found error event or a channel_timeout error event. The record is
// never written.
//
// A non-nil error means the subscriber went away (ctx done or emit failed).
func (p *Poller) Watch(ctx context.Context, reader AppReader, appID string, emit func(models.StreamEvent) error) error {
	log := p.logger.WithField("app_id", appID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *models.Snapshot
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		app, err := reader.GetByID(ctx, appID)
		if errors.Is(err, models.ErrNotFound) {
			return emit(models.StreamEvent{
				Type:  models.EventError,
				Code:  models.CodeNotFound,
				Error: "app not found",
			})
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("Failed to read app, retrying")
			continue
		}

		snap := app.Snapshot()
		if last != nil && last.Equal(snap) {
			continue
		}
		last = &snap

		event := models.StreamEvent{Type: models.EventSnapshot, Snapshot: &snap}
		if err := emit(event); err != nil {
			return err
		}
		if event.Terminal() {
			log.WithField("status", snap.Status).Debug("Stream finished")
			return nil
		}
	}

	log.WithField("attempts", p.maxAttempts).Warn("Stream timed out")
	return emit(models.StreamEvent{
		Type:  models.EventError,
		Code:  models.CodeChannelTimeout,
		Error: "timed out waiting for generation to finish",
	})
}
