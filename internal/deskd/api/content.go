package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sorenmh/gendesk/internal/deskd/models"
	"github.com/sorenmh/gendesk/internal/deskd/storage"
	"github.com/sorenmh/gendesk/internal/deskd/stream"
)

// Generated documents are self-contained: inline script and style are allowed,
// everything else is limited to the serving origin, and only same-origin
// pages may frame them.
const appContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: blob:; " +
	"font-src 'self' data:; " +
	"connect-src 'self'; " +
	"object-src 'none'; " +
	"base-uri 'none'; " +
	"form-action 'self'; " +
	"frame-ancestors 'self'"

func (s *Server) handleStream(c *gin.Context) {
	appID := c.Param("id")
	ownerID := owner(c)

	// apps owned by someone else look exactly like missing ones
	reader := stream.AppReaderFunc(func(ctx context.Context, id string) (*models.App, error) {
		return s.apps.GetOwned(ctx, ownerID, id)
	})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	err := s.poller.Watch(ctx, reader, appID, func(event models.StreamEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.SSEvent(event.SSEName(), event)
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("app_id", appID).Debug("Stream subscriber left")
	}
}

func (s *Server) handleServeHTML(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.apps.GetOwned(ctx, owner(c), c.Param("id"))
	if err != nil {
		s.respondError(c, "failed to get app", err)
		return
	}

	var ref string
	if v := c.Query("version"); v != "" {
		number, err := strconv.Atoi(v)
		if err != nil || number < 1 {
			badRequest(c, "version must be a positive integer", nil)
			return
		}
		version, err := s.versions.GetByNumber(ctx, app.ID, number)
		if err != nil {
			s.respondError(c, "failed to get version", err)
			return
		}
		ref = version.HTMLStoragePath
	} else {
		if app.HTMLStoragePath == nil {
			s.respondError(c, "app has no content yet",
				fmt.Errorf("app %s is %s: %w", app.ID, app.Status, models.ErrNotFound))
			return
		}
		ref = *app.HTMLStoragePath
	}

	html, err := s.storage.Read(ctx, ref)
	if err != nil {
		s.respondError(c, "failed to read app content", err)
		return
	}

	c.Header("Content-Security-Policy", appContentSecurityPolicy)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "SAMEORIGIN")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, storage.MimeHTML, html)
}

func (s *Server) handleListVersions(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.apps.GetOwned(ctx, owner(c), c.Param("id"))
	if err != nil {
		s.respondError(c, "failed to list versions", err)
		return
	}

	versions, err := s.versions.List(ctx, app.ID)
	if err != nil {
		s.respondError(c, "failed to list versions", err)
		return
	}

	c.JSON(http.StatusOK, models.ListVersionsResponse{
		Versions: models.MarkCurrent(versions, app.HTMLStoragePath),
		Total:    len(versions),
	})
}

func (s *Server) handleRestoreVersion(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("version"))
	if err != nil || number < 1 {
		badRequest(c, "version must be a positive integer", nil)
		return
	}

	ctx := c.Request.Context()
	app, err := s.apps.GetOwned(ctx, owner(c), c.Param("id"))
	if err != nil {
		s.respondError(c, "failed to restore version", err)
		return
	}
	// the engine owns content fields while a run is in flight
	if app.Status == models.StatusGenerating {
		badRequest(c, "app is generating; wait for it to finish before restoring a version", nil)
		return
	}

	version, err := s.versions.GetByNumber(ctx, app.ID, number)
	if err != nil {
		s.respondError(c, "failed to restore version", err)
		return
	}

	if err := s.apps.SetContent(ctx, app.ID, version.HTMLStoragePath, version.Prompt); err != nil {
		s.respondError(c, "failed to restore version", err)
		return
	}

	updated, err := s.apps.GetByID(ctx, app.ID)
	if err != nil {
		s.respondError(c, "failed to restore version", err)
		return
	}

	c.JSON(http.StatusOK, models.RestoreVersionResponse{App: *updated, Version: *version})
}
