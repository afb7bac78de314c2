package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sorenmh/gendesk/internal/deskd/models"
	"golang.org/x/sync/errgroup"
)

// contentDeleteConcurrency bounds parallel storage deletes when emptying the trash
const contentDeleteConcurrency = 4

func (s *Server) streamURL(appID string) string {
	return strings.TrimRight(s.config.Server.PublicURL, "/") + "/api/v1/apps/" + appID + "/stream"
}

// checkGenerationInput applies the boundary checks shared by generate and
// regenerate. An empty prompt is allowed only for regenerate.
func (s *Server) checkGenerationInput(prompt, model string, promptRequired bool) error {
	if promptRequired || prompt != "" {
		if err := models.ValidatePrompt(prompt, s.config.Generation.MaxPromptLength); err != nil {
			return err
		}
	}
	if model != "" && !s.config.ModelAllowed(model) {
		return fmt.Errorf("%w: model %q is not allowed", models.ErrInvalidRequest, model)
	}
	return nil
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	if err := s.checkGenerationInput(req.Prompt, req.Model, true); err != nil {
		s.respondError(c, "invalid generation request", err)
		return
	}

	app, err := s.engine.Start(c.Request.Context(), owner(c), req.Prompt, req.Model)
	if err != nil {
		s.respondError(c, "failed to start generation", err)
		return
	}

	c.JSON(http.StatusAccepted, models.GenerateResponse{
		AppID:     app.ID,
		StreamURL: s.streamURL(app.ID),
	})
}

func (s *Server) handleRegenerate(c *gin.Context) {
	var req models.RegenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body", err)
			return
		}
	}

	if err := s.checkGenerationInput(req.Prompt, req.Model, false); err != nil {
		s.respondError(c, "invalid regeneration request", err)
		return
	}

	app, err := s.engine.Regenerate(c.Request.Context(), owner(c), c.Param("id"), req.Prompt, req.Model)
	if err != nil {
		s.respondError(c, "failed to start regeneration", err)
		return
	}

	c.JSON(http.StatusAccepted, models.RegenerateResponse{StreamURL: s.streamURL(app.ID)})
}

func (s *Server) handleListApps(c *gin.Context) {
	trashed := c.Query("trashed") == "true"

	apps, err := s.apps.List(c.Request.Context(), owner(c), trashed)
	if err != nil {
		s.respondError(c, "failed to list apps", err)
		return
	}

	c.JSON(http.StatusOK, models.ListAppsResponse{Apps: apps, Total: len(apps)})
}

func (s *Server) handleGetApp(c *gin.Context) {
	app, err := s.apps.GetOwned(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		s.respondError(c, "failed to get app", err)
		return
	}

	c.JSON(http.StatusOK, app)
}

func (s *Server) handleUpdateApp(c *gin.Context) {
	var req models.UpdateAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	if req.Empty() {
		badRequest(c, "at least one of name or icon is required", nil)
		return
	}

	ctx := c.Request.Context()
	app, err := s.apps.GetOwned(ctx, owner(c), c.Param("id"))
	if err != nil {
		s.respondError(c, "failed to update app", err)
		return
	}

	if err := s.apps.Update(ctx, app.ID, req); err != nil {
		s.respondError(c, "failed to update app", err)
		return
	}

	s.respondWithApp(c, app.ID)
}

func (s *Server) handleTrashApp(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.apps.GetOwned(ctx, owner(c), c.Param("id"))
	if err != nil {
		s.respondError(c, "failed to trash app", err)
		return
	}

	if err := s.apps.SoftDelete(ctx, app.ID); err != nil {
		s.respondError(c, "failed to trash app", err)
		return
	}

	s.respondWithApp(c, app.ID)
}

func (s *Server) handleRestoreApp(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.apps.GetOwned(ctx, owner(c), c.Param("id"))
	if err != nil {
		s.respondError(c, "failed to restore app", err)
		return
	}

	if err := s.apps.Restore(ctx, app.ID); err != nil {
		s.respondError(c, "failed to restore app", err)
		return
	}

	s.respondWithApp(c, app.ID)
}

func (s *Server) handleDeleteApp(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := s.apps.GetOwned(ctx, owner(c), c.Param("id"))
	if err != nil {
		s.respondError(c, "failed to delete app", err)
		return
	}
	if !app.Trashed() {
		badRequest(c, "app must be in the trash before it can be deleted permanently", nil)
		return
	}

	refs, err := s.purge(ctx, app.ID)
	if err != nil {
		s.respondError(c, "failed to delete app", err)
		return
	}
	s.deleteContent(ctx, refs)

	c.Status(http.StatusNoContent)
}

func (s *Server) handleEmptyTrash(c *gin.Context) {
	ctx := c.Request.Context()
	trashed, err := s.apps.List(ctx, owner(c), true)
	if err != nil {
		s.respondError(c, "failed to empty trash", err)
		return
	}

	deleted, err := s.emptyTrash(ctx, trashed)
	if err != nil {
		s.respondError(c, "failed to empty trash", err)
		return
	}

	c.JSON(http.StatusOK, models.EmptyTrashResponse{Deleted: deleted})
}

// emptyTrash purges each app in turn and deletes the content of every app
// it purged, also when a later purge fails.
func (s *Server) emptyTrash(ctx context.Context, trashed []models.App) (int, error) {
	var refs []string
	deleted := 0
	for _, app := range trashed {
		appRefs, err := s.purge(ctx, app.ID)
		if err != nil {
			s.deleteContent(ctx, refs)
			return deleted, err
		}
		refs = append(refs, appRefs...)
		deleted++
	}
	s.deleteContent(ctx, refs)
	return deleted, nil
}

// purge removes the app and its versions, returning the content references
// they held.
func (s *Server) purge(ctx context.Context, appID string) ([]string, error) {
	refs, err := s.apps.StorageRefs(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := s.apps.Delete(ctx, appID); err != nil {
		return nil, err
	}
	return refs, nil
}

// deleteContent removes stored documents best-effort. Failures are logged,
// never returned: the records are already gone.
func (s *Server) deleteContent(ctx context.Context, refs []string) {
	var g errgroup.Group
	g.SetLimit(contentDeleteConcurrency)

	for _, ref := range refs {
		g.Go(func() error {
			if err := s.storage.Delete(ctx, ref); err != nil {
				s.logger.WithError(err).WithField("ref", ref).Warn("Failed to delete app content")
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.WithField("refs", len(refs)).Warn("Some app content could not be deleted")
	}
}

func (s *Server) respondWithApp(c *gin.Context, appID string) {
	app, err := s.apps.GetByID(c.Request.Context(), appID)
	if err != nil {
		s.respondError(c, "failed to get app", err)
		return
	}
	c.JSON(http.StatusOK, app)
}
