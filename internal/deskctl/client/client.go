package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sorenmh/gendesk/internal/deskd/models"
)

// Client is a deskd API client
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	// stream has no overall timeout; streams end on their own
	stream *http.Client
}

// NewClient creates a new deskd API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		stream: &http.Client{},
	}
}

// APIError is a non-2xx response from deskd
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API returned status %d", e.Status)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// IsNotFound reports whether err is a 404 from deskd
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// joinURL safely joins a base URL with a path, handling trailing slashes
func (c *Client) joinURL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.joinURL(path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// do sends a request and decodes a JSON response into out when out is not
// nil. Any status other than expected is returned as an *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, expected int, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{Status: resp.StatusCode}

	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Error
		apiErr.Details = errResp.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func appPath(appID string, parts ...string) string {
	return "api/v1/apps/" + url.PathEscape(appID) + strings.Join(append([]string{""}, parts...), "/")
}

// Health checks server health
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	var health models.HealthResponse
	if err := c.do(ctx, http.MethodGet, "health", nil, nil, http.StatusOK, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// StartGeneration asks deskd to generate a new app
func (c *Client) StartGeneration(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	var resp models.GenerateResponse
	if err := c.do(ctx, http.MethodPost, "api/v1/apps/generate", nil, req, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Regenerate re-runs code generation for an existing app
func (c *Client) Regenerate(ctx context.Context, appID string, req models.RegenerateRequest) (*models.RegenerateResponse, error) {
	var resp models.RegenerateResponse
	if err := c.do(ctx, http.MethodPost, appPath(appID, "regenerate"), nil, req, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListApps lists active apps, or trashed ones when trashed is set
func (c *Client) ListApps(ctx context.Context, trashed bool) (*models.ListAppsResponse, error) {
	var query url.Values
	if trashed {
		query = url.Values{"trashed": {"true"}}
	}

	var resp models.ListAppsResponse
	if err := c.do(ctx, http.MethodGet, "api/v1/apps", query, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetApp gets an app by id
func (c *Client) GetApp(ctx context.Context, appID string) (*models.App, error) {
	var app models.App
	if err := c.do(ctx, http.MethodGet, appPath(appID), nil, nil, http.StatusOK, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// ResolveAppID resolves an app name or ID to an app ID. Names are matched
// against active and trashed apps.
func (c *Client) ResolveAppID(ctx context.Context, nameOrID string) (string, error) {
	if _, err := uuid.Parse(nameOrID); err == nil {
		return nameOrID, nil
	}

	for _, trashed := range []bool{false, true} {
		resp, err := c.ListApps(ctx, trashed)
		if err != nil {
			return "", fmt.Errorf("failed to list apps: %w", err)
		}
		for _, app := range resp.Apps {
			if app.Name == nameOrID {
				return app.ID, nil
			}
		}
	}

	return "", fmt.Errorf("app not found: %s", nameOrID)
}

// UpdateApp renames an app or changes its icon
func (c *Client) UpdateApp(ctx context.Context, appID string, req models.UpdateAppRequest) (*models.App, error) {
	var app models.App
	if err := c.do(ctx, http.MethodPatch, appPath(appID), nil, req, http.StatusOK, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// TrashApp moves an app to the trash
func (c *Client) TrashApp(ctx context.Context, appID string) (*models.App, error) {
	var app models.App
	if err := c.do(ctx, http.MethodDelete, appPath(appID), nil, nil, http.StatusOK, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// RestoreApp takes an app out of the trash
func (c *Client) RestoreApp(ctx context.Context, appID string) (*models.App, error) {
	var app models.App
	if err := c.do(ctx, http.MethodPost, appPath(appID, "restore"), nil, nil, http.StatusOK, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// DeleteApp permanently deletes a trashed app
func (c *Client) DeleteApp(ctx context.Context, appID string) error {
	return c.do(ctx, http.MethodDelete, appPath(appID, "permanent"), nil, nil, http.StatusNoContent, nil)
}

// EmptyTrash permanently deletes every trashed app
func (c *Client) EmptyTrash(ctx context.Context) (*models.EmptyTrashResponse, error) {
	var resp models.EmptyTrashResponse
	if err := c.do(ctx, http.MethodDelete, "api/v1/trash", nil, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListVersions lists an app's versions, newest first
func (c *Client) ListVersions(ctx context.Context, appID string) (*models.ListVersionsResponse, error) {
	var resp models.ListVersionsResponse
	if err := c.do(ctx, http.MethodGet, appPath(appID, "versions"), nil, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RestoreVersion makes an earlier version current
func (c *Client) RestoreVersion(ctx context.Context, appID string, version int) (*models.RestoreVersionResponse, error) {
	var resp models.RestoreVersionResponse
	path := appPath(appID, "versions", strconv.Itoa(version), "restore")
	if err := c.do(ctx, http.MethodPost, path, nil, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HTML fetches an app's document. version 0 means the current one.
func (c *Client) HTML(ctx context.Context, appID string, version int) ([]byte, error) {
	var query url.Values
	if version > 0 {
		query = url.Values{"version": {strconv.Itoa(version)}}
	}

	req, err := c.newRequest(ctx, http.MethodGet, appPath(appID, "html"), query, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return html, nil
}
