package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sorenmh/gendesk/internal/deskd/models"
)

// maxEventSize bounds one SSE line; html chunks can be large
const maxEventSize = 1 << 20

// Watch opens the app's event stream and calls fn for every event until the
// server closes the stream, ctx is done or fn returns an error, which is
// returned as is.
func (c *Client) Watch(ctx context.Context, appID string, fn func(models.StreamEvent) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, appPath(appID, "stream"), nil, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	return readEvents(resp.Body, fn)
}

// readEvents parses a text/event-stream body. Events are separated by a
// blank line; multiple data lines are joined with newlines.
func readEvents(r io.Reader, fn func(models.StreamEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var name string
	var data []string

	dispatch := func() error {
		defer func() {
			name = ""
			data = data[:0]
		}()
		if len(data) == 0 {
			return nil
		}

		var event models.StreamEvent
		if err := json.Unmarshal([]byte(strings.Join(data, "\n")), &event); err != nil {
			return fmt.Errorf("failed to decode stream event: %w", err)
		}
		if event.Type == "" {
			event.Type = name
			if name == models.SSEFailure {
				event.Type = models.EventError
			}
		}
		return fn(event)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	// a final event without its trailing blank line still counts
	return dispatch()
}
