package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/opencode-desk/core/logger"
)

// Event is one server-sent event from the /event stream. Properties carries
// the event-specific payload; callers decode it against the type they
// subscribed for (e.g. session metadata for "session.updated").
type Event struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// Subscribe opens the server's SSE stream and delivers decoded events until
// ctx is cancelled or the stream ends. The returned channel is closed when
// the stream stops; callers that want reconnection wrap Subscribe in their
// own retry loop.
func (c *Client) Subscribe(ctx context.Context) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/event", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream is long-lived, so bypass the client's request timeout.
	hc := &http.Client{Transport: c.httpClient.Transport}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Endpoint: "/event", Code: resp.StatusCode}
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		log := logger.WithComponent("api")
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var data strings.Builder
		for scanner.Scan() {
			line := scanner.Text()

			// Blank line terminates one SSE frame
			if line == "" {
				if data.Len() > 0 {
					var ev Event
					if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
						log.Warn("dropping malformed event", "error", err)
					} else if ev.Type != "" {
						select {
						case events <- ev:
						case <-ctx.Done():
							return
						}
					}
					data.Reset()
				}
				continue
			}

			if after, ok := strings.CutPrefix(line, "data:"); ok {
				data.WriteString(strings.TrimPrefix(after, " "))
			}
			// Comment lines (":") and "event:"/"id:" fields are ignored; the
			// payload itself carries the event type.
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			log.Warn("event stream ended", "error", err)
		}
	}()

	return events, nil
}
