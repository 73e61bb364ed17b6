package store

import (
	"encoding/json"

	"github.com/opencode-desk/core/api"
)

// Event types pushed by the server that the store reacts to.
const (
	EventSessionUpdated = "session.updated"
	EventSessionDeleted = "session.deleted"
)

// sessionUpdatedPayload is the properties shape of session.updated events.
// All fields are optional; the server streams partial refinements while a
// turn runs (title first, then summary).
type sessionUpdatedPayload struct {
	ID      string  `json:"id"`
	Title   *string `json:"title,omitempty"`
	Summary *string `json:"summary,omitempty"`
	Version *string `json:"version,omitempty"`
	Time    *struct {
		Updated *int64 `json:"updated,omitempty"`
	} `json:"time,omitempty"`
	Share *api.ShareInfo `json:"share,omitempty"`
}

// HandleEvent applies one server-pushed event to the store. Unknown event
// types and malformed payloads are dropped with a log line; the event
// stream must never take the store down.
func (s *Store) HandleEvent(event api.Event) {
	switch event.Type {
	case EventSessionUpdated:
		var payload sessionUpdatedPayload
		if err := json.Unmarshal(event.Properties, &payload); err != nil || payload.ID == "" {
			s.log.Warn("dropping malformed session.updated event", "error", err)
			return
		}
		meta := SessionMetadata{
			Title:   payload.Title,
			Summary: payload.Summary,
			Version: payload.Version,
			Share:   payload.Share,
		}
		if payload.Time != nil {
			meta.Updated = payload.Time.Updated
		}
		s.ApplySessionMetadata(payload.ID, meta)
	case EventSessionDeleted:
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Properties, &payload); err != nil || payload.ID == "" {
			s.log.Warn("dropping malformed session.deleted event", "error", err)
			return
		}
		s.removeSessions([]string{payload.ID})
	}
}
