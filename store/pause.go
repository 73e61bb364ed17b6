package store

import (
	"context"
	"fmt"
	"time"

	"github.com/opencode-desk/core/api"
	"github.com/opencode-desk/core/turns"
)

// PauseSession captures the session's in-flight state (last user message,
// active model selection, a summary of running tools and partial output)
// and then aborts the turn. The captured selection is what resume sends
// with, regardless of what the user picks globally in the meantime.
func (s *Store) PauseSession(ctx context.Context, id string, messages []turns.Message) error {
	s.mu.RLock()
	sess, found := api.Session{}, false
	for _, candidate := range s.sessions {
		if candidate.ID == id {
			sess, found = candidate, true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return fmt.Errorf("pausing session: %s not found", id)
	}

	info := PausedSessionInfo{
		SessionID: id,
		PausedAt:  time.Now().UnixMilli(),
	}
	if msgID, text, ok := turns.LastUserMessage(messages); ok {
		info.MessageID = msgID
		info.MessageText = text
	}
	info.ContextSummary = turns.ContextSummary(messages)
	if s.models != nil {
		info.Model = s.models.CurrentModel()
	}

	s.mu.Lock()
	requestDir := s.requestDirectoryFor(sess)
	s.paused[id] = info
	s.persistSnapshotLocked()
	s.mu.Unlock()
	s.notify()

	if err := s.client.AbortSession(ctx, id, requestDir); err != nil {
		return fmt.Errorf("aborting session: %w", err)
	}
	return nil
}

// ResumeSession re-sends a paused session's message with the model
// configuration captured at pause time. The message text is prefixed with
// an explanation of what was interrupted so the model can pick up where it
// left off.
func (s *Store) ResumeSession(ctx context.Context, id string) error {
	s.mu.Lock()
	info, paused := s.paused[id]
	if !paused {
		s.mu.Unlock()
		return fmt.Errorf("resuming session: %s is not paused", id)
	}
	sess, found := api.Session{}, false
	for _, candidate := range s.sessions {
		if candidate.ID == id {
			sess, found = candidate, true
			break
		}
	}
	var requestDir string
	if found {
		requestDir = s.requestDirectoryFor(sess)
	} else {
		requestDir = s.client.ActiveDirectory()
	}
	s.mu.Unlock()

	text := info.MessageText
	if info.ContextSummary != "" {
		text = fmt.Sprintf(
			"This conversation was paused mid-response. Where it left off: %s\n\nPlease continue with the original request:\n%s",
			info.ContextSummary, info.MessageText)
	}

	err := s.client.SendMessage(ctx, api.SendMessageRequest{
		SessionID:  id,
		Text:       text,
		ProviderID: info.Model.ProviderID,
		ModelID:    info.Model.ModelID,
		Agent:      info.Model.Agent,
	}, requestDir)
	if err != nil {
		return fmt.Errorf("resuming session: %w", err)
	}

	s.mu.Lock()
	delete(s.paused, id)
	s.persistSnapshotLocked()
	s.mu.Unlock()
	s.notify()
	return nil
}
