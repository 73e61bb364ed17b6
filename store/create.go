package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opencode-desk/core/api"
)

// TempIDPrefix marks optimistic session ids that have not been confirmed by
// the server yet.
const TempIDPrefix = "temp_"

// IsTempID reports whether id belongs to an unconfirmed optimistic session.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

func newTempID() string {
	return fmt.Sprintf("%s%d_%s", TempIDPrefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// CreateSessionOptions carries the optional create parameters.
type CreateSessionOptions struct {
	Title     string
	Directory string // overrides the client's active directory
	ParentID  string
}

// CreateSession inserts an optimistic session immediately so callers can
// navigate to it before the network round-trip completes, then confirms it
// against the server. If the direct create call fails or returns nothing
// usable, the list endpoint is polled for a plausible match, which covers
// servers that create sessions asynchronously. On success the temp id is
// replaced everywhere at once; on total failure the optimistic insert is
// rolled back and the error returned.
func (s *Store) CreateSession(ctx context.Context, opts CreateSessionOptions) (*api.Session, error) {
	directory := opts.Directory
	if directory == "" {
		directory = s.client.ActiveDirectory()
	}

	now := time.Now().UnixMilli()
	temp := api.Session{
		ID:        newTempID(),
		Title:     opts.Title,
		Directory: directory,
		ParentID:  opts.ParentID,
		Time:      api.SessionTime{Created: now, Updated: now},
	}

	s.mu.Lock()
	preExisting := make(map[string]bool, len(s.sessions))
	for _, sess := range s.sessions {
		preExisting[sess.ID] = true
	}
	s.setSessionsLocked(append(s.sessions, temp))
	s.clientCreated[temp.ID] = true
	s.currentSessionID = temp.ID
	s.mu.Unlock()
	s.notify()

	real, err := s.client.CreateSession(ctx, api.CreateSessionRequest{
		Title:    opts.Title,
		ParentID: opts.ParentID,
	}, directory)
	if err != nil {
		s.log.Warn("direct session create failed, polling for async creation", "error", err)
		real = s.pollForCreatedSession(ctx, directory, opts.Title, preExisting)
		if real == nil {
			s.rollbackCreate(temp.ID)
			return nil, fmt.Errorf("creating session: %w", err)
		}
	}
	if real.Directory == "" {
		real.Directory = directory
	}

	s.mu.Lock()
	s.replaceTempLocked(temp.ID, *real)
	if s.selection != nil {
		s.selection.Set(real.Directory, real.ID)
	}
	s.persistSnapshotLocked()
	s.mu.Unlock()
	s.notify()
	return real, nil
}

// pollForCreatedSession looks for a session that appeared after the create
// attempt: one whose id wasn't in the pre-create set and whose title
// matches, when a title was given.
func (s *Store) pollForCreatedSession(ctx context.Context, directory, title string, preExisting map[string]bool) *api.Session {
	for attempt := 0; attempt < s.createPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.createPollInterval):
		}

		sessions, err := s.client.ListSessions(ctx, directory)
		if err != nil {
			continue
		}
		for _, sess := range sessions {
			if preExisting[sess.ID] || IsTempID(sess.ID) {
				continue
			}
			if title != "" && sess.Title != title {
				continue
			}
			return &sess
		}
	}
	return nil
}

// replaceTempLocked swaps the optimistic session for the confirmed one in
// every structure that references it, keeping its list position. Caller
// must hold mu.
func (s *Store) replaceTempLocked(tempID string, real api.Session) {
	sessions := make([]api.Session, len(s.sessions))
	copy(sessions, s.sessions)
	replaced := false
	for i := range sessions {
		if sessions[i].ID == tempID {
			sessions[i] = real
			replaced = true
			break
		}
	}
	if !replaced {
		// Temp entry was removed while the create was in flight (e.g. a
		// concurrent load); append the confirmed session instead.
		sessions = append(sessions, real)
	}
	s.setSessionsLocked(DedupeSessionsByID(sessions))

	delete(s.clientCreated, tempID)
	s.clientCreated[real.ID] = true
	if s.currentSessionID == tempID {
		s.currentSessionID = real.ID
	}
}

// rollbackCreate removes the optimistic session after a failed create.
func (s *Store) rollbackCreate(tempID string) {
	s.mu.Lock()
	sessions := make([]api.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.ID != tempID {
			sessions = append(sessions, sess)
		}
	}
	s.setSessionsLocked(sessions)
	delete(s.clientCreated, tempID)
	if s.currentSessionID == tempID {
		s.currentSessionID = ""
	}
	s.mu.Unlock()
	s.notify()
}
