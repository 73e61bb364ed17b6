package store

import "github.com/opencode-desk/core/api"

// SessionMetadata is a partial, server-pushed update to a session. Nil
// fields mean "unchanged"; nested time fields merge individually.
type SessionMetadata struct {
	Title   *string
	Summary *string
	Version *string
	Updated *int64
	Share   *api.ShareInfo
}

// ApplySessionMetadata merges a partial metadata update into the matching
// session. Updates arrive continuously while the server streams (title and
// summary refinements in particular), so a dirty check skips the index
// rebuild and change notification when nothing actually differs.
func (s *Store) ApplySessionMetadata(id string, meta SessionMetadata) {
	s.mu.Lock()

	idx := -1
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}

	updated := s.sessions[idx]
	if meta.Title != nil {
		updated.Title = *meta.Title
	}
	if meta.Summary != nil {
		updated.Summary = *meta.Summary
	}
	if meta.Version != nil {
		updated.Version = *meta.Version
	}
	if meta.Updated != nil {
		updated.Time.Updated = *meta.Updated
	}
	if meta.Share != nil {
		updated.Share = meta.Share
	}

	if sessionsEqual(s.sessions[idx], updated) {
		s.mu.Unlock()
		return
	}

	sessions := make([]api.Session, len(s.sessions))
	copy(sessions, s.sessions)
	sessions[idx] = updated
	s.setSessionsLocked(sessions)
	s.persistSnapshotLocked()
	s.mu.Unlock()
	s.notify()
}

func sessionsEqual(a, b api.Session) bool {
	if a.ID != b.ID || a.Title != b.Title || a.Summary != b.Summary ||
		a.Version != b.Version || a.Directory != b.Directory ||
		a.ParentID != b.ParentID || a.Time != b.Time {
		return false
	}
	if (a.Share == nil) != (b.Share == nil) {
		return false
	}
	if a.Share != nil && a.Share.URL != b.Share.URL {
		return false
	}
	return true
}
