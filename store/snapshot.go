package store

import (
	"encoding/json"

	"github.com/opencode-desk/core/api"
	"github.com/opencode-desk/core/worktree"
)

const snapshotKey = "session-store-snapshot"

// snapshot is the persisted shape of the store. Best-effort: a missing or
// unreadable snapshot just means a cold start.
type snapshot struct {
	Sessions           []api.Session                `json:"sessions"`
	CurrentSessionID   string                       `json:"currentSessionId,omitempty"`
	ClientCreated      []string                     `json:"clientCreated,omitempty"`
	WorktreeMeta       map[string]worktree.Metadata `json:"worktreeMetadata,omitempty"`
	AvailableWorktrees []worktree.Metadata          `json:"availableWorktrees,omitempty"`
	Paused             map[string]PausedSessionInfo `json:"pausedSessions,omitempty"`
	LastLoadedDir      string                       `json:"lastLoadedDirectory,omitempty"`
}

// persistSnapshotLocked writes the current state for the next process
// start. Caller must hold mu. Failures are logged inside the state layer
// and otherwise ignored.
func (s *Store) persistSnapshotLocked() {
	if s.state == nil {
		return
	}

	snap := snapshot{
		Sessions:           s.sessions,
		CurrentSessionID:   s.currentSessionID,
		WorktreeMeta:       s.worktreeMeta,
		AvailableWorktrees: s.availableWorktrees,
		Paused:             s.paused,
		LastLoadedDir:      s.lastLoadedDir,
	}
	for id := range s.clientCreated {
		snap.ClientCreated = append(snap.ClientCreated, id)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("snapshot serialization failed", "error", err)
		return
	}
	s.state.PutBestEffort(snapshotKey, data)
}

// restoreSnapshot loads the persisted state at construction. Optimistic
// temp ids never survive a restart: their create flow died with the old
// process, so they are dropped rather than left dangling.
func (s *Store) restoreSnapshot() {
	if s.state == nil {
		return
	}
	data, ok := s.state.GetBestEffort(snapshotKey)
	if !ok {
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn("discarding unreadable snapshot", "error", err)
		return
	}

	kept := make([]api.Session, 0, len(snap.Sessions))
	for _, sess := range snap.Sessions {
		if !IsTempID(sess.ID) {
			kept = append(kept, sess)
		}
	}
	s.setSessionsLocked(DedupeSessionsByID(kept))

	if !IsTempID(snap.CurrentSessionID) {
		s.currentSessionID = snap.CurrentSessionID
	}
	for _, id := range snap.ClientCreated {
		if !IsTempID(id) {
			s.clientCreated[id] = true
		}
	}
	if snap.WorktreeMeta != nil {
		s.worktreeMeta = snap.WorktreeMeta
	}
	s.availableWorktrees = snap.AvailableWorktrees
	if snap.Paused != nil {
		s.paused = snap.Paused
	}
	s.lastLoadedDir = snap.LastLoadedDir
}
