package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencode-desk/core/api"
)

// DeleteOptions controls session deletion.
type DeleteOptions struct {
	// ArchiveWorktree removes the session's git worktree after a successful
	// server-side delete.
	ArchiveWorktree bool
}

// DeleteResult reports the per-id outcome of a batch delete.
type DeleteResult struct {
	DeletedIDs []string
	FailedIDs  []string
	// FailedErrors holds the cause for each failed id.
	FailedErrors map[string]error
	// ArchiveError aggregates worktree-archive failures; the sessions
	// themselves were still deleted.
	ArchiveError error
}

// DeleteSession deletes one session. Deletes against optimistic temp ids
// are rejected with ErrTempSessionDelete: the server-side session may be
// about to replace the temp entry, and there is nothing remote to delete
// yet.
func (s *Store) DeleteSession(ctx context.Context, id string, opts DeleteOptions) error {
	res := s.DeleteSessions(ctx, []string{id}, opts)
	if len(res.FailedIDs) > 0 {
		return fmt.Errorf("deleting session %s: %w", id, res.FailedErrors[id])
	}
	return res.ArchiveError
}

// DeleteSessions deletes a batch of sessions with per-id isolation: one
// failing delete doesn't abort the rest. Worktree archives run only for
// sessions whose server delete succeeded, and their failures are
// aggregated into one error rather than failing the ids.
func (s *Store) DeleteSessions(ctx context.Context, ids []string, opts DeleteOptions) DeleteResult {
	result := DeleteResult{FailedErrors: make(map[string]error)}

	type archiveTarget struct {
		projectDir   string
		worktreePath string
	}
	var archives []archiveTarget

	for _, id := range ids {
		if IsTempID(id) {
			s.log.Warn("refusing to delete unconfirmed session", "id", id)
			result.FailedIDs = append(result.FailedIDs, id)
			result.FailedErrors[id] = ErrTempSessionDelete
			continue
		}

		s.mu.RLock()
		sess, found := api.Session{}, false
		for _, candidate := range s.sessions {
			if candidate.ID == id {
				sess, found = candidate, true
				break
			}
		}
		requestDir := s.client.ActiveDirectory()
		if found {
			requestDir = s.requestDirectoryFor(sess)
		}
		meta, hasMeta := s.worktreeMeta[id]
		s.mu.RUnlock()

		deleted, err := s.client.DeleteSession(ctx, id, requestDir)
		if err != nil || !deleted {
			if err == nil {
				err = fmt.Errorf("server declined the delete")
			}
			s.log.Warn("session delete failed", "id", id, "error", err)
			result.FailedIDs = append(result.FailedIDs, id)
			result.FailedErrors[id] = err
			continue
		}
		result.DeletedIDs = append(result.DeletedIDs, id)

		if opts.ArchiveWorktree && hasMeta && meta.Path != "" {
			archives = append(archives, archiveTarget{
				projectDir:   meta.ProjectDirectory,
				worktreePath: meta.Path,
			})
		}
	}

	if len(result.DeletedIDs) > 0 {
		s.removeSessions(result.DeletedIDs)
	}

	var archiveFailures []string
	for _, target := range archives {
		if err := s.worktrees.Archive(ctx, target.projectDir, target.worktreePath); err != nil {
			s.log.Warn("worktree archive failed", "path", target.worktreePath, "error", err)
			archiveFailures = append(archiveFailures, fmt.Sprintf("%s: %v", target.worktreePath, err))
		}
	}
	if len(archiveFailures) > 0 {
		result.ArchiveError = fmt.Errorf("archiving worktrees: %s", strings.Join(archiveFailures, "; "))
	}
	return result
}

// removeSessions drops the given ids from every store structure.
func (s *Store) removeSessions(ids []string) {
	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		removed[id] = true
	}

	s.mu.Lock()
	kept := make([]api.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if !removed[sess.ID] {
			kept = append(kept, sess)
		}
	}
	s.setSessionsLocked(kept)
	for id := range removed {
		delete(s.clientCreated, id)
		delete(s.worktreeMeta, id)
		delete(s.paused, id)
	}
	if removed[s.currentSessionID] {
		s.currentSessionID = ""
	}
	s.persistSnapshotLocked()
	s.mu.Unlock()
	s.notify()
}
