package worktree

import (
	"github.com/opencode-desk/core/api"
	"github.com/opencode-desk/core/pathutil"
)

// Hydrate cross-references sessions with the available worktrees of one
// project and returns an updated sessionID→Metadata map.
//
// Freshly discovered fields win, but fields a discovery pass does not report
// (Status, CreatedFromBranch) are carried over from the existing entry.
// Entries for sessions whose directory no longer matches any worktree are
// dropped (the worktree was deleted or archived).
//
// Returns nil when no entry actually changed, so the caller can skip a state
// update and downstream memoization stays referentially stable.
func Hydrate(sessions []api.Session, projectDirectory string, existing map[string]Metadata, available []Metadata) map[string]Metadata {
	byPath := make(map[string]Metadata, len(available))
	for _, meta := range available {
		byPath[pathutil.MustNormalize(meta.Path)] = meta
	}

	projectDir := pathutil.MustNormalize(projectDirectory)

	updated := make(map[string]Metadata, len(existing))
	changed := false

	// Entries for sessions outside this project are kept untouched; only the
	// project's own sessions are reconciled against its worktrees.
	inProject := make(map[string]bool, len(sessions))

	for _, sess := range sessions {
		dir, ok := pathutil.Normalize(sess.Directory)
		if !ok {
			continue
		}

		fresh, found := byPath[dir]
		prev, had := existing[sess.ID]

		// A session belongs to this pass when its directory matches one of
		// the project's worktrees, sits under the project root, or its
		// existing entry was recorded against this project. Worktrees
		// usually live outside the project root, so a pure prefix check is
		// not enough.
		owned := found ||
			pathutil.IsDescendant(projectDir, dir) ||
			(had && pathutil.MustNormalize(prev.ProjectDirectory) == projectDir)
		if !owned {
			continue
		}
		inProject[sess.ID] = true

		if !found {
			// Worktree gone — drop any stale entry
			if had {
				changed = true
			}
			continue
		}

		if had {
			// Keep previously known fields that discovery doesn't re-report
			if fresh.Status == "" {
				fresh.Status = prev.Status
			}
			if fresh.CreatedFromBranch == "" {
				fresh.CreatedFromBranch = prev.CreatedFromBranch
			}
			if fresh != prev {
				changed = true
			}
		} else {
			changed = true
		}
		updated[sess.ID] = fresh
	}

	// Carry over entries that this pass did not own
	for id, meta := range existing {
		if !inProject[id] {
			updated[id] = meta
		}
	}

	if !changed {
		return nil
	}
	return updated
}
