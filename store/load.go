package store

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/opencode-desk/core/api"
	"github.com/opencode-desk/core/pathutil"
	"github.com/opencode-desk/core/worktree"
)

// loadResult is one project root's contribution to a load cycle.
type loadResult struct {
	root      string
	sessions  []api.Session
	worktrees []worktree.Metadata
	err       error
}

// LoadSessions refreshes the store from the server: for every tracked
// project root it fetches the root's sessions, discovers git worktrees and
// fetches each worktree's sessions, then merges, dedupes and reindexes.
// Per-root failures are isolated; a root that errors contributes nothing
// but doesn't abort the cycle. A later LoadSessions call supersedes an
// earlier one whose results arrive late.
func (s *Store) LoadSessions(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.loadGen++
	gen := s.loadGen
	roots := s.dirs.ProjectRoots()
	s.mu.Unlock()
	s.notify()

	cache := newCanonicalCache()
	results := make([]loadResult, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	for i, root := range roots {
		i, root := i, root
		g.Go(func() error {
			results[i] = s.loadRoot(gctx, root, cache)
			return nil
		})
	}
	g.Wait()

	var merged []api.Session
	var available []worktree.Metadata
	var failures []string
	for _, res := range results {
		if res.err != nil {
			s.log.Warn("session load failed for project", "root", res.root, "error", res.err)
			failures = append(failures, fmt.Sprintf("%s: %v", res.root, res.err))
			continue
		}
		merged = append(merged, res.sessions...)
		available = append(available, res.worktrees...)
	}
	merged = DedupeSessionsByID(merged)

	s.mu.Lock()
	if gen != s.loadGen {
		// A newer load started while this one was in flight; discard.
		s.mu.Unlock()
		return nil
	}

	s.setSessionsLocked(merged)
	s.availableWorktrees = available

	for _, root := range roots {
		if updated := worktree.Hydrate(merged, root, s.worktreeMeta, available); updated != nil {
			s.worktreeMeta = updated
		}
	}

	activeDir := s.resolveActiveDirLocked(roots)
	s.currentSessionID = s.resolveCurrentSessionLocked(activeDir)
	s.lastLoadedDir = activeDir
	if activeDir != "" {
		s.client.SetActiveDirectory(activeDir)
	}
	s.pruneSelectionLocked(roots)

	s.loading = false
	if len(failures) > 0 {
		// Surviving roots still loaded, but the UI has to know about the
		// ones that didn't.
		s.lastError = fmt.Sprintf("session load failed: %s", strings.Join(failures, "; "))
	}
	s.persistSnapshotLocked()
	s.mu.Unlock()
	s.notify()

	if len(failures) == len(roots) && len(roots) > 0 {
		return fmt.Errorf("all project loads failed: %v", failures)
	}
	return nil
}

// loadRoot fetches one project root's sessions plus, for git repositories,
// the sessions of each managed worktree.
func (s *Store) loadRoot(ctx context.Context, root string, cache *canonicalCache) loadResult {
	res := loadResult{root: root}

	sessions, err := s.fetchSessionsForDirectory(ctx, root, cache)
	if err != nil {
		res.err = err
		return res
	}
	res.sessions = sessions

	if s.worktrees == nil || !s.worktrees.IsGitRepo(ctx, root) {
		return res
	}

	trees, err := s.worktrees.List(ctx, root)
	if err != nil {
		// Worktree discovery failing shouldn't lose the root's sessions.
		s.log.Warn("worktree discovery failed", "root", root, "error", err)
		return res
	}
	res.worktrees = trees

	rootKey := pathutil.MustNormalize(root)
	for _, tree := range trees {
		if pathutil.MustNormalize(tree.Path) == rootKey {
			continue // primary checkout already fetched
		}
		extra, err := s.fetchSessionsForDirectory(ctx, tree.Path, cache)
		if err != nil {
			s.log.Warn("worktree session fetch failed", "path", tree.Path, "error", err)
			continue
		}
		res.sessions = append(res.sessions, extra...)
	}
	return res
}

// resolveActiveDirLocked picks the directory subsequent directory-relative
// server calls should default to. Caller must hold mu.
func (s *Store) resolveActiveDirLocked(roots []string) string {
	if cur := s.dirs.CurrentDirectory(); cur != "" {
		return cur
	}
	if s.lastLoadedDir != "" {
		return s.lastLoadedDir
	}
	if len(roots) > 0 {
		return roots[0]
	}
	return ""
}

// resolveCurrentSessionLocked reselects the active session after a load.
// Priority: the previously current session if still present, then the
// persisted per-directory selection, then the first session in the active
// directory, then the first session overall. Caller must hold mu.
func (s *Store) resolveCurrentSessionLocked(activeDir string) string {
	present := make(map[string]bool, len(s.sessions))
	for _, sess := range s.sessions {
		present[sess.ID] = true
	}

	if s.currentSessionID != "" && present[s.currentSessionID] {
		return s.currentSessionID
	}
	if s.selection != nil && activeDir != "" {
		if id := s.selection.Get(activeDir); id != "" && present[id] {
			return id
		}
	}
	if activeDir != "" {
		if key, ok := pathutil.Normalize(activeDir); ok {
			if sessions := s.byDirectory[key]; len(sessions) > 0 {
				return sessions[0].ID
			}
		}
	}
	if len(s.sessions) > 0 {
		return s.sessions[0].ID
	}
	return ""
}

// pruneSelectionLocked drops persisted selections that point at sessions no
// longer present. Caller must hold mu.
func (s *Store) pruneSelectionLocked(roots []string) {
	if s.selection == nil {
		return
	}
	valid := make(map[string]bool, len(s.sessions))
	for _, sess := range s.sessions {
		valid[sess.ID] = true
	}
	for _, root := range roots {
		s.selection.Prune(root, valid)
	}
}
