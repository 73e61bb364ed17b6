// Package store is the session aggregator: it tracks every session across
// the configured project roots and their git worktrees, keeps a
// directory-keyed index over them, and owns the optimistic create, batch
// delete, and pause/resume flows against the backend server.
package store

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opencode-desk/core/api"
	"github.com/opencode-desk/core/logger"
	"github.com/opencode-desk/core/pathutil"
	"github.com/opencode-desk/core/state"
	"github.com/opencode-desk/core/worktree"
)

// ErrTempSessionDelete is returned when a delete targets an optimistic
// session whose server-side creation has not resolved yet.
var ErrTempSessionDelete = errors.New("session is still being created")

// DirectoryResolver supplies the project roots the store loads sessions for
// and the directory that is currently in the foreground.
type DirectoryResolver interface {
	ProjectRoots() []string
	CurrentDirectory() string
}

// ModelSelection is the provider/model/agent combination active when a
// session is paused.
type ModelSelection struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
	Agent      string `json:"agent,omitempty"`
}

// SelectionResolver reports the user's current model selection. Injected so
// pause can capture it without the store knowing about settings storage.
type SelectionResolver interface {
	CurrentModel() ModelSelection
}

// PausedSessionInfo captures everything needed to resume a paused session
// with the configuration it was paused under.
type PausedSessionInfo struct {
	SessionID      string         `json:"sessionID"`
	MessageID      string         `json:"messageID,omitempty"`
	MessageText    string         `json:"messageText"`
	ContextSummary string         `json:"contextSummary,omitempty"`
	Model          ModelSelection `json:"model"`
	PausedAt       int64          `json:"pausedAt"`
}

// Store aggregates sessions across project roots. All exported methods are
// safe for concurrent use; reads under RLock, mutations under Lock.
type Store struct {
	mu sync.RWMutex

	client    *api.Client
	worktrees *worktree.Service
	selection *state.Selection
	state     *state.Store
	dirs      DirectoryResolver
	models    SelectionResolver
	log       *slog.Logger

	// includeDescendants widens the unscoped-list fallback filter to
	// sessions under subdirectories of the requested directory.
	includeDescendants bool

	// create-poll knobs, injectable for tests
	createPollAttempts int
	createPollInterval time.Duration

	sessions           []api.Session
	byDirectory        map[string][]api.Session
	currentSessionID   string
	clientCreated      map[string]bool
	paused             map[string]PausedSessionInfo
	worktreeMeta       map[string]worktree.Metadata
	availableWorktrees []worktree.Metadata
	lastLoadedDir      string

	loading   bool
	lastError string
	loadGen   int

	listeners []func()
}

// Option configures a Store.
type Option func(*Store)

// WithIncludeDescendants makes the fallback filter accept sessions in
// subdirectories of a requested directory, for workspace-wide contexts.
func WithIncludeDescendants() Option {
	return func(s *Store) { s.includeDescendants = true }
}

// WithCreatePoll overrides the reconciliation poll schedule used when the
// server creates sessions asynchronously.
func WithCreatePoll(attempts int, interval time.Duration) Option {
	return func(s *Store) {
		s.createPollAttempts = attempts
		s.createPollInterval = interval
	}
}

// WithSelectionResolver wires the current model selection source used when
// pausing sessions.
func WithSelectionResolver(models SelectionResolver) Option {
	return func(s *Store) { s.models = models }
}

// New creates a session store. stateStore may be nil, in which case
// selection and snapshot persistence are disabled (everything still works,
// nothing survives a restart).
func New(client *api.Client, worktrees *worktree.Service, stateStore *state.Store, dirs DirectoryResolver, opts ...Option) *Store {
	s := &Store{
		client:             client,
		worktrees:          worktrees,
		state:              stateStore,
		dirs:               dirs,
		log:                logger.WithComponent("store"),
		createPollAttempts: 20,
		createPollInterval: 2 * time.Second,
		byDirectory:        make(map[string][]api.Session),
		clientCreated:      make(map[string]bool),
		paused:             make(map[string]PausedSessionInfo),
		worktreeMeta:       make(map[string]worktree.Metadata),
	}
	if stateStore != nil {
		s.selection = state.NewSelection(stateStore)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restoreSnapshot()
	return s
}

// OnChange registers a callback invoked after every observable state change.
// Callbacks run synchronously while no lock is held.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Sessions returns a copy of the current session list.
func (s *Store) Sessions() []api.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// SessionsIn returns the sessions indexed under a directory.
func (s *Store) SessionsIn(directory string) []api.Session {
	key, ok := pathutil.Normalize(directory)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := s.byDirectory[key]
	out := make([]api.Session, len(sessions))
	copy(out, sessions)
	return out
}

// Session returns the session with the given id.
func (s *Store) Session(id string) (api.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return api.Session{}, false
}

// CurrentSessionID returns the id of the active session, or empty.
func (s *Store) CurrentSessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSessionID
}

// SetCurrentSession switches the active session and persists the choice for
// the session's directory.
func (s *Store) SetCurrentSession(id string) {
	s.mu.Lock()
	s.currentSessionID = id
	var dir string
	for _, sess := range s.sessions {
		if sess.ID == id {
			dir = sess.Directory
			break
		}
	}
	if s.selection != nil && dir != "" {
		s.selection.Set(dir, id)
	}
	s.persistSnapshotLocked()
	s.mu.Unlock()
	s.notify()
}

// Loading reports whether a load cycle is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError returns the most recent load failure, or empty.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// LastLoadedDirectory returns the directory resolved as active by the most
// recent load.
func (s *Store) LastLoadedDirectory() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLoadedDir
}

// WorktreeMetadata returns the worktree metadata attached to a session.
func (s *Store) WorktreeMetadata(sessionID string) (worktree.Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.worktreeMeta[sessionID]
	return meta, ok
}

// AvailableWorktrees returns the worktrees discovered during the last load.
func (s *Store) AvailableWorktrees() []worktree.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]worktree.Metadata, len(s.availableWorktrees))
	copy(out, s.availableWorktrees)
	return out
}

// PausedSession returns the captured pause info for a session, if paused.
func (s *Store) PausedSession(sessionID string) (PausedSessionInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.paused[sessionID]
	return info, ok
}

// CreatedByThisClient reports whether the given session was created through
// this store instance.
func (s *Store) CreatedByThisClient(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCreated[sessionID]
}

// DedupeSessionsByID collapses duplicate ids, keeping for each id the entry
// with the greatest update time. The first occurrence's position in the
// list is preserved.
func DedupeSessionsByID(sessions []api.Session) []api.Session {
	best := make(map[string]api.Session, len(sessions))
	order := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		existing, seen := best[sess.ID]
		if !seen {
			order = append(order, sess.ID)
			best[sess.ID] = sess
			continue
		}
		if sess.Time.Updated > existing.Time.Updated {
			best[sess.ID] = sess
		}
	}
	out := make([]api.Session, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// buildDirectoryIndex derives the directory-keyed view of sessions. Every
// mutation of s.sessions goes through this so the index never drifts.
func buildDirectoryIndex(sessions []api.Session) map[string][]api.Session {
	index := make(map[string][]api.Session)
	for _, sess := range sessions {
		key, ok := pathutil.Normalize(sess.Directory)
		if !ok {
			continue
		}
		index[key] = append(index[key], sess)
	}
	return index
}

// setSessionsLocked replaces the session list and rebuilds the index.
// Caller must hold mu.
func (s *Store) setSessionsLocked(sessions []api.Session) {
	s.sessions = sessions
	s.byDirectory = buildDirectoryIndex(sessions)
}

// requestDirectoryFor picks the directory a server call about a session
// should be scoped to: its worktree path, then its own directory, then the
// client's active directory. Caller must hold mu (read or write).
func (s *Store) requestDirectoryFor(sess api.Session) string {
	if meta, ok := s.worktreeMeta[sess.ID]; ok && meta.Path != "" {
		return meta.Path
	}
	if sess.Directory != "" {
		return sess.Directory
	}
	return s.client.ActiveDirectory()
}
