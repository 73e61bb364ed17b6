package state

import (
	"encoding/json"
	"sync"

	"github.com/opencode-desk/core/logger"
	"github.com/opencode-desk/core/pathutil"
)

const selectionKey = "session-selection"

// Selection remembers the last selected session per directory. The map is
// loaded lazily, cached for the process lifetime, and written back on every
// change.
type Selection struct {
	store *Store

	mu     sync.Mutex
	cache  map[string]string
	loaded bool
}

// NewSelection creates a Selection backed by store.
func NewSelection(store *Store) *Selection {
	return &Selection{store: store}
}

// load populates the cache from durable storage. Caller must hold mu.
func (s *Selection) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.cache = make(map[string]string)

	data, ok := s.store.GetBestEffort(selectionKey)
	if !ok {
		return
	}
	if err := json.Unmarshal(data, &s.cache); err != nil {
		logger.WithComponent("state").Warn("discarding unreadable selection map", "error", err)
		s.cache = make(map[string]string)
	}
}

// persist writes the cache back. Caller must hold mu.
func (s *Selection) persist() {
	data, err := json.Marshal(s.cache)
	if err != nil {
		logger.WithComponent("state").Warn("failed to encode selection map", "error", err)
		return
	}
	s.store.PutBestEffort(selectionKey, data)
}

// Get returns the remembered session id for a directory, or "" when there is
// no preference.
func (s *Selection) Get(directory string) string {
	dir, ok := pathutil.Normalize(directory)
	if !ok {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.cache[dir]
}

// Set records (or, with sessionID == "", clears) the selection for a
// directory and persists the map.
func (s *Selection) Set(directory, sessionID string) {
	dir, ok := pathutil.Normalize(directory)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	if sessionID == "" {
		if _, had := s.cache[dir]; !had {
			return
		}
		delete(s.cache, dir)
	} else {
		if s.cache[dir] == sessionID {
			return
		}
		s.cache[dir] = sessionID
	}
	s.persist()
}

// Prune drops the selection for a directory unless it appears in validIDs.
// Called after each directory load so stale selections heal themselves.
func (s *Selection) Prune(directory string, validIDs map[string]bool) {
	dir, ok := pathutil.Normalize(directory)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	id, had := s.cache[dir]
	if !had || validIDs[id] {
		return
	}
	delete(s.cache, dir)
	s.persist()
}
