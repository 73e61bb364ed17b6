package store

import (
	"context"
	"sync"

	"github.com/opencode-desk/core/api"
	"github.com/opencode-desk/core/pathutil"
)

// canonicalCache maps requested directories to the server's canonical form
// for the duration of one load cycle. A fresh cache per cycle keeps stale
// resolutions from outliving backend restarts.
type canonicalCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newCanonicalCache() *canonicalCache {
	return &canonicalCache{entries: make(map[string]string)}
}

func (c *canonicalCache) resolve(ctx context.Context, client *api.Client, directory string) string {
	c.mu.Lock()
	if cached, ok := c.entries[directory]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	canonical, err := client.ResolvePath(ctx, directory)
	if err != nil || canonical == "" {
		// The server couldn't resolve it; treat the requested string as
		// canonical rather than failing the whole fetch.
		canonical = directory
	}

	c.mu.Lock()
	c.entries[directory] = canonical
	c.mu.Unlock()
	return canonical
}

// fetchSessionsForDirectory lists the sessions for one directory. The
// directory is first resolved to the server's canonical form; if the scoped
// listing comes back empty, an unscoped listing is filtered locally, since
// the server's directory matching can be stricter or looser than ours.
// Returned sessions have their directory rewritten back to the requested
// string so directory-keyed maps stay consistent with what the caller asked
// for.
func (s *Store) fetchSessionsForDirectory(ctx context.Context, directory string, cache *canonicalCache) ([]api.Session, error) {
	if directory == "" {
		return s.client.ListSessions(ctx, "")
	}

	canonical := cache.resolve(ctx, s.client, directory)

	sessions, err := s.client.ListSessions(ctx, canonical)
	if err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		// Zero results can mean "nothing there" or "server-side directory
		// matching missed"; the fallback can't tell the two apart, so log
		// what it finds.
		all, err := s.client.ListSessions(ctx, "")
		if err != nil {
			return nil, err
		}
		canonKey := pathutil.MustNormalize(canonical)
		for _, sess := range all {
			key, ok := pathutil.Normalize(sess.Directory)
			if !ok {
				continue
			}
			if key == canonKey || (s.includeDescendants && pathutil.IsDescendant(canonKey, key)) {
				sessions = append(sessions, sess)
			}
		}
		if len(sessions) > 0 {
			s.log.Warn("scoped listing empty, fallback filter matched",
				"directory", directory,
				"canonical", canonical,
				"matched", len(sessions),
				"total", len(all))
		}
	}

	// Rewrite directories back to the requested form. Sessions under
	// subpaths of the canonical root keep their relative suffix.
	if canonical != directory {
		for i := range sessions {
			sessions[i].Directory = pathutil.RebaseUnder(canonical, directory, sessions[i].Directory)
		}
	}
	return sessions, nil
}
