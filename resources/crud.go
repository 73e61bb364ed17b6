package resources

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WriteOptions describes what to store for a created or updated entry.
type WriteOptions struct {
	// Config becomes the frontmatter (markdown entries) or the JSON object
	// (MCP entries).
	Config map[string]any
	// Body is the markdown content; ignored for MCP entries.
	Body string
}

// targetPath picks where a new entry of the given scope is written:
// markdown files for agents/commands/skills, the scope's opencode.json for
// MCP servers.
func (m *Manager) targetPath(kind Kind, name, workingDir string, scope Scope) (string, Format) {
	if kind == KindMCP {
		if scope == ScopeProject {
			return filepath.Join(workingDir, projectConfigDirName, jsonConfigFileName), FormatJSON
		}
		return filepath.Join(m.userDir, jsonConfigFileName), FormatJSON
	}
	if scope == ScopeProject {
		return filepath.Join(workingDir, projectConfigDirName, string(kind), name+".md"), FormatMarkdown
	}
	return filepath.Join(m.userDir, string(kind), name+".md"), FormatMarkdown
}

// Create writes a new entry at the given scope. Fails if any layer already
// defines the name, since the new entry would either shadow or be shadowed
// in a way the user didn't ask for.
func (m *Manager) Create(kind Kind, name, workingDir string, scope Scope, opts WriteOptions) (Location, error) {
	if err := validKind(kind); err != nil {
		return Location{}, err
	}
	if err := ValidateName(name); err != nil {
		return Location{}, err
	}

	if existing, err := m.Resolve(kind, name, workingDir); err == nil {
		return Location{}, fmt.Errorf("%s %q already exists at %s", kind, name, existing.Path)
	} else if !errors.Is(err, ErrNotFound) {
		return Location{}, err
	}

	path, format := m.targetPath(kind, name, workingDir, scope)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Location{}, fmt.Errorf("creating %s: %w", kind, err)
	}

	var err error
	switch format {
	case FormatMarkdown:
		err = writeMarkdownEntry(path, opts.Config, opts.Body)
	case FormatJSON:
		cfg := opts.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		err = updateJSONConfig(path, kind, name, cfg)
	}
	if err != nil {
		return Location{}, fmt.Errorf("creating %s %q: %w", kind, name, err)
	}

	m.log.Info("resource created", "kind", kind, "name", name, "scope", scope, "path", path)
	return Location{Scope: scope, Path: path, Format: format}, nil
}

// Update rewrites an entry in place, in whatever layer and format currently
// defines it.
func (m *Manager) Update(kind Kind, name, workingDir string, opts WriteOptions) (Location, error) {
	loc, err := m.Resolve(kind, name, workingDir)
	if err != nil {
		return Location{}, err
	}

	switch loc.Format {
	case FormatMarkdown:
		err = writeMarkdownEntry(loc.Path, opts.Config, opts.Body)
	case FormatJSON:
		cfg := opts.Config
		if cfg == nil {
			cfg = map[string]any{}
		}
		err = updateJSONConfig(loc.Path, kind, name, cfg)
	}
	if err != nil {
		return Location{}, fmt.Errorf("updating %s %q: %w", kind, name, err)
	}

	m.log.Info("resource updated", "kind", kind, "name", name, "path", loc.Path)
	return loc, nil
}

// Delete removes an entry from the layer that defines it. Lower-precedence
// definitions of the same name, if any, become visible again.
func (m *Manager) Delete(kind Kind, name, workingDir string) error {
	loc, err := m.Resolve(kind, name, workingDir)
	if err != nil {
		return err
	}

	switch loc.Format {
	case FormatMarkdown:
		err = os.Remove(loc.Path)
	case FormatJSON:
		err = updateJSONConfig(loc.Path, kind, name, nil)
	}
	if err != nil {
		return fmt.Errorf("deleting %s %q: %w", kind, name, err)
	}

	m.log.Info("resource deleted", "kind", kind, "name", name, "path", loc.Path)
	return nil
}
