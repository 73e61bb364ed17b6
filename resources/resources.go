// Package resources manages the filesystem-backed config entries the
// backend reads: agents, commands, skills and MCP servers. Entries live in
// layered locations; an entry's scope is determined purely by which layer
// currently defines it, not by any field in the entry itself.
//
// Precedence, highest first:
//
//  1. project markdown file   <project>/.opencode/<kind>/<name>.md
//  2. user markdown file      <userConfigDir>/<kind>/<name>.md
//  3. project JSON config     <project>/.opencode/opencode.json
//  4. user JSON config        <userConfigDir>/opencode.json
//  5. custom JSON config      $OPENCODE_CONFIG
//
// MCP servers have no markdown form; they exist only in the JSON layers.
package resources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/opencode-desk/core/logger"
	"github.com/opencode-desk/core/paths"
)

// Kind names a resource family.
type Kind string

const (
	KindAgent   Kind = "agent"
	KindCommand Kind = "command"
	KindSkill   Kind = "skill"
	KindMCP     Kind = "mcp"
)

// Scope says which level defines an entry.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
)

// Format is the on-disk representation of an entry.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ConfigEnvVar overrides the lowest-precedence JSON config location.
const ConfigEnvVar = "OPENCODE_CONFIG"

const (
	projectConfigDirName = ".opencode"
	jsonConfigFileName   = "opencode.json"
)

// Location is where an entry is currently defined.
type Location struct {
	Scope  Scope
	Path   string
	Format Format
}

// Entry is one config resource with its resolved location.
type Entry struct {
	Name        string
	Kind        Kind
	Scope       Scope
	Path        string
	Format      Format
	Description string
	// Body is the markdown content after the frontmatter; empty for JSON
	// entries.
	Body string
	// Config holds the frontmatter fields or the JSON object.
	Config map[string]any
}

// ErrNotFound is wrapped into lookup failures for missing entries.
var ErrNotFound = fmt.Errorf("resource not found")

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidateName rejects names that can't be used as file names or JSON
// keys. Checked synchronously before any filesystem work.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("resource name is required")
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid resource name %q: use letters, digits, hyphens and underscores", name)
	}
	return nil
}

func validKind(kind Kind) error {
	switch kind {
	case KindAgent, KindCommand, KindSkill, KindMCP:
		return nil
	}
	return fmt.Errorf("unknown resource kind %q", kind)
}

// Manager resolves and edits config resources. The user config directory
// and environment lookup are injectable for tests.
type Manager struct {
	userDir   string
	lookupEnv func(string) (string, bool)
	log       *slog.Logger
}

// NewManager creates a manager rooted at the user's opencode config
// directory.
func NewManager() (*Manager, error) {
	userDir, err := paths.UserOpencodeConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolving user config dir: %w", err)
	}
	return NewManagerWithDirs(userDir, os.LookupEnv), nil
}

// NewManagerWithDirs creates a manager with explicit roots.
func NewManagerWithDirs(userDir string, lookupEnv func(string) (string, bool)) *Manager {
	return &Manager{
		userDir:   userDir,
		lookupEnv: lookupEnv,
		log:       logger.WithComponent("resources"),
	}
}

// layer is one place an entry can be defined.
type layer struct {
	scope    Scope
	format   Format
	path     string // markdown file or JSON config file
	material bool   // markdown layers carry a per-entry file, JSON a shared one
}

// layersFor returns the candidate layers for (kind, name), highest
// precedence first. name may be empty for listing, in which case markdown
// layers point at the kind directory.
func (m *Manager) layersFor(kind Kind, name, workingDir string) []layer {
	var layers []layer

	if kind != KindMCP {
		projectKindDir := filepath.Join(workingDir, projectConfigDirName, string(kind))
		userKindDir := filepath.Join(m.userDir, string(kind))
		projectPath, userPath := projectKindDir, userKindDir
		if name != "" {
			projectPath = filepath.Join(projectKindDir, name+".md")
			userPath = filepath.Join(userKindDir, name+".md")
		}
		layers = append(layers,
			layer{scope: ScopeProject, format: FormatMarkdown, path: projectPath, material: true},
			layer{scope: ScopeUser, format: FormatMarkdown, path: userPath, material: true},
		)
	}

	layers = append(layers,
		layer{scope: ScopeProject, format: FormatJSON, path: filepath.Join(workingDir, projectConfigDirName, jsonConfigFileName)},
		layer{scope: ScopeUser, format: FormatJSON, path: filepath.Join(m.userDir, jsonConfigFileName)},
	)
	if custom, ok := m.lookupEnv(ConfigEnvVar); ok && custom != "" {
		layers = append(layers, layer{scope: ScopeUser, format: FormatJSON, path: custom})
	}
	return layers
}

// Resolve finds where (kind, name) is currently defined.
func (m *Manager) Resolve(kind Kind, name, workingDir string) (Location, error) {
	if err := validKind(kind); err != nil {
		return Location{}, err
	}
	if err := ValidateName(name); err != nil {
		return Location{}, err
	}

	for _, l := range m.layersFor(kind, name, workingDir) {
		switch l.format {
		case FormatMarkdown:
			if _, err := os.Stat(l.path); err == nil {
				return Location{Scope: l.scope, Path: l.path, Format: FormatMarkdown}, nil
			}
		case FormatJSON:
			entries, err := readJSONConfig(l.path, kind)
			if err != nil {
				m.log.Warn("skipping unreadable config", "path", l.path, "error", err)
				continue
			}
			if _, ok := entries[name]; ok {
				return Location{Scope: l.scope, Path: l.path, Format: FormatJSON}, nil
			}
		}
	}
	return Location{}, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
}

// List returns all entries of a kind visible from workingDir, with
// higher-precedence layers shadowing lower ones. Sorted by name.
func (m *Manager) List(kind Kind, workingDir string) ([]Entry, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}

	byName := make(map[string]Entry)
	layers := m.layersFor(kind, "", workingDir)

	// Walk lowest precedence first so higher layers overwrite.
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		switch l.format {
		case FormatJSON:
			entries, err := readJSONConfig(l.path, kind)
			if err != nil {
				m.log.Warn("skipping unreadable config", "path", l.path, "error", err)
				continue
			}
			for name, cfg := range entries {
				byName[name] = Entry{
					Name:        name,
					Kind:        kind,
					Scope:       l.scope,
					Path:        l.path,
					Format:      FormatJSON,
					Description: stringField(cfg, "description"),
					Config:      cfg,
				}
			}
		case FormatMarkdown:
			files, err := os.ReadDir(l.path)
			if err != nil {
				continue
			}
			for _, f := range files {
				if f.IsDir() || filepath.Ext(f.Name()) != ".md" {
					continue
				}
				name := f.Name()[:len(f.Name())-len(".md")]
				path := filepath.Join(l.path, f.Name())
				front, body, err := readMarkdownEntry(path)
				if err != nil {
					m.log.Warn("skipping unreadable entry", "path", path, "error", err)
					continue
				}
				byName[name] = Entry{
					Name:        name,
					Kind:        kind,
					Scope:       l.scope,
					Path:        path,
					Format:      FormatMarkdown,
					Description: stringField(front, "description"),
					Body:        body,
					Config:      front,
				}
			}
		}
	}

	out := make([]Entry, 0, len(byName))
	for _, entry := range byName {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get loads one entry.
func (m *Manager) Get(kind Kind, name, workingDir string) (Entry, error) {
	loc, err := m.Resolve(kind, name, workingDir)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Name: name, Kind: kind, Scope: loc.Scope, Path: loc.Path, Format: loc.Format}
	switch loc.Format {
	case FormatMarkdown:
		front, body, err := readMarkdownEntry(loc.Path)
		if err != nil {
			return Entry{}, err
		}
		entry.Config = front
		entry.Body = body
		entry.Description = stringField(front, "description")
	case FormatJSON:
		entries, err := readJSONConfig(loc.Path, kind)
		if err != nil {
			return Entry{}, err
		}
		entry.Config = entries[name]
		entry.Description = stringField(entry.Config, "description")
	}
	return entry, nil
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
