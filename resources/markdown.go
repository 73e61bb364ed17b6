package resources

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// readMarkdownEntry parses a markdown file with optional YAML frontmatter.
// A file without frontmatter is all body.
func readMarkdownEntry(path string) (front map[string]any, body string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return parseFrontmatter(string(data))
}

func parseFrontmatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, frontmatterDelim+"\n") && content != frontmatterDelim {
		return nil, content, nil
	}

	rest := strings.TrimPrefix(content, frontmatterDelim+"\n")
	idx := strings.Index(rest, "\n"+frontmatterDelim)
	if idx < 0 {
		return nil, content, nil // unterminated frontmatter, treat as body
	}

	var front map[string]any
	if err := yaml.Unmarshal([]byte(rest[:idx]), &front); err != nil {
		return nil, "", fmt.Errorf("parsing frontmatter: %w", err)
	}

	body := rest[idx+len("\n"+frontmatterDelim):]
	body = strings.TrimPrefix(body, "\n")
	return front, body, nil
}

// writeMarkdownEntry serializes frontmatter plus body to path.
func writeMarkdownEntry(path string, front map[string]any, body string) error {
	var b strings.Builder
	if len(front) > 0 {
		data, err := yaml.Marshal(front)
		if err != nil {
			return fmt.Errorf("serializing frontmatter: %w", err)
		}
		b.WriteString(frontmatterDelim + "\n")
		b.Write(data)
		b.WriteString(frontmatterDelim + "\n")
	}
	b.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// jsonConfigKey maps a kind to its top-level key in opencode.json.
func jsonConfigKey(kind Kind) string {
	return string(kind)
}

// readJSONConfig returns the entries of one kind from a JSON config file.
// A missing file yields an empty map, not an error.
func readJSONConfig(path string, kind Kind) (map[string]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]map[string]any{}, nil
		}
		return nil, err
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	section, ok := root[jsonConfigKey(kind)]
	if !ok {
		return map[string]map[string]any{}, nil
	}
	var entries map[string]map[string]any
	if err := json.Unmarshal(section, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s section of %s: %w", kind, path, err)
	}
	return entries, nil
}

// updateJSONConfig rewrites one entry (or removes it when cfg is nil) in a
// JSON config file, preserving unrelated sections.
func updateJSONConfig(path string, kind Kind, name string, cfg map[string]any) error {
	root := map[string]json.RawMessage{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &root); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	key := jsonConfigKey(kind)
	entries := map[string]map[string]any{}
	if section, ok := root[key]; ok {
		if err := json.Unmarshal(section, &entries); err != nil {
			return fmt.Errorf("parsing %s section of %s: %w", kind, path, err)
		}
	}

	if cfg == nil {
		delete(entries, name)
	} else {
		entries[name] = cfg
	}

	if len(entries) == 0 {
		delete(root, key)
	} else {
		section, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		root[key] = section
	}

	out, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}
