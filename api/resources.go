package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Scope says which config layer currently defines a resource entry.
type Scope string

const (
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
)

// ReloadHint is returned by config mutation endpoints. RequiresReload means
// the server must reload (or restart) before the change is visible;
// ReloadDelayMS suggests how long to wait before the first health probe.
type ReloadHint struct {
	RequiresReload bool   `json:"requiresReload,omitempty"`
	Message        string `json:"message,omitempty"`
	ReloadDelayMS  int    `json:"reloadDelayMs,omitempty"`
}

// Model is one model offered by a provider.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider is a configured model provider.
type Provider struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Models []Model `json:"models"`
}

// Agent is a named agent configuration.
type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Model       string `json:"model,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Scope       Scope  `json:"scope,omitempty"`
}

// Command is a named slash-command template.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template,omitempty"`
	Agent       string `json:"agent,omitempty"`
	Scope       Scope  `json:"scope,omitempty"`
}

// Skill is a named skill definition.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Scope       Scope  `json:"scope,omitempty"`
}

// MCPServer is a configured MCP server entry.
type MCPServer struct {
	Name    string            `json:"name"`
	Type    string            `json:"type,omitempty"` // "local" or "remote"
	Command []string          `json:"command,omitempty"`
	URL     string            `json:"url,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Enabled bool              `json:"enabled"`
	Scope   Scope             `json:"scope,omitempty"`
}

// ListProviders returns the providers configured for a directory.
func (c *Client) ListProviders(ctx context.Context, directory string) ([]Provider, error) {
	var out struct {
		Providers []Provider `json:"providers"`
	}
	if err := c.do(ctx, http.MethodGet, "/config/providers", c.directoryQuery(directory), nil, &out); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

// ListAgents returns the agents visible from a directory.
func (c *Client) ListAgents(ctx context.Context, directory string) ([]Agent, error) {
	var agents []Agent
	if err := c.do(ctx, http.MethodGet, "/agent", c.directoryQuery(directory), nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// ListCommands returns the commands visible from a directory.
func (c *Client) ListCommands(ctx context.Context, directory string) ([]Command, error) {
	var commands []Command
	if err := c.do(ctx, http.MethodGet, "/command", c.directoryQuery(directory), nil, &commands); err != nil {
		return nil, err
	}
	return commands, nil
}

// ListSkills returns the skills visible from a directory.
func (c *Client) ListSkills(ctx context.Context, directory string) ([]Skill, error) {
	var skills []Skill
	if err := c.do(ctx, http.MethodGet, "/skill", c.directoryQuery(directory), nil, &skills); err != nil {
		return nil, err
	}
	return skills, nil
}

// ListMCPServers returns the MCP servers visible from a directory.
func (c *Client) ListMCPServers(ctx context.Context, directory string) ([]MCPServer, error) {
	var servers []MCPServer
	if err := c.do(ctx, http.MethodGet, "/mcp", c.directoryQuery(directory), nil, &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// resourcePath maps a resource kind to its endpoint path segment.
func resourcePath(kind string) (string, error) {
	switch kind {
	case "agent", "command", "skill", "mcp":
		return "/" + kind, nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
}

// CreateResource creates a named config resource of the given kind
// ("agent", "command", "skill" or "mcp") and returns the server's reload
// hint.
func (c *Client) CreateResource(ctx context.Context, kind, directory string, body any) (*ReloadHint, error) {
	path, err := resourcePath(kind)
	if err != nil {
		return nil, err
	}
	var hint ReloadHint
	if err := c.do(ctx, http.MethodPost, path, c.directoryQuery(directory), body, &hint); err != nil {
		return nil, err
	}
	return &hint, nil
}

// UpdateResource updates a named config resource and returns the reload hint.
func (c *Client) UpdateResource(ctx context.Context, kind, name, directory string, body any) (*ReloadHint, error) {
	path, err := resourcePath(kind)
	if err != nil {
		return nil, err
	}
	var hint ReloadHint
	if err := c.do(ctx, http.MethodPut, path+"/"+url.PathEscape(name), c.directoryQuery(directory), body, &hint); err != nil {
		return nil, err
	}
	return &hint, nil
}

// DeleteResource deletes a named config resource and returns the reload hint.
func (c *Client) DeleteResource(ctx context.Context, kind, name, directory string) (*ReloadHint, error) {
	path, err := resourcePath(kind)
	if err != nil {
		return nil, err
	}
	var hint ReloadHint
	if err := c.do(ctx, http.MethodDelete, path+"/"+url.PathEscape(name), c.directoryQuery(directory), nil, &hint); err != nil {
		return nil, err
	}
	return &hint, nil
}

// TriggerConfigReload asks the server to reload its config file.
func (c *Client) TriggerConfigReload(ctx context.Context, directory string) error {
	return c.do(ctx, http.MethodPost, "/config/reload", c.directoryQuery(directory), nil, nil)
}
