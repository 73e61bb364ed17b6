package refresh

import (
	"context"

	"github.com/opencode-desk/core/api"
)

// ClientReloader implements Reloader against the backend API. The optional
// callbacks receive the freshly listed resources so callers can update
// their own caches.
type ClientReloader struct {
	Client *api.Client

	OnProviders func(directory string, providers []api.Provider)
	OnAgents    func(directory string, agents []api.Agent)
	OnCommands  func(commands []api.Command)
	OnSkills    func(skills []api.Skill)
}

func (r *ClientReloader) ReloadProviders(ctx context.Context, directory string) error {
	providers, err := r.Client.ListProviders(ctx, directory)
	if err != nil {
		return err
	}
	if r.OnProviders != nil {
		r.OnProviders(directory, providers)
	}
	return nil
}

func (r *ClientReloader) ReloadAgents(ctx context.Context, directory string) error {
	agents, err := r.Client.ListAgents(ctx, directory)
	if err != nil {
		return err
	}
	if r.OnAgents != nil {
		r.OnAgents(directory, agents)
	}
	return nil
}

func (r *ClientReloader) ReloadCommands(ctx context.Context) error {
	commands, err := r.Client.ListCommands(ctx, "")
	if err != nil {
		return err
	}
	if r.OnCommands != nil {
		r.OnCommands(commands)
	}
	return nil
}

func (r *ClientReloader) ReloadSkills(ctx context.Context) error {
	skills, err := r.Client.ListSkills(ctx, "")
	if err != nil {
		return err
	}
	if r.OnSkills != nil {
		r.OnSkills(skills)
	}
	return nil
}

var _ Reloader = (*ClientReloader)(nil)
