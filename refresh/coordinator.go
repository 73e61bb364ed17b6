// Package refresh coordinates config reloads after the backend restarts or
// a config file changes. The backend may be mid-restart when a refresh is
// requested, so the coordinator polls its health endpoint with a two-phase
// backoff before reloading the requested resource scopes.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opencode-desk/core/logger"
)

// ErrServerUnavailable is returned when the backend never becomes healthy
// within the refresh wait window.
var ErrServerUnavailable = errors.New("server did not become healthy in time")

// HealthChecker probes backend readiness. *api.Client satisfies this.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Reloader refreshes config resources once the backend is healthy.
// Providers and agents are directory-scoped; commands and skills are
// global.
type Reloader interface {
	ReloadProviders(ctx context.Context, directory string) error
	ReloadAgents(ctx context.Context, directory string) error
	ReloadCommands(ctx context.Context) error
	ReloadSkills(ctx context.Context) error
}

// DirectoryResolver supplies the directories a refresh can target.
type DirectoryResolver interface {
	ProjectRoots() []string
	CurrentDirectory() string
}

// Scope names one reloadable resource family.
type Scope string

const (
	ScopeProviders Scope = "providers"
	ScopeAgents    Scope = "agents"
	ScopeCommands  Scope = "commands"
	ScopeSkills    Scope = "skills"
	ScopeAll       Scope = "all"
)

// Mode selects which directories a refresh covers.
type Mode string

const (
	// ModeActiveDirectory refreshes only the current directory.
	ModeActiveDirectory Mode = "active"
	// ModeAllDirectories refreshes every tracked project root.
	ModeAllDirectories Mode = "all"
)

// Options configures one refresh.
type Options struct {
	// Message describes why the refresh is running; logged only.
	Message string
	// Delay gives a restarting backend a head start before the first
	// health probe. Capped at the coordinator's delay ceiling.
	Delay time.Duration
	// Scopes lists what to reload; empty means everything.
	Scopes []Scope
	// Mode defaults to ModeActiveDirectory.
	Mode Mode
}

// Coordinator runs refreshes. Concurrent Refresh calls are not queued or
// rejected; the busy flag is advisory, for the UI to show progress.
type Coordinator struct {
	health   HealthChecker
	reloader Reloader
	dirs     DirectoryResolver
	log      *slog.Logger

	// poll schedule, injectable for tests. The two phases exist because a
	// config-file edit resolves almost instantly while a full backend
	// restart takes seconds; a single fixed interval serves one of those
	// cases badly.
	fastPollInterval time.Duration
	fastPollAttempts int
	maxPollInterval  time.Duration
	maxWait          time.Duration
	maxDelay         time.Duration

	busy atomic.Bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPollSchedule overrides the health-poll timing.
func WithPollSchedule(fastInterval time.Duration, fastAttempts int, maxInterval, maxWait time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.fastPollInterval = fastInterval
		c.fastPollAttempts = fastAttempts
		c.maxPollInterval = maxInterval
		c.maxWait = maxWait
	}
}

// NewCoordinator creates a refresh coordinator.
func NewCoordinator(health HealthChecker, reloader Reloader, dirs DirectoryResolver, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		health:           health,
		reloader:         reloader,
		dirs:             dirs,
		log:              logger.WithComponent("refresh"),
		fastPollInterval: 250 * time.Millisecond,
		fastPollAttempts: 4,
		maxPollInterval:  2 * time.Second,
		maxWait:          20 * time.Second,
		maxDelay:         time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether a refresh is in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// Refresh waits for the backend to be healthy, then reloads the requested
// scopes. The busy flag always clears, even on error, so the UI never gets
// stuck showing an update in progress.
func (c *Coordinator) Refresh(ctx context.Context, opts Options) error {
	c.busy.Store(true)
	defer c.busy.Store(false)

	if opts.Message != "" {
		c.log.Info("config refresh", "reason", opts.Message)
	}

	if delay := min(opts.Delay, c.maxDelay); delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if err := c.waitHealthy(ctx); err != nil {
		return err
	}
	return c.reloadScopes(ctx, opts)
}

// waitHealthy polls the health endpoint until it responds or the wait
// window expires. First phase: a few quick probes at a fixed interval.
// Second phase: the interval doubles up to a ceiling.
func (c *Coordinator) waitHealthy(ctx context.Context) error {
	deadline := time.Now().Add(c.maxWait)
	interval := c.fastPollInterval

	for attempt := 0; ; attempt++ {
		err := c.health.Health(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt >= c.fastPollAttempts {
			interval = min(interval*2, c.maxPollInterval)
		}
		next := time.Now().Add(interval)
		if next.After(deadline) {
			c.log.Warn("health poll window exhausted", "attempts", attempt+1, "error", err)
			return fmt.Errorf("%w: %v", ErrServerUnavailable, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func scopeSet(scopes []Scope) map[Scope]bool {
	set := make(map[Scope]bool)
	if len(scopes) == 0 {
		set[ScopeAll] = true
	}
	for _, scope := range scopes {
		set[scope] = true
	}
	if set[ScopeAll] {
		set[ScopeProviders] = true
		set[ScopeAgents] = true
		set[ScopeCommands] = true
		set[ScopeSkills] = true
	}
	return set
}

// reloadScopes runs the directory-scoped reloads (providers, agents) in
// parallel per directory, and the global ones (commands, skills) once.
func (c *Coordinator) reloadScopes(ctx context.Context, opts Options) error {
	scopes := scopeSet(opts.Scopes)

	var directories []string
	if opts.Mode == ModeAllDirectories {
		directories = c.dirs.ProjectRoots()
	} else if cur := c.dirs.CurrentDirectory(); cur != "" {
		directories = []string{cur}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, dir := range directories {
		dir := dir
		if scopes[ScopeProviders] {
			g.Go(func() error {
				if err := c.reloader.ReloadProviders(gctx, dir); err != nil {
					return fmt.Errorf("reloading providers for %s: %w", dir, err)
				}
				return nil
			})
		}
		if scopes[ScopeAgents] {
			g.Go(func() error {
				if err := c.reloader.ReloadAgents(gctx, dir); err != nil {
					return fmt.Errorf("reloading agents for %s: %w", dir, err)
				}
				return nil
			})
		}
	}
	if scopes[ScopeCommands] {
		g.Go(func() error {
			if err := c.reloader.ReloadCommands(gctx); err != nil {
				return fmt.Errorf("reloading commands: %w", err)
			}
			return nil
		})
	}
	if scopes[ScopeSkills] {
		g.Go(func() error {
			if err := c.reloader.ReloadSkills(gctx); err != nil {
				return fmt.Errorf("reloading skills: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
