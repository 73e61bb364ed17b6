// Package worktree discovers git worktrees for a project and cross-references
// them with session directories so the UI can show branch and path metadata
// next to each session.
package worktree

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/opencode-desk/core/exec"
	"github.com/opencode-desk/core/logger"
	"github.com/opencode-desk/core/pathutil"
)

// Kind distinguishes the project's main checkout from linked worktrees.
const (
	KindPrimary = "primary"
	KindLinked  = "linked"
)

// Metadata describes one git worktree associated with a project.
type Metadata struct {
	Path              string `json:"path"`
	Branch            string `json:"branch"`
	Label             string `json:"label"`
	Name              string `json:"name"`
	ProjectDirectory  string `json:"projectDirectory"`
	CreatedFromBranch string `json:"createdFromBranch,omitempty"`
	Kind              string `json:"kind"`
	Status            string `json:"status,omitempty"`
	Source            string `json:"source,omitempty"`
}

// Service runs git worktree operations through an injectable executor.
type Service struct {
	executor exec.CommandExecutor
}

// NewService creates a worktree service using the default executor.
func NewService() *Service {
	return &Service{executor: exec.GetDefaultExecutor()}
}

// NewServiceWithExecutor creates a worktree service with a custom executor (for testing).
func NewServiceWithExecutor(executor exec.CommandExecutor) *Service {
	return &Service{executor: executor}
}

// IsGitRepo reports whether dir is inside a git repository.
func (s *Service) IsGitRepo(ctx context.Context, dir string) bool {
	_, _, err := s.executor.Run(ctx, dir, "git", "rev-parse", "--git-dir")
	return err == nil
}

// List returns all worktrees of the repository at projectDir, the primary
// checkout first. Parsed from `git worktree list --porcelain`.
func (s *Service) List(ctx context.Context, projectDir string) ([]Metadata, error) {
	output, err := s.executor.Output(ctx, projectDir, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}
	return parseWorktreeList(string(output), projectDir), nil
}

// parseWorktreeList parses porcelain output. Each stanza looks like:
//
//	worktree /path/to/checkout
//	HEAD abc123...
//	branch refs/heads/main
//
// separated by blank lines. Detached and bare entries have no branch line.
func parseWorktreeList(output, projectDir string) []Metadata {
	var result []Metadata
	var current *Metadata

	flush := func() {
		if current == nil {
			return
		}
		if current.Branch != "" {
			current.Label = current.Branch
			current.Name = filepath.Base(current.Branch)
		} else {
			current.Label = filepath.Base(current.Path)
			current.Name = current.Label
		}
		if len(result) == 0 {
			current.Kind = KindPrimary
		} else {
			current.Kind = KindLinked
		}
		result = append(result, *current)
		current = nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			path := pathutil.MustNormalize(strings.TrimPrefix(line, "worktree "))
			current = &Metadata{
				Path:             path,
				ProjectDirectory: pathutil.MustNormalize(projectDir),
				Source:           "git",
			}
		case strings.HasPrefix(line, "branch "):
			if current != nil {
				ref := strings.TrimPrefix(line, "branch ")
				current.Branch = strings.TrimPrefix(ref, "refs/heads/")
			}
		}
	}
	flush()

	return result
}

// Archive removes a worktree after its session has been deleted. The
// worktree prune afterwards is best-effort.
func (s *Service) Archive(ctx context.Context, projectDir, worktreePath string) error {
	log := logger.WithComponent("worktree")

	output, err := s.executor.CombinedOutput(ctx, projectDir, "git", "worktree", "remove", worktreePath, "--force")
	if err != nil {
		return fmt.Errorf("failed to remove worktree: %s: %w", strings.TrimSpace(string(output)), err)
	}

	if output, err := s.executor.CombinedOutput(ctx, projectDir, "git", "worktree", "prune"); err != nil {
		log.Warn("worktree prune failed (best-effort)", "output", string(output), "error", err)
	}

	log.Info("worktree archived", "path", worktreePath)
	return nil
}
