package worktree

import (
	"context"
	"errors"
	"testing"

	"github.com/opencode-desk/core/exec"
)

const porcelainOutput = `worktree /home/u/proj
HEAD 1111111111111111111111111111111111111111
branch refs/heads/main

worktree /home/u/proj-wt/feature-x
HEAD 2222222222222222222222222222222222222222
branch refs/heads/feature-x

worktree /home/u/proj-wt/detached
HEAD 3333333333333333333333333333333333333333
detached
`

func TestList_ParsesPorcelain(t *testing.T) {
	mock := exec.NewMockExecutor(nil)
	mock.AddPrefixMatch("git", []string{"worktree", "list", "--porcelain"}, exec.MockResponse{
		Stdout: []byte(porcelainOutput),
	})

	svc := NewServiceWithExecutor(mock)
	worktrees, err := svc.List(context.Background(), "/home/u/proj")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(worktrees) != 3 {
		t.Fatalf("expected 3 worktrees, got %d", len(worktrees))
	}

	primary := worktrees[0]
	if primary.Path != "/home/u/proj" || primary.Branch != "main" || primary.Kind != KindPrimary {
		t.Errorf("unexpected primary %+v", primary)
	}

	linked := worktrees[1]
	if linked.Path != "/home/u/proj-wt/feature-x" || linked.Branch != "feature-x" || linked.Kind != KindLinked {
		t.Errorf("unexpected linked %+v", linked)
	}
	if linked.Label != "feature-x" || linked.Name != "feature-x" {
		t.Errorf("unexpected label/name %+v", linked)
	}
	if linked.ProjectDirectory != "/home/u/proj" {
		t.Errorf("ProjectDirectory = %q", linked.ProjectDirectory)
	}

	detached := worktrees[2]
	if detached.Branch != "" || detached.Label != "detached" {
		t.Errorf("unexpected detached %+v", detached)
	}
}

func TestList_Error(t *testing.T) {
	mock := exec.NewMockExecutor(nil)
	mock.AddPrefixMatch("git", []string{"worktree", "list"}, exec.MockResponse{
		Err: errors.New("not a git repository"),
	})

	svc := NewServiceWithExecutor(mock)
	if _, err := svc.List(context.Background(), "/nowhere"); err == nil {
		t.Error("expected error")
	}
}

func TestArchive(t *testing.T) {
	mock := exec.NewMockExecutor(nil)

	svc := NewServiceWithExecutor(mock)
	if err := svc.Archive(context.Background(), "/home/u/proj", "/home/u/proj-wt/feature-x"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	calls := mock.GetCalls()
	if len(calls) != 2 {
		t.Fatalf("expected remove + prune, got %d calls", len(calls))
	}
	if calls[0].Args[1] != "remove" || calls[1].Args[1] != "prune" {
		t.Errorf("unexpected calls %+v", calls)
	}
}

func TestArchive_RemoveFails(t *testing.T) {
	mock := exec.NewMockExecutor(nil)
	mock.AddPrefixMatch("git", []string{"worktree", "remove"}, exec.MockResponse{
		Stderr: []byte("fatal: worktree is dirty"),
		Err:    errors.New("exit status 128"),
	})

	svc := NewServiceWithExecutor(mock)
	err := svc.Archive(context.Background(), "/home/u/proj", "/home/u/proj-wt/feature-x")
	if err == nil {
		t.Fatal("expected error when remove fails")
	}
}

func TestIsGitRepo(t *testing.T) {
	mock := exec.NewMockExecutor(nil)
	svc := NewServiceWithExecutor(mock)

	// MockExecutor defaults to success
	if !svc.IsGitRepo(context.Background(), "/home/u/proj") {
		t.Error("expected IsGitRepo=true")
	}

	failing := exec.NewMockExecutor(nil)
	failing.AddPrefixMatch("git", []string{"rev-parse"}, exec.MockResponse{Err: errors.New("nope")})
	svc = NewServiceWithExecutor(failing)
	if svc.IsGitRepo(context.Background(), "/not/a/repo") {
		t.Error("expected IsGitRepo=false")
	}
}
