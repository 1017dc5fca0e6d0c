package gitops

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitResult represents the outcome of a commit operation.
type CommitResult struct {
	Committed bool   // Whether a commit was made
	Hash      string // The commit hash (if committed)
}

// CommitAll stages all changes in repoPath and commits them with message.
// A clean working tree is not an error; the result reports Committed=false.
func CommitAll(repoPath, message string) (*CommitResult, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("failed to stage changes: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	if status.IsClean() {
		return &CommitResult{Committed: false}, nil
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "compound",
			Email: "bot@compound.sh",
			When:  time.Now(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return &CommitResult{Committed: true, Hash: hash.String()}, nil
}

// CreateBranch creates and checks out a new branch from current HEAD.
func CreateBranch(branchName string) error {
	cmd := exec.Command("git", "checkout", "-b", branchName)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to create branch %q: %w (stderr: %s)", branchName, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// CurrentBranch returns the name of the branch checked out in repoPath.
func CurrentBranch(repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("not on a branch (detached HEAD at %s)", head.Hash().String()[:7])
	}
	return head.Name().Short(), nil
}

// PushBranch pushes the branch to origin with upstream tracking.
func PushBranch(branchName string) error {
	cmd := exec.Command("git", "push", "-u", "origin", branchName)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to push branch %q: %w (stderr: %s)", branchName, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// CreatePR opens a draft pull request via the GitHub CLI and returns its URL.
func CreatePR(title, body string) (string, error) {
	cmd := exec.Command("gh", "pr", "create", "--draft", "--title", title, "--body", body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to create PR: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}
