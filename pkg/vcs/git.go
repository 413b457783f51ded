// Package vcs commits the checkpoint file and pushes it to a git remote so
// an interrupted run can resume from another machine.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"prodfetch/pkg/logger"
)

// tokenUser is the basic-auth username GitHub accepts alongside an access token
const tokenUser = "x-access-token"

// Options configures a GitSyncer
type Options struct {
	RepoPath string
	Remote   string
	// Repository is an "owner/name" slug; when set the push goes to its
	// GitHub HTTPS URL instead of the remote's configured URL
	Repository  string
	Branch      string
	Token       string
	AuthorName  string
	AuthorEmail string
	Logger      logger.Logger
}

// GitSyncer stages, commits and pushes one file
type GitSyncer struct {
	opts   Options
	logger logger.Logger
	now    func() time.Time
}

// NewGitSyncer returns nil when no token is configured, which disables sync
func NewGitSyncer(opts Options) *GitSyncer {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Token == "" {
		opts.Logger.Warn("No git access token configured, checkpoint sync disabled")
		return nil
	}
	if opts.RepoPath == "" {
		opts.RepoPath = "."
	}
	if opts.Remote == "" {
		opts.Remote = "origin"
	}

	return &GitSyncer{
		opts:   opts,
		logger: opts.Logger,
		now:    time.Now,
	}
}

// Sync commits path if it changed and pushes the branch
func (g *GitSyncer) Sync(ctx context.Context, path string) error {
	repo, err := git.PlainOpenWithOptions(g.opts.RepoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}

	committed, err := g.commit(repo, path)
	if err != nil {
		return err
	}
	if !committed {
		g.logger.DebugWithFields("Checkpoint unchanged, nothing to sync", map[string]interface{}{
			"path": path,
		})
		return nil
	}

	return g.push(ctx, repo)
}

// Commit stages path and commits it when it differs from HEAD. It reports
// whether a commit was created.
func (g *GitSyncer) Commit(path string) (bool, error) {
	repo, err := git.PlainOpenWithOptions(g.opts.RepoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return false, fmt.Errorf("failed to open repository: %w", err)
	}
	return g.commit(repo, path)
}

func (g *GitSyncer) commit(repo *git.Repository, path string) (bool, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to open worktree: %w", err)
	}

	rel, err := relativePath(wt.Filesystem.Root(), path)
	if err != nil {
		return false, err
	}

	if _, err := wt.Add(rel); err != nil {
		return false, fmt.Errorf("failed to stage %s: %w", rel, err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("failed to read worktree status: %w", err)
	}
	fs, ok := status[rel]
	if !ok || fs.Staging == git.Unmodified || fs.Staging == git.Untracked {
		return false, nil
	}

	hash, err := wt.Commit(fmt.Sprintf("Update %s", filepath.Base(rel)), &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.opts.AuthorName,
			Email: g.opts.AuthorEmail,
			When:  g.now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	g.logger.InfoWithFields("Committed checkpoint", map[string]interface{}{
		"path":   rel,
		"commit": hash.String()[:7],
	})
	return true, nil
}

func (g *GitSyncer) push(ctx context.Context, repo *git.Repository) error {
	branch, err := g.branch(repo)
	if err != nil {
		return err
	}

	ref := plumbing.NewBranchReferenceName(branch)
	opts := &git.PushOptions{
		RemoteName: g.opts.Remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(ref + ":" + ref)},
		Auth: &http.BasicAuth{
			Username: tokenUser,
			Password: g.opts.Token,
		},
	}
	if g.opts.Repository != "" {
		opts.RemoteURL = RepositoryURL(g.opts.Repository)
	}

	err = repo.PushContext(ctx, opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", branch, err)
	}

	g.logger.InfoWithFields("Pushed checkpoint", map[string]interface{}{
		"remote": g.opts.Remote,
		"branch": branch,
	})
	return nil
}

// branch returns the configured branch or the one HEAD points at
func (g *GitSyncer) branch(repo *git.Repository) (string, error) {
	if g.opts.Branch != "" {
		return g.opts.Branch, nil
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", errors.New("HEAD is detached and no branch is configured")
	}
	return head.Name().Short(), nil
}

// RepositoryURL returns the GitHub HTTPS URL of an "owner/name" slug
func RepositoryURL(slug string) string {
	return "https://github.com/" + slug + ".git"
}

func relativePath(root, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if resolved, err := filepath.EvalSymlinks(rootAbs); err == nil {
		rootAbs = resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}

	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the repository", path)
	}
	return filepath.ToSlash(rel), nil
}
