package gitx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

type client struct {
	dir       string
	remote    string
	token     string
	overrides model.GitContext
	sigName   string
	sigEmail  string
}

// Option is a functional option for the git client
type Option func(*client)

// WithRemote sets the remote used for context derivation and tag pushes
func WithRemote(name string) Option {
	return func(x *client) {
		x.remote = name
	}
}

// WithToken sets the token used as HTTP basic auth password on pushes
func WithToken(token string) Option {
	return func(x *client) {
		x.token = token
	}
}

// WithOverrides pre-sets context fields, typically from CI environment
// variables. Set fields win over values derived from the repository.
func WithOverrides(overrides model.GitContext) Option {
	return func(x *client) {
		x.overrides = overrides
	}
}

// WithSignature sets the tagger identity for annotated tags
func WithSignature(name, email string) Option {
	return func(x *client) {
		x.sigName = name
		x.sigEmail = email
	}
}

// New creates a git client working on the repository at dir
func New(dir string, opts ...Option) interfaces.GitClient {
	x := &client{
		dir:      dir,
		remote:   "origin",
		sigName:  types.ServiceName,
		sigEmail: types.ServiceName + "@localhost",
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Context resolves the repository slug, commit SHA and branch. Overrides
// are honored first; anything missing is derived from the repository at
// dir.
func (x *client) Context(ctx context.Context) (*model.GitContext, error) {
	out := x.overrides

	if out.CommitSHA == "" || out.Repository == "" || out.Branch == "" {
		if err := x.derive(&out); err != nil {
			return nil, err
		}
	}

	if out.CommitSHA == "" {
		return nil, goerr.New("commit SHA is not available",
			goerr.V("dir", x.dir),
			goerr.T(types.ErrTagConfig))
	}
	if out.Repository == "" {
		return nil, goerr.New("repository is not available",
			goerr.V("dir", x.dir),
			goerr.V("remote", x.remote),
			goerr.T(types.ErrTagConfig))
	}

	ctxlog.From(ctx).Debug("Derived git context",
		"repository", out.Repository,
		"commit_sha", out.CommitSHA,
		"branch", out.Branch,
	)

	return &out, nil
}

// derive fills missing context fields from the local repository
func (x *client) derive(out *model.GitContext) error {
	repo, err := git.PlainOpen(x.dir)
	if err != nil {
		return goerr.Wrap(err, "failed to open git repository",
			goerr.V("dir", x.dir),
			goerr.T(types.ErrTagConfig))
	}

	if out.CommitSHA == "" || out.Branch == "" {
		head, err := repo.Head()
		if err != nil {
			return goerr.Wrap(err, "failed to resolve HEAD",
				goerr.V("dir", x.dir),
				goerr.T(types.ErrTagConfig))
		}
		if out.CommitSHA == "" {
			out.CommitSHA = head.Hash().String()
		}
		if out.Branch == "" && head.Name().IsBranch() {
			out.Branch = head.Name().Short()
		}
	}

	if out.Repository == "" || out.RemoteURL == "" {
		remote, err := repo.Remote(x.remote)
		if err != nil {
			// A repository without the remote is fine as long as the
			// slug was provided by override
			if out.Repository == "" {
				return goerr.Wrap(err, "failed to resolve remote",
					goerr.V("remote", x.remote),
					goerr.T(types.ErrTagConfig))
			}
			return nil
		}
		if urls := remote.Config().URLs; len(urls) > 0 {
			out.RemoteURL = urls[0]
			if out.Repository == "" {
				out.Repository = RepoSlug(urls[0])
			}
		}
	}

	return nil
}

// PushTag creates an annotated tag on the commit and pushes it to the
// configured remote. An already existing tag fails the operation.
func (x *client) PushTag(ctx context.Context, name, commitSHA, message string) error {
	logger := ctxlog.From(ctx)

	repo, err := git.PlainOpen(x.dir)
	if err != nil {
		return goerr.Wrap(err, "failed to open git repository",
			goerr.V("dir", x.dir),
			goerr.T(types.ErrTagConfig))
	}

	_, err = repo.CreateTag(name, plumbing.NewHash(commitSHA), &git.CreateTagOptions{
		Tagger: &object.Signature{
			Name:  x.sigName,
			Email: x.sigEmail,
			When:  time.Now(),
		},
		Message: message,
	})
	if err != nil {
		if errors.Is(err, git.ErrTagExists) {
			return goerr.Wrap(err, "release tag already exists",
				goerr.V("tag", name),
				goerr.T(types.ErrTagPush))
		}
		return goerr.Wrap(err, "failed to create tag",
			goerr.V("tag", name),
			goerr.V("commit_sha", commitSHA),
			goerr.T(types.ErrTagPush))
	}

	logger.Info("Created annotated tag", "tag", name, "commit_sha", commitSHA)

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", name, name))
	pushOpts := &git.PushOptions{
		RemoteName: x.remote,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}
	if x.token != "" {
		pushOpts.Auth = &githttp.BasicAuth{
			Username: "token",
			Password: x.token,
		}
	}

	if err := repo.PushContext(ctx, pushOpts); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			logger.Info("Tag already present on remote", "tag", name)
			return nil
		}
		return goerr.Wrap(err, "failed to push tag",
			goerr.V("tag", name),
			goerr.V("remote", x.remote),
			goerr.T(types.ErrTagPush))
	}

	logger.Info("Pushed tag to remote", "tag", name, "remote", x.remote)
	return nil
}

// RepoSlug extracts "owner/name" from common git remote URL forms
func RepoSlug(remoteURL string) string {
	s := remoteURL
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		// Drop host part
		if j := strings.Index(s, "/"); j >= 0 {
			s = s[j+1:]
		}
	} else if i := strings.Index(s, "@"); i >= 0 {
		// scp-like syntax: git@github.com:owner/name
		s = s[i+1:]
		if j := strings.Index(s, ":"); j >= 0 {
			s = s[j+1:]
		}
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return s
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
