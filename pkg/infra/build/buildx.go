package build

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// outputTailLimit bounds how much command output is attached to errors
const outputTailLimit = 4 * 1024

type buildxBuilder struct {
	bin        string
	registry   string
	repository string
	contextDir string
	dockerfile string
	buildArgs  map[string]string
}

// Option is a functional option for the buildx builder
type Option func(*buildxBuilder)

// WithBin overrides the docker binary
func WithBin(bin string) Option {
	return func(x *buildxBuilder) {
		x.bin = bin
	}
}

// WithContextDir sets the build context directory
func WithContextDir(dir string) Option {
	return func(x *buildxBuilder) {
		x.contextDir = dir
	}
}

// WithDockerfile sets the Dockerfile path relative to the context
func WithDockerfile(path string) Option {
	return func(x *buildxBuilder) {
		x.dockerfile = path
	}
}

// WithBuildArg adds a --build-arg passed to every build
func WithBuildArg(key, value string) Option {
	return func(x *buildxBuilder) {
		x.buildArgs[key] = value
	}
}

// New creates an image builder that shells out to docker buildx. Images
// are tagged <registry>/<repository>:<commit SHA>.
func New(registryHost, repository string, opts ...Option) interfaces.ImageBuilder {
	x := &buildxBuilder{
		bin:        "docker",
		registry:   registryHost,
		repository: repository,
		contextDir: ".",
		dockerfile: "Dockerfile",
		buildArgs:  map[string]string{},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// BuildAndPush authenticates to the registry, builds the image for all
// requested platforms and pushes it. Each step failure is classified for
// the stage error taxonomy.
func (x *buildxBuilder) BuildAndPush(ctx context.Context, cred *model.RegistryCredential, req *model.ReleaseRequest) (*model.BuildResult, error) {
	logger := ctxlog.From(ctx)

	ref := model.ImageRef{
		Registry:   x.registry,
		Repository: x.repository,
		Tag:        req.CommitSHA,
	}

	if cred != nil {
		if err := x.login(ctx, cred); err != nil {
			return nil, err
		}
	}

	logger.Info("Building container image",
		"image", ref.String(),
		"platforms", req.Platforms.String(),
		"context", x.contextDir,
	)

	if out, err := x.run(ctx, nil, x.buildCmd(ref, req.Platforms, false)...); err != nil {
		return nil, goerr.Wrap(err, "image build failed",
			goerr.V("image", ref.String()),
			goerr.V("output", tail(out)),
			goerr.T(types.ErrTagBuild))
	}

	iidFile, err := os.CreateTemp("", "catapult-iid-*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create image ID file", goerr.T(types.ErrTagBuild))
	}
	iidPath := iidFile.Name()
	_ = iidFile.Close()
	defer os.Remove(iidPath)

	pushArgs := x.buildCmd(ref, req.Platforms, true, "--iidfile", iidPath)
	if out, err := x.run(ctx, nil, pushArgs...); err != nil {
		return nil, goerr.Wrap(err, "image push failed",
			goerr.V("image", ref.String()),
			goerr.V("output", tail(out)),
			goerr.T(types.ErrTagPush))
	}

	result := &model.BuildResult{
		Image:     ref,
		Platforms: req.Platforms,
	}
	if digest, err := os.ReadFile(iidPath); err == nil {
		result.Digest = strings.TrimSpace(string(digest))
	}

	logger.Info("Pushed container image", "image", ref.String(), "digest", result.Digest)

	return result, nil
}

// login runs docker login with the credential passed over stdin
func (x *buildxBuilder) login(ctx context.Context, cred *model.RegistryCredential) error {
	out, err := x.run(ctx, strings.NewReader(cred.Secret),
		"login", cred.Registry, "--username", cred.Username, "--password-stdin")
	if err != nil {
		return goerr.Wrap(err, "registry login failed",
			goerr.V("registry", cred.Registry),
			goerr.V("username", cred.Username),
			goerr.V("output", tail(out)),
			goerr.T(types.ErrTagAuth))
	}

	ctxlog.From(ctx).Debug("Registry login succeeded", "registry", cred.Registry)
	return nil
}

// buildCmd assembles the buildx argument list shared by the build and
// push steps. The build context stays the final argument.
func (x *buildxBuilder) buildCmd(ref model.ImageRef, platforms model.Platforms, push bool, extra ...string) []string {
	args := []string{
		"buildx", "build",
		"--platform", platforms.String(),
		"--file", x.dockerfile,
		"--tag", ref.String(),
	}

	keys := make([]string, 0, len(x.buildArgs))
	for k := range x.buildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", k+"="+x.buildArgs[k])
	}

	if push {
		args = append(args, "--push")
	}
	args = append(args, extra...)

	return append(args, x.contextDir)
}

// run executes the docker binary and returns its combined output
func (x *buildxBuilder) run(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	var buf bytes.Buffer

	cmd := exec.CommandContext(ctx, x.bin, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if stdin != nil {
		cmd.Stdin = stdin
	}

	ctxlog.From(ctx).Debug("Running docker command", "bin", x.bin, "args", strings.Join(args, " "))

	err := cmd.Run()
	return buf.String(), err
}

// tail returns the last part of command output for error context
func tail(s string) string {
	if len(s) <= outputTailLimit {
		return s
	}
	return s[len(s)-outputTailLimit:]
}
