package build

import (
	"context"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/ctxlog"
)

type noopBuilder struct {
	registry   string
	repository string
}

// NewNoop creates a builder that only logs what it would build. Used by
// dry runs to exercise the pipeline without a container runtime.
func NewNoop(registryHost, repository string) interfaces.ImageBuilder {
	return &noopBuilder{
		registry:   registryHost,
		repository: repository,
	}
}

func (x *noopBuilder) BuildAndPush(ctx context.Context, cred *model.RegistryCredential, req *model.ReleaseRequest) (*model.BuildResult, error) {
	ref := model.ImageRef{
		Registry:   x.registry,
		Repository: x.repository,
		Tag:        req.CommitSHA,
	}

	ctxlog.From(ctx).Info("Dry run, skipping image build",
		"image", ref.String(),
		"platforms", req.Platforms.String(),
	)

	return &model.BuildResult{
		Image:     ref,
		Platforms: req.Platforms,
	}, nil
}
