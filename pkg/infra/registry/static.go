package registry

import (
	"context"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type staticSource struct {
	registry string
	username string
	password string
}

// NewStatic creates a credential source backed by a fixed username and
// password, mainly for local runs and registries without federation
func NewStatic(registryHost, username, password string) interfaces.CredentialSource {
	return &staticSource{
		registry: registryHost,
		username: username,
		password: password,
	}
}

func (x *staticSource) Credential(ctx context.Context) (*model.RegistryCredential, error) {
	if x.username == "" || x.password == "" {
		return nil, goerr.New("registry username and password are required",
			goerr.V("registry", x.registry),
			goerr.T(types.ErrTagAuth))
	}

	return &model.RegistryCredential{
		Registry: x.registry,
		Username: x.username,
		Secret:   x.password,
	}, nil
}
