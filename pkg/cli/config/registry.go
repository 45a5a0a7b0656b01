package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/catapult/pkg/infra/registry"
)

// Registry holds container registry configuration. Authentication is
// either federated (token exchange with a signed client assertion) or a
// static username and password.
type Registry struct {
	Host       string
	Repository string

	TokenURL       string
	ClientID       string
	Audience       string
	PrivateKeyFile string

	Username string
	Password string
}

// Flags returns CLI flags for registry configuration
func (c *Registry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "registry",
			Usage:       "Container registry host",
			Value:       "ghcr.io",
			Destination: &c.Host,
			Sources:     cli.EnvVars("CATAPULT_REGISTRY"),
		},
		&cli.StringFlag{
			Name:        "registry-repository",
			Usage:       "Image repository (defaults to the git repository slug)",
			Destination: &c.Repository,
			Sources:     cli.EnvVars("CATAPULT_REGISTRY_REPOSITORY"),
		},
		&cli.StringFlag{
			Name:        "registry-token-url",
			Usage:       "Token exchange endpoint for federated registry auth",
			Destination: &c.TokenURL,
			Sources:     cli.EnvVars("CATAPULT_REGISTRY_TOKEN_URL"),
		},
		&cli.StringFlag{
			Name:        "registry-client-id",
			Usage:       "Client ID asserted in the federation token exchange",
			Destination: &c.ClientID,
			Sources:     cli.EnvVars("CATAPULT_REGISTRY_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:        "registry-audience",
			Usage:       "Audience of the federation token exchange",
			Destination: &c.Audience,
			Sources:     cli.EnvVars("CATAPULT_REGISTRY_AUDIENCE"),
		},
		&cli.StringFlag{
			Name:        "registry-private-key-file",
			Usage:       "PEM private key signing the federation client assertion",
			Destination: &c.PrivateKeyFile,
			Sources:     cli.EnvVars("CATAPULT_REGISTRY_PRIVATE_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "registry-username",
			Usage:       "Static registry username (when not using federation)",
			Destination: &c.Username,
			Sources:     cli.EnvVars("CATAPULT_REGISTRY_USERNAME"),
		},
		&cli.StringFlag{
			Name:        "registry-password",
			Usage:       "Static registry password",
			Destination: &c.Password,
			Sources:     cli.EnvVars("CATAPULT_REGISTRY_PASSWORD"),
		},
	}
}

// CredentialSource builds the credential source for the image stage.
// Federation wins when both auth modes are configured. Returns nil when
// neither is, leaving the image stage unconfigured.
func (c *Registry) CredentialSource() (interfaces.CredentialSource, error) {
	if c.TokenURL != "" {
		if c.ClientID == "" || c.Audience == "" || c.PrivateKeyFile == "" {
			return nil, goerr.New("federated registry auth needs client ID, audience and private key",
				goerr.V("token_url", c.TokenURL),
				goerr.T(types.ErrTagConfig))
		}

		pem, err := os.ReadFile(c.PrivateKeyFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read federation private key",
				goerr.V("path", c.PrivateKeyFile),
				goerr.T(types.ErrTagConfig))
		}

		return registry.NewFederation(c.Host, c.TokenURL, c.ClientID, c.Audience, pem)
	}

	if c.Username != "" {
		return registry.NewStatic(c.Host, c.Username, c.Password), nil
	}

	return nil, nil
}
