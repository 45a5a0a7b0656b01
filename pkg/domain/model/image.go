package model

import (
	"fmt"
	"time"
)

// ImageRef identifies a container image in a registry
type ImageRef struct {
	Registry   string `json:"registry"`   // Registry host, e.g. "ghcr.io"
	Repository string `json:"repository"` // Image repository, e.g. "cloudforet-io/console"
	Tag        string `json:"tag"`        // Image tag, the commit SHA of the release
}

func (x ImageRef) String() string {
	return fmt.Sprintf("%s/%s:%s", x.Registry, x.Repository, x.Tag)
}

// RegistryCredential is a short-lived credential for registry login.
// The secret is redacted when the credential is logged.
type RegistryCredential struct {
	Registry  string    // Registry host the credential is valid for
	Username  string    // Login username
	Secret    string    `masq:"secret"` // Password or exchanged access token
	ExpiresAt time.Time // Zero for static credentials
}

// BuildResult represents the outcome of an image build and push
type BuildResult struct {
	Image     ImageRef  `json:"image"`
	Platforms Platforms `json:"platforms"`
	Digest    string    `json:"digest,omitempty"`
}
