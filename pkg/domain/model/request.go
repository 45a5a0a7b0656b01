package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultVersion is applied when a trigger does not specify a release version
const DefaultVersion = "2.0.0"

// Platform identifiers accepted in the container_arch trigger input
const (
	PlatformAMD64 = "linux/amd64"
	PlatformARM64 = "linux/arm64"
)

// Platforms is the set of target platforms for a container image build
type Platforms []string

func (x Platforms) String() string {
	return strings.Join(x, ",")
}

// ParsePlatforms parses the container_arch trigger input. Only the two
// published choices are accepted; anything else is rejected before any
// stage runs.
func ParsePlatforms(s string) (Platforms, error) {
	switch s {
	case PlatformAMD64:
		return Platforms{PlatformAMD64}, nil
	case PlatformAMD64 + "," + PlatformARM64:
		return Platforms{PlatformAMD64, PlatformARM64}, nil
	default:
		return nil, goerr.New("unsupported container_arch",
			goerr.V("container_arch", s),
			goerr.T(types.ErrTagBadRequest))
	}
}

var versionPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)

// TriggerInput carries raw trigger parameters before validation
type TriggerInput struct {
	Version       string            // Release version, e.g. "2.0.0"
	ContainerArch string            // Raw container_arch choice
	RequestedBy   string            // Operator or automation that fired the trigger
	Kind          types.TriggerKind // How the trigger arrived
}

// ReleaseRequest is a validated release trigger together with the
// repository context it applies to
type ReleaseRequest struct {
	Version     string    `json:"version"`
	Platforms   Platforms `json:"platforms"`
	Repository  string    `json:"repository"`
	CommitSHA   string    `json:"commit_sha"`
	Branch      string    `json:"branch,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Validate checks all request fields. A request that fails validation
// must never reach a stage.
func (x *ReleaseRequest) Validate() error {
	if x.Version == "" {
		return goerr.New("version is required", goerr.T(types.ErrTagBadRequest))
	}
	if !versionPattern.MatchString(x.Version) {
		return goerr.New("version is not a valid semantic version",
			goerr.V("version", x.Version),
			goerr.T(types.ErrTagBadRequest))
	}
	if len(x.Platforms) == 0 {
		return goerr.New("platforms are required", goerr.T(types.ErrTagBadRequest))
	}
	for _, p := range x.Platforms {
		if p != PlatformAMD64 && p != PlatformARM64 {
			return goerr.New("unsupported platform",
				goerr.V("platform", p),
				goerr.T(types.ErrTagBadRequest))
		}
	}
	if x.Repository == "" {
		return goerr.New("repository could not be determined", goerr.T(types.ErrTagConfig))
	}
	if x.CommitSHA == "" {
		return goerr.New("commit SHA could not be determined", goerr.T(types.ErrTagConfig))
	}
	return nil
}

// TagVersion returns the git tag name for the release, e.g. "v2.0.0"
func (x *ReleaseRequest) TagVersion() string {
	if strings.HasPrefix(x.Version, "v") {
		return x.Version
	}
	return "v" + x.Version
}
