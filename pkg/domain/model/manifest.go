package model

import (
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from strings like "5m"
// in YAML and TOML manifests
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder
func (x *Duration) UnmarshalText(b []byte) error {
	d, err := time.ParseDuration(string(b))
	if err != nil {
		return goerr.Wrap(err, "invalid duration", goerr.V("value", string(b)), goerr.T(types.ErrTagConfig))
	}
	*x = Duration(d)
	return nil
}

// UnmarshalYAML accepts duration strings such as "90s" or "10m"
func (x *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return goerr.Wrap(err, "duration must be a string", goerr.T(types.ErrTagConfig))
	}
	return x.UnmarshalText([]byte(s))
}

// MarshalYAML renders the duration back into its string form
func (x Duration) MarshalYAML() (any, error) {
	return time.Duration(x).String(), nil
}

// Duration converts back to time.Duration
func (x Duration) Duration() time.Duration {
	return time.Duration(x)
}

// StageSpec declares one stage of the release pipeline. A disabled stage
// is recorded in the run but never executed.
type StageSpec struct {
	Name    types.StageName   `yaml:"name" toml:"name" json:"name"`
	Enabled bool              `yaml:"enabled" toml:"enabled" json:"enabled"`
	Needs   []types.StageName `yaml:"needs,omitempty" toml:"needs,omitempty" json:"needs,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Schedule configures periodic release triggers
type Schedule struct {
	Interval      Duration `yaml:"interval" toml:"interval" json:"interval"`
	Version       string   `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty"`
	ContainerArch string   `yaml:"container_arch,omitempty" toml:"container_arch,omitempty" json:"container_arch,omitempty"`
}

// Manifest is the pipeline definition loaded from catapult.yml (or .toml).
// Stage order in the manifest is execution order.
type Manifest struct {
	Stages   []StageSpec `yaml:"stages" toml:"stages" json:"stages"`
	Schedule *Schedule   `yaml:"schedule,omitempty" toml:"schedule,omitempty" json:"schedule,omitempty"`
}

// DefaultManifest returns the pipeline used when no manifest file exists:
// only the image stage is active, the remaining stages are administratively
// disabled.
func DefaultManifest() *Manifest {
	return &Manifest{
		Stages: []StageSpec{
			{Name: types.StageTag, Enabled: false},
			{Name: types.StagePublish, Enabled: false, Needs: []types.StageName{types.StageTag}},
			{Name: types.StageImage, Enabled: true},
			{Name: types.StageNotify, Enabled: false, Needs: []types.StageName{types.StageImage}},
		},
	}
}

// Validate checks stage declarations. Dependencies may only reference
// stages declared earlier in the list, which also rules out cycles.
func (x *Manifest) Validate() error {
	if len(x.Stages) == 0 {
		return goerr.New("manifest declares no stages", goerr.T(types.ErrTagConfig))
	}

	seen := map[types.StageName]bool{}
	for _, st := range x.Stages {
		if !types.KnownStage(st.Name) {
			return goerr.New("unknown stage", goerr.V("stage", st.Name), goerr.T(types.ErrTagConfig))
		}
		if seen[st.Name] {
			return goerr.New("duplicated stage", goerr.V("stage", st.Name), goerr.T(types.ErrTagConfig))
		}
		for _, dep := range st.Needs {
			if dep == st.Name {
				return goerr.New("stage depends on itself", goerr.V("stage", st.Name), goerr.T(types.ErrTagConfig))
			}
			if !seen[dep] {
				return goerr.New("stage depends on a stage not declared before it",
					goerr.V("stage", st.Name),
					goerr.V("needs", dep),
					goerr.T(types.ErrTagConfig))
			}
		}
		seen[st.Name] = true
	}

	if x.Schedule != nil {
		if x.Schedule.Interval.Duration() <= 0 {
			return goerr.New("schedule interval must be positive", goerr.T(types.ErrTagConfig))
		}
		if x.Schedule.ContainerArch != "" {
			if _, err := ParsePlatforms(x.Schedule.ContainerArch); err != nil {
				return goerr.Wrap(err, "invalid schedule container_arch", goerr.T(types.ErrTagConfig))
			}
		}
		if v := x.Schedule.Version; v != "" && !versionPattern.MatchString(v) {
			return goerr.New("invalid schedule version", goerr.V("version", v), goerr.T(types.ErrTagConfig))
		}
	}

	return nil
}

// Stage looks up a stage declaration by name
func (x *Manifest) Stage(name types.StageName) (StageSpec, bool) {
	for _, st := range x.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return StageSpec{}, false
}
