package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where catapult looks for a release manifest when no
// path is configured
const DefaultPath = "catapult.yml"

// Load reads and validates a release manifest. The format is chosen by
// file extension: .yml and .yaml are YAML, .toml is TOML.
func Load(path string) (*model.Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read manifest",
			goerr.T(types.ErrTagConfig), goerr.V("path", path))
	}

	var manifest model.Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(raw, &manifest); err != nil {
			return nil, goerr.Wrap(err, "failed to parse yaml manifest",
				goerr.T(types.ErrTagConfig), goerr.V("path", path))
		}

	case ".toml":
		if err := toml.Unmarshal(raw, &manifest); err != nil {
			return nil, goerr.Wrap(err, "failed to parse toml manifest",
				goerr.T(types.ErrTagConfig), goerr.V("path", path))
		}

	default:
		return nil, goerr.New("unsupported manifest format",
			goerr.T(types.ErrTagConfig), goerr.V("path", path))
	}

	if err := manifest.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid manifest", goerr.V("path", path))
	}
	return &manifest, nil
}

// LoadOrDefault loads the manifest at path, falling back to the built-in
// stage set when path is the default location and no file exists there.
// A missing manifest at an explicitly configured path is an error.
func LoadOrDefault(path string) (*model.Manifest, error) {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && path == DefaultPath {
		return model.DefaultManifest(), nil
	}
	return Load(path)
}
