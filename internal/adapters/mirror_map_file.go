package adapters

import (
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"
)

// MirrorMapFileAdapter loads the host substitution table from a YAML
// file of the form:
//
//	mirrors:
//	  dl.example.com:
//	    - mirror-eu.example.com
//	    - mirror-us.example.com
//
// An empty path means no mirror map is configured, which is not an
// error: the resolver falls back to primaries and manual mirrors.
type MirrorMapFileAdapter struct {
	Path string
}

func NewMirrorMapFileAdapter(path string) MirrorMapFileAdapter {
	return MirrorMapFileAdapter{Path: path}
}

type mirrorMapFile struct {
	Mirrors map[string][]string `yaml:"mirrors"`
}

func (a MirrorMapFileAdapter) Load() (map[string][]string, error) {
	if strings.TrimSpace(a.Path) == "" {
		return map[string][]string{}, nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("mirror map file not found").
			WithCause(err)
	}
	var parsed mirrorMapFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse mirror map yaml").
			WithCause(err)
	}
	if parsed.Mirrors == nil {
		return map[string][]string{}, nil
	}
	return parsed.Mirrors, nil
}
