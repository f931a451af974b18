package types

import "strings"

type Metadata struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Owners      []string `yaml:"owners"`
	Description string   `yaml:"description,omitempty"`
}

// CatalogDefaults provides workstation-level defaults that the CLI and
// application layer use when a value is not explicitly provided via
// flags or environment variables. Embedding defaults in the catalog
// eliminates the need for a separate config file or repetitive CLI
// flags.
type CatalogDefaults struct {
	CacheDir    string `yaml:"cache_dir,omitempty"`
	StateDir    string `yaml:"state_dir,omitempty"`
	WorkDir     string `yaml:"work_dir,omitempty"`
	MirrorMap   string `yaml:"mirror_map,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
}

// Digest is the expected content hash of a component artifact. A zero
// Digest means the catalog did not provide one; any network fetch for
// such a component must be refused.
type Digest struct {
	Algorithm DigestAlgorithm `yaml:"algorithm"`
	Value     string          `yaml:"value"`
}

func (d Digest) IsZero() bool {
	return strings.TrimSpace(d.Value) == ""
}

// Equal compares two digests case-insensitively on the hex value.
func (d Digest) Equal(other Digest) bool {
	if d.Algorithm != other.Algorithm {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(d.Value), strings.TrimSpace(other.Value))
}

func (d Digest) String() string {
	return string(d.Algorithm) + ":" + strings.ToLower(strings.TrimSpace(d.Value))
}

type PostCheck struct {
	Kind    CheckKind `yaml:"kind"`
	Path    string    `yaml:"path,omitempty"`
	Command string    `yaml:"command,omitempty"`
	Args    []string  `yaml:"args,omitempty"`
}

// UndoSpec declares how to reverse a command action. Copy and extract
// actions are reversed from the recorded filesystem effects and do not
// need one.
type UndoSpec struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

type InstallAction struct {
	Kind        ActionKind  `yaml:"kind"`
	Command     string      `yaml:"command,omitempty"`
	Args        []string    `yaml:"args,omitempty"`
	WorkDir     string      `yaml:"work_dir,omitempty"`
	Dest        string      `yaml:"dest,omitempty"`
	StripPrefix string      `yaml:"strip_prefix,omitempty"`
	Undo        *UndoSpec   `yaml:"undo,omitempty"`
	Checks      []PostCheck `yaml:"checks,omitempty"`
}

type ComponentSpec struct {
	Name          string        `yaml:"name"`
	Version       string        `yaml:"version"`
	Scheme        VersionScheme `yaml:"scheme,omitempty"`
	URL           string        `yaml:"url"`
	Mirrors       []string      `yaml:"mirrors,omitempty"`
	Digest        Digest        `yaml:"digest"`
	Action        InstallAction `yaml:"action"`
	DependsOn     []string      `yaml:"depends_on,omitempty"`
	ConflictsWith []string      `yaml:"conflicts_with,omitempty"`
	SizeEstimate  int64         `yaml:"size_estimate,omitempty"`
}

// EffectiveScheme returns the version comparison scheme, defaulting to
// Debian ordering when the catalog omits one.
func (c ComponentSpec) EffectiveScheme() VersionScheme {
	if c.Scheme == "" {
		return VersionSchemeDeb
	}
	return c.Scheme
}

type Catalog struct {
	APIVersion string          `yaml:"api_version"`
	Kind       CatalogKind     `yaml:"kind"`
	Metadata   Metadata        `yaml:"metadata"`
	Defaults   CatalogDefaults `yaml:"defaults,omitempty"`
	Components []ComponentSpec `yaml:"components"`
}

// Component returns the spec with the given name, if present.
func (c Catalog) Component(name string) (ComponentSpec, bool) {
	for _, component := range c.Components {
		if component.Name == name {
			return component, true
		}
	}
	return ComponentSpec{}, false
}
