package core

import (
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"
	debversion "github.com/knqyf263/go-deb-version"

	"devkit-installer/internal/types"
)

// versionCache memoizes parsed version objects to avoid repeated
// parsing when a catalog is compared against many installed records.
type versionCache struct {
	scheme types.VersionScheme
	deb    map[string]debversion.Version
	pep    map[string]pep440.Version
}

// newVersionCache creates an empty cache for the given scheme.
func newVersionCache(scheme types.VersionScheme) *versionCache {
	return &versionCache{
		scheme: scheme,
		deb:    map[string]debversion.Version{},
		pep:    map[string]pep440.Version{},
	}
}

// debVersion returns a parsed Debian version, caching the result.
func (c *versionCache) debVersion(value string) (debversion.Version, error) {
	if parsed, ok := c.deb[value]; ok {
		return parsed, nil
	}
	parsed, err := debversion.NewVersion(value)
	if err != nil {
		return debversion.Version{}, err
	}
	c.deb[value] = parsed
	return parsed, nil
}

// pepVersion returns a parsed PEP 440 version, caching the result.
func (c *versionCache) pepVersion(value string) (pep440.Version, error) {
	if parsed, ok := c.pep[value]; ok {
		return parsed, nil
	}
	parsed, err := pep440.Parse(value)
	if err != nil {
		return pep440.Version{}, err
	}
	c.pep[value] = parsed
	return parsed, nil
}

// compare returns -1, 0, or 1 comparing two version strings under the
// cache's scheme.
func (c *versionCache) compare(a string, b string) (int, error) {
	switch c.scheme {
	case types.VersionSchemeDeb:
		v1, err := c.debVersion(a)
		if err != nil {
			return 0, versionParseError(a, c.scheme, err)
		}
		v2, err := c.debVersion(b)
		if err != nil {
			return 0, versionParseError(b, c.scheme, err)
		}
		return v1.Compare(v2), nil
	case types.VersionSchemePep440:
		v1, err := c.pepVersion(a)
		if err != nil {
			return 0, versionParseError(a, c.scheme, err)
		}
		v2, err := c.pepVersion(b)
		if err != nil {
			return 0, versionParseError(b, c.scheme, err)
		}
		return v1.Compare(v2), nil
	default:
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported version scheme: %s", c.scheme))
	}
}

func versionParseError(value string, scheme types.VersionScheme, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid %s version: %s", scheme, value)).
		WithCause(cause)
}

// VersionComparer compares version strings per scheme, memoizing parse
// results across calls. Not safe for concurrent use; check-updates
// iterates components sequentially.
type VersionComparer struct {
	caches map[types.VersionScheme]*versionCache
}

func NewVersionComparer() *VersionComparer {
	return &VersionComparer{caches: map[types.VersionScheme]*versionCache{}}
}

// Compare returns -1, 0, or 1 for a versus b under the scheme.
func (vc *VersionComparer) Compare(scheme types.VersionScheme, a string, b string) (int, error) {
	cache, ok := vc.caches[scheme]
	if !ok {
		cache = newVersionCache(scheme)
		vc.caches[scheme] = cache
	}
	return cache.compare(a, b)
}

// IsNewer reports whether candidate is strictly newer than installed.
func (vc *VersionComparer) IsNewer(scheme types.VersionScheme, candidate string, installed string) (bool, error) {
	result, err := vc.Compare(scheme, candidate, installed)
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
