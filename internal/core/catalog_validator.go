package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"devkit-installer/internal/types"
)

type CatalogValidator struct{}

// componentNamePattern keeps names safe for ledger filenames and cache
// keys.
var componentNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

var validDigestAlgorithms = map[types.DigestAlgorithm]struct{}{
	types.DigestAlgorithmSHA256: {},
	types.DigestAlgorithmSHA512: {},
}

var validVersionSchemes = map[types.VersionScheme]struct{}{
	types.VersionSchemeDeb:    {},
	types.VersionSchemePep440: {},
}

var validActionKinds = map[types.ActionKind]struct{}{
	types.ActionKindNone:    {},
	types.ActionKindCommand: {},
	types.ActionKindCopy:    {},
	types.ActionKindExtract: {},
}

var validCheckKinds = map[types.CheckKind]struct{}{
	types.CheckKindFileExists: {},
	types.CheckKindCommand:    {},
}

func NewCatalogValidator() CatalogValidator {
	return CatalogValidator{}
}

// Validate rejects malformed catalogs before any work starts. A missing
// digest is deliberately NOT a validation error: the download engine
// refuses such components at fetch time so the failure lands on the
// component, not the batch.
func (v CatalogValidator) Validate(ctx context.Context, catalog types.Catalog) error {
	assert.NotEmpty(ctx, catalog.APIVersion, "api_version must be set")
	assert.NotEmpty(ctx, string(catalog.Kind), "kind must be set")
	assert.NotEmpty(ctx, catalog.Metadata.Name, "metadata.name must be set")
	if catalog.Kind != types.CatalogKindCatalog {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("catalog kind must be %q, got %q", types.CatalogKindCatalog, catalog.Kind))
	}
	if len(catalog.Metadata.Owners) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("metadata.owners must not be empty")
	}
	if len(catalog.Components) == 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("catalog has no components")
	}

	names := map[string]struct{}{}
	for _, component := range catalog.Components {
		names[component.Name] = struct{}{}
	}
	for _, component := range catalog.Components {
		if err := v.validateComponent(component, names); err != nil {
			return err
		}
	}
	log.Ctx(ctx).Debug().
		Str("catalog", catalog.Metadata.Name).
		Int("components", len(catalog.Components)).
		Msg("catalog validated")
	return nil
}

func (v CatalogValidator) validateComponent(component types.ComponentSpec, names map[string]struct{}) error {
	name := strings.TrimSpace(component.Name)
	if name == "" {
		return componentError(component.Name, "name must not be empty")
	}
	if !componentNamePattern.MatchString(name) {
		return componentError(name, "name must start alphanumeric and contain only [a-zA-Z0-9._-]")
	}
	if strings.TrimSpace(component.Version) == "" {
		return componentError(name, "version must not be empty")
	}
	if component.Scheme != "" {
		if _, ok := validVersionSchemes[component.Scheme]; !ok {
			return componentError(name, fmt.Sprintf("unknown version scheme %q", component.Scheme))
		}
	}
	if !component.Digest.IsZero() {
		if _, ok := validDigestAlgorithms[component.Digest.Algorithm]; !ok {
			return componentError(name, fmt.Sprintf("unsupported digest algorithm %q", component.Digest.Algorithm))
		}
	}
	if err := v.validateAction(name, component); err != nil {
		return err
	}
	for _, dep := range component.DependsOn {
		if _, known := names[strings.TrimSpace(dep)]; !known {
			return componentError(name, fmt.Sprintf("depends on unknown component %q", dep))
		}
	}
	for _, conflict := range component.ConflictsWith {
		trimmed := strings.TrimSpace(conflict)
		if trimmed == name {
			return componentError(name, "component conflicts with itself")
		}
	}
	return nil
}

func (v CatalogValidator) validateAction(name string, component types.ComponentSpec) error {
	action := component.Action
	kind := action.Kind
	if kind == "" {
		kind = types.ActionKindNone
	}
	if _, ok := validActionKinds[kind]; !ok {
		return componentError(name, fmt.Sprintf("unknown action kind %q", action.Kind))
	}
	if strings.TrimSpace(component.URL) == "" && kind != types.ActionKindNone {
		return componentError(name, fmt.Sprintf("action %q needs an artifact but no url is set", kind))
	}
	switch kind {
	case types.ActionKindCommand:
		if strings.TrimSpace(action.Command) == "" {
			return componentError(name, "command action requires a command")
		}
	case types.ActionKindCopy, types.ActionKindExtract:
		if strings.TrimSpace(action.Dest) == "" {
			return componentError(name, fmt.Sprintf("%s action requires a dest", kind))
		}
		if action.Undo != nil {
			return componentError(name, fmt.Sprintf("%s action reverses from recorded effects and must not declare undo", kind))
		}
	}
	for _, check := range action.Checks {
		if _, ok := validCheckKinds[check.Kind]; !ok {
			return componentError(name, fmt.Sprintf("unknown post-check kind %q", check.Kind))
		}
		switch check.Kind {
		case types.CheckKindFileExists:
			if strings.TrimSpace(check.Path) == "" {
				return componentError(name, "file_exists post-check requires a path")
			}
		case types.CheckKindCommand:
			if strings.TrimSpace(check.Command) == "" {
				return componentError(name, "command post-check requires a command")
			}
		}
	}
	return nil
}

func componentError(name string, message string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("component %s: %s", name, message))
}
