package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pkgforge/registry/pkg/recipe"
	"github.com/pkgforge/registry/pkg/repo"
)

// DefaultRecipeFilenames is the fixed probe order tried after any
// preferred filename, recovered from original_source/_INDEX.md naming
// phplock/dub-registry: dub's own two native recipe formats, then
// package.json, a historical artifact of the registry's git heritage,
// probed last (SPEC_FULL.md §4.B).
var DefaultRecipeFilenames = []string{"dub.json", "dub.sdl", "package.json"}

// PackageDescriptionFileKey is the normalized-document key recording
// which candidate filename a version's recipe was read from.
const PackageDescriptionFileKey = "packageDescriptionFile"

// errNoRecipeFile is returned by VersionResolver.Resolve when no candidate
// filename exists in the repository at ref's commit.
var errNoRecipeFile = errors.New("Found no package description file in the repository.")

// VersionResolver implements spec §4.B: from (repo, reference) produce
// normalized version metadata, minimizing repository reads by trying a
// preferred filename (the one found on a previous update of the same
// version) before the platform's known filenames.
type VersionResolver struct {
	Parser         recipe.Parser
	KnownFilenames []string // defaults to DefaultRecipeFilenames if nil
}

// NewVersionResolver returns a resolver using the JSON default parser and
// DefaultRecipeFilenames.
func NewVersionResolver() *VersionResolver {
	return &VersionResolver{Parser: recipe.JSONParser{}, KnownFilenames: DefaultRecipeFilenames}
}

// candidates returns the probe order: preferred first (if non-empty),
// then the known filenames in their fixed order, skipping preferred.
func (r *VersionResolver) candidates(preferredFilename string) []string {
	known := r.KnownFilenames
	if known == nil {
		known = DefaultRecipeFilenames
	}

	var out []string
	if preferredFilename != "" {
		out = append(out, preferredFilename)
	}
	for _, f := range known {
		if f == preferredFilename {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Resolve implements the algorithm of spec §4.B.
func (r *VersionResolver) Resolve(ctx context.Context, driver repo.Driver, ref repo.Ref, preferredFilename string) (date time.Time, sha string, doc map[string]any, err error) {
	for _, filename := range r.candidates(preferredFilename) {
		var content []byte
		readErr := driver.ReadFile(ctx, ref.SHA, filename, func(rc io.Reader) error {
			var err error
			content, err = io.ReadAll(rc)
			return err
		})
		if readErr != nil {
			if repo.IsNotFound(readErr) {
				continue
			}
			return time.Time{}, "", nil, fmt.Errorf("read %s@%s: %w", filename, ref.SHA, readErr)
		}

		parsed, err := r.Parser.Parse(content, filename)
		if err != nil {
			return time.Time{}, "", nil, fmt.Errorf("parse %s@%s: %w", filename, ref.SHA, err)
		}
		out := parsed.ToJSON()
		out[PackageDescriptionFileKey] = filename
		return ref.Date, ref.SHA, out, nil
	}
	return time.Time{}, "", nil, errNoRecipeFile
}

