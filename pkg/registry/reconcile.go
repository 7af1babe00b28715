package registry

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/pkgforge/registry/pkg/model"
	"github.com/pkgforge/registry/pkg/repo"
)

// ghPagesBranch is the historical carve-out named in spec §4.D step 5 /
// §9: errors from this branch are suppressed, but the branch is still
// added as a version.
const ghPagesBranch = "gh-pages"

// checkForNewVersions is the per-package reconciler (spec §4.D). It never
// returns an error to its caller (the drain worker, spec §4.E) — every
// failure is captured into the package's errors array.
func (r *Registry) checkForNewVersions(ctx context.Context, name string) {
	pkg, err := r.store.GetPackage(ctx, name)
	if err != nil {
		r.recordErrors(ctx, name, []string{fmt.Sprintf("Error getting package info: %v", err)})
		return
	}

	driver, err := r.opener.Open(ctx, pkg.Repository)
	if err != nil {
		r.recordErrors(ctx, name, []string{fmt.Sprintf("Error accessing repository: %v", err)})
		return
	}

	var errs []string
	gotAll := true

	tags, err := driver.GetTags(ctx)
	if err != nil {
		gotAll = false
		errs = append(errs, fmt.Sprintf("Failed to get GIT tags/branches: %v", err))
		tags = nil
	}
	branches, err := driver.GetBranches(ctx)
	if err != nil {
		gotAll = false
		errs = append(errs, fmt.Sprintf("Failed to get GIT tags/branches: %v", err))
		branches = nil
	}

	existing := make(map[string]bool)

	for _, t := range orderedSemverTags(tags) {
		version := strings.TrimPrefix(t.ref.Name, "v")
		existing[version] = true
		if _, err := r.addVersion(ctx, pkg, version, driver, t.ref); err != nil {
			errs = append(errs, fmt.Sprintf("Version %s: %v", version, err))
		}
	}

	for _, b := range branches {
		version := "~" + b.Name
		existing[version] = true
		if _, err := r.addVersion(ctx, pkg, version, driver, b); err != nil && b.Name != ghPagesBranch {
			errs = append(errs, fmt.Sprintf("Branch %s: %v", version, err))
		}
	}

	if gotAll {
		for _, v := range pkg.Versions {
			if !existing[v.Version] {
				if err := r.store.RemoveVersion(ctx, name, v.Version); err != nil {
					errs = append(errs, fmt.Sprintf("Error removing version %s: %v", v.Version, err))
				}
			}
		}
		r.cache.invalidate(name)
	}

	r.recordErrors(ctx, name, errs)
}

func (r *Registry) recordErrors(ctx context.Context, name string, errs []string) {
	_ = r.store.SetPackageErrors(ctx, name, errs)
}

type semverTag struct {
	ref repo.Ref
	v   *semver.Version
}

// orderedSemverTags filters tags to those matching "vSEMVER" and returns
// them in ascending SemVer order (spec §4.D step 3: "Tag ordering:
// ascending SemVer, precedence is SemVer, not lexicographic").
func orderedSemverTags(tags []repo.Ref) []semverTag {
	var out []semverTag
	for _, t := range tags {
		if !strings.HasPrefix(t.Name, "v") {
			continue
		}
		v, err := semver.NewVersion(strings.TrimPrefix(t.Name, "v"))
		if err != nil {
			continue
		}
		out = append(out, semverTag{ref: t, v: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].v.LessThan(out[j].v) })
	return out
}

// addVersion resolves, validates, and writes through one version record
// (spec §4.D "addVersion semantics"). The returned bool is true if a new
// version record was inserted, false if an existing one was updated.
func (r *Registry) addVersion(ctx context.Context, pkg model.Package, ver string, driver repo.Driver, ref repo.Ref) (bool, error) {
	var preferredFilename string
	if existing, err := r.store.GetVersionInfo(ctx, pkg.Name, ver); err == nil {
		if f, ok := existing.Recipe[PackageDescriptionFileKey].(string); ok {
			preferredFilename = f
		}
	}

	date, sha, doc, err := r.versionResolver.Resolve(ctx, driver, ref, preferredFilename)
	if err != nil {
		return false, err
	}

	r.cache.invalidate(pkg.Name)

	recipeName, _ := doc["name"].(string)
	recipeName = strings.ToLower(recipeName)
	if recipeName != pkg.Name {
		return false, fmt.Errorf("recipe name %q does not match package name %q", recipeName, pkg.Name)
	}
	doc["name"] = recipeName

	if s, ok := doc["description"].(string); !ok || s == "" {
		return false, fmt.Errorf("recipe field %q must be a non-empty string", "description")
	}
	if s, ok := doc["license"].(string); !ok || s == "" {
		return false, fmt.Errorf("recipe field %q must be a non-empty string", "license")
	}
	if deps, ok := doc["dependencies"].(map[string]any); ok {
		for key := range deps {
			if err := checkDependencyKey(key); err != nil {
				return false, fmt.Errorf("dependency %q: %w", key, err)
			}
		}
	}
	if inline, ok := doc["version"].(string); ok && inline != ver {
		return false, fmt.Errorf("recipe's inline version %q does not match tag/branch version %q", inline, ver)
	}

	readmePath := probeReadme(ctx, driver, sha)

	v := model.Version{
		Version:    ver,
		CommitID:   sha,
		Date:       date,
		Recipe:     doc,
		ReadmePath: readmePath,
	}

	has, err := r.store.HasVersion(ctx, pkg.Name, ver)
	if err != nil {
		return false, err
	}
	if has {
		return false, r.store.UpdateVersion(ctx, pkg.Name, v)
	}
	return true, r.store.AddVersion(ctx, pkg.Name, v)
}

// probeReadme checks for a README.md at sha; absence is silent (spec
// §4.D "Probe for /README.md at the commit; ... absence is silent").
func probeReadme(ctx context.Context, driver repo.Driver, sha string) string {
	err := driver.ReadFile(ctx, sha, "README.md", func(r io.Reader) error {
		return nil
	})
	if err != nil {
		return ""
	}
	return "/README.md"
}
