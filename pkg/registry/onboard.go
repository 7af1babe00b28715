package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/pkgforge/registry/pkg/repo"
)

// preferredDefaultBranch is moved to the head of the branch list before
// probing, spec §4.C step 2.
const preferredDefaultBranch = "master"

// validateRepository implements spec §4.C: resolve a newly submitted
// repository to its canonical package name, requiring at least one valid
// recipe on some branch and at least one v-prefixed SemVer tag.
func (r *Registry) validateRepository(ctx context.Context, driver repo.Driver) (string, error) {
	branches, err := driver.GetBranches(ctx)
	if err != nil {
		return "", fmt.Errorf("list branches: %w", err)
	}
	if len(branches) == 0 {
		return "", fmt.Errorf("repository has no branches")
	}
	branches = preferMaster(branches)

	var branchErrs []string
	for _, b := range branches {
		_, _, doc, err := r.versionResolver.Resolve(ctx, driver, b, "")
		if err != nil {
			branchErrs = append(branchErrs, fmt.Sprintf("%s: %v", b.Name, err))
			continue
		}
		if err := validateRecipe(doc, doc[PackageDescriptionFileKey].(string), r.nameMaxLength); err != nil {
			branchErrs = append(branchErrs, fmt.Sprintf("%s: %v", b.Name, err))
			continue
		}

		if err := requireSemVerTag(ctx, driver); err != nil {
			return "", err
		}

		name, _ := doc["name"].(string)
		return name, nil
	}

	return "", fmt.Errorf("no branch has a valid package description file: %s", strings.Join(branchErrs, "; "))
}

// preferMaster moves a branch named "master" to the head of the list,
// otherwise returns refs unmodified (driver's natural order).
func preferMaster(refs []repo.Ref) []repo.Ref {
	for i, r := range refs {
		if r.Name == preferredDefaultBranch {
			out := make([]repo.Ref, 0, len(refs))
			out = append(out, r)
			out = append(out, refs[:i]...)
			out = append(out, refs[i+1:]...)
			return out
		}
	}
	return refs
}

// requireSemVerTag fails unless at least one tag name starts with "v" and
// the remainder is a valid SemVer string, spec §4.C step 4.
func requireSemVerTag(ctx context.Context, driver repo.Driver) error {
	tags, err := driver.GetTags(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	for _, t := range tags {
		if !strings.HasPrefix(t.Name, "v") {
			continue
		}
		if _, err := semver.NewVersion(strings.TrimPrefix(t.Name, "v")); err == nil {
			return nil
		}
	}
	return fmt.Errorf("repository must have at least one tagged version (a tag named vX.Y.Z)")
}
