// Package registry implements the package-update engine: the bounded
// update queue and its drain task, per-package reconciliation against a
// repository driver, onboarding validation, and a cached JSON-shaped view
// of each package, fronted by the Registry facade (spec §2 components
// A-G; SPEC_FULL.md §4).
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pkgforge/registry/pkg/model"
	"github.com/pkgforge/registry/pkg/repo"
	"github.com/pkgforge/registry/pkg/store"
)

// ErrNotFound wraps the collaborators' not-found sentinels so callers can
// use errors.Is against a single registry-level value regardless of which
// collaborator produced it.
var ErrNotFound = errors.New("registry: not found")

// ErrForbidden is returned when a caller attempts to remove a package
// they do not own, and by SetPackageRepository when the new repository
// declares a different package name.
var ErrForbidden = errors.New("registry: not owner of package")

// wrapNotFound normalizes the store's and the repository driver's own
// not-found sentinels to ErrNotFound, so callers outside this package can
// use a single errors.Is check (spec §7, mirroring the teacher's
// oci.HasCode / errdef.ErrNotFound pattern).
func wrapNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || repo.IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithQueueCapacity overrides DefaultQueueCapacity (spec §9 Open
// Question: expose the 10,000 magic number as configuration).
func WithQueueCapacity(n int) Option {
	return func(r *Registry) { r.queueCapacity = n }
}

// WithWatchdogTimeout overrides DefaultWatchdogTimeout.
func WithWatchdogTimeout(d time.Duration) Option {
	return func(r *Registry) { r.watchdogTimeout = d }
}

// WithNameMaxLength overrides MaxNameLength (spec §9 Open Question).
func WithNameMaxLength(n int) Option {
	return func(r *Registry) { r.nameMaxLength = n }
}

// WithVersionResolver overrides the default VersionResolver, e.g. to
// supply a recipe.Parser for dub.sdl-shaped recipes (SPEC_FULL.md §4.B).
func WithVersionResolver(v *VersionResolver) Option {
	return func(r *Registry) { r.versionResolver = v }
}

// Registry is the public facade (component F): the store, the
// repository-driver opener, the version resolver, the update queue, and
// the package-view cache, wired together per spec §2's control flow.
type Registry struct {
	store  store.Store
	opener repo.Opener

	versionResolver *VersionResolver
	queue           *updateQueue
	cache           *packageCache

	queueCapacity   int
	watchdogTimeout time.Duration
	nameMaxLength   int
}

// New builds a Registry. The update queue's drain task is started lazily,
// on first trigger (spec §4.E) — New performs no background work and no
// I/O.
func New(st store.Store, opener repo.Opener, opts ...Option) *Registry {
	r := &Registry{
		store:           st,
		opener:          opener,
		versionResolver: NewVersionResolver(),
		cache:           newPackageCache(),
		queueCapacity:   DefaultQueueCapacity,
		watchdogTimeout: DefaultWatchdogTimeout,
		nameMaxLength:   MaxNameLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = newUpdateQueue(r.queueCapacity, r.watchdogTimeout, r.checkForNewVersions)
	return r
}

// AddPackage validates a newly submitted repository descriptor (spec
// §4.C), inserts a package record under the derived name, and enqueues
// it for its first reconciliation (spec §4.F).
func (r *Registry) AddPackage(ctx context.Context, descriptor []byte, ownerID string) (string, error) {
	driver, err := r.opener.Open(ctx, descriptor)
	if err != nil {
		return "", fmt.Errorf("open repository: %w", err)
	}

	name, err := r.validateRepository(ctx, driver)
	if err != nil {
		return "", err
	}

	id, err := model.NewID(time.Now())
	if err != nil {
		return "", fmt.Errorf("generate package id: %w", err)
	}

	pkg := model.Package{
		ID:         id,
		Owner:      ownerID,
		Name:       name,
		Repository: descriptor,
	}
	if err := r.store.AddPackage(ctx, pkg); err != nil {
		return "", err
	}
	r.cache.invalidate(name)

	if err := r.queue.trigger(ctx, name); err != nil {
		return name, err
	}
	return name, nil
}

// RemovePackage deletes a package (spec §4.F). A non-empty ownerID that
// does not own the package yields ErrForbidden; an empty ownerID skips the
// ownership check.
func (r *Registry) RemovePackage(ctx context.Context, name, ownerID string) error {
	pkg, err := r.store.GetPackage(ctx, name)
	if err != nil {
		return wrapNotFound(err)
	}
	if ownerID != "" && pkg.Owner != ownerID {
		return fmt.Errorf("%w: %q", ErrForbidden, name)
	}
	if err := r.store.RemovePackage(ctx, name, ownerID); err != nil {
		return wrapNotFound(err)
	}
	r.cache.invalidate(name)
	return nil
}

// AddOrSetPackage upserts a full package record by id, the mirror path's
// write primitive (spec §4.G).
func (r *Registry) AddOrSetPackage(ctx context.Context, pkg model.Package) error {
	if err := r.store.AddOrSetPackage(ctx, pkg); err != nil {
		return err
	}
	r.cache.invalidate(pkg.Name)
	return nil
}

// SetPackageCategories updates a package's category list.
func (r *Registry) SetPackageCategories(ctx context.Context, name string, categories []string) error {
	if err := r.store.SetPackageCategories(ctx, name, categories); err != nil {
		return err
	}
	r.cache.invalidate(name)
	return nil
}

// SetPackageRepository revalidates descriptor and requires the derived
// name to match the existing package name — renames are not supported
// (spec §4.F, §9 "Name is external identity").
func (r *Registry) SetPackageRepository(ctx context.Context, name string, descriptor []byte) error {
	driver, err := r.opener.Open(ctx, descriptor)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}

	derived, err := r.validateRepository(ctx, driver)
	if err != nil {
		return err
	}
	if derived != name {
		return fmt.Errorf("%w: repository's declared name %q does not match package name %q", ErrForbidden, derived, name)
	}

	if err := r.store.SetPackageRepository(ctx, name, descriptor); err != nil {
		return err
	}
	r.cache.invalidate(name)
	return nil
}

// AddDownload records one download of name@version (download counting
// itself — deciding when a download "counts" — is an HTTP-layer concern
// outside this spec's core scope; this is the pass-through store write).
func (r *Registry) AddDownload(ctx context.Context, name, version string) error {
	return r.store.AddDownload(ctx, name, version)
}

// GetPackages lists all packages, or only those owned by ownerID when
// non-empty.
func (r *Registry) GetPackages(ctx context.Context, ownerID string) ([]model.Package, error) {
	if ownerID == "" {
		return r.store.GetAllPackages(ctx)
	}
	return r.store.GetUserPackages(ctx, ownerID)
}

// GetPackageDump returns every package record in full, including
// internal ids and complete version history — the mirror wire contract's
// `api/packages/dump` source-side payload (spec §4.G, §6).
func (r *Registry) GetPackageDump(ctx context.Context) ([]model.Package, error) {
	return r.store.GetPackageDump(ctx)
}

// IsUserPackage passes through to the store.
func (r *Registry) IsUserPackage(ctx context.Context, ownerID, name string) (bool, error) {
	return r.store.IsUserPackage(ctx, ownerID, name)
}

// SearchPackages passes through to the store (spec Non-goals: no
// ranking/full-text search implementation here).
func (r *Registry) SearchPackages(ctx context.Context, query string) ([]model.Package, error) {
	return r.store.SearchPackages(ctx, query)
}

// GetPackageStats returns the download count for name@version.
// version == "" or "latest" substitutes the current latest version; if
// none exists the second return is false (spec §4.F).
func (r *Registry) GetPackageStats(ctx context.Context, name, version string) (int64, bool, error) {
	if version == "" || version == "latest" {
		latest, ok, err := r.store.GetLatestVersion(ctx, name)
		if err != nil {
			return 0, false, wrapNotFound(err)
		}
		if !ok {
			return 0, false, nil
		}
		version = latest.Version
	}
	count, err := r.store.GetDownloadStats(ctx, name, version)
	if err != nil {
		return 0, false, wrapNotFound(err)
	}
	return count, true, nil
}

// GetPackageVersionInfo passes through to the store.
func (r *Registry) GetPackageVersionInfo(ctx context.Context, name, version string) (model.Version, error) {
	v, err := r.store.GetVersionInfo(ctx, name, version)
	return v, wrapNotFound(err)
}

// GetLatestVersion passes through to the store.
func (r *Registry) GetLatestVersion(ctx context.Context, name string) (model.Version, bool, error) {
	v, ok, err := r.store.GetLatestVersion(ctx, name)
	return v, ok, wrapNotFound(err)
}

// DownloadPackageZip opens the package's repository and streams the
// archive for version to sink.
func (r *Registry) DownloadPackageZip(ctx context.Context, name, version string, sink func(io.Reader) error) error {
	pkg, err := r.store.GetPackage(ctx, name)
	if err != nil {
		return wrapNotFound(err)
	}
	driver, err := r.opener.Open(ctx, pkg.Repository)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	return driver.Download(ctx, version, sink)
}

// TriggerPackageUpdate enqueues name for reconciliation (spec §4.E/§4.F).
func (r *Registry) TriggerPackageUpdate(ctx context.Context, name string) error {
	if _, err := r.store.GetPackage(ctx, name); err != nil {
		return wrapNotFound(err)
	}
	return r.queue.trigger(ctx, name)
}

// IsPackageScheduledForUpdate reports whether name is queued or
// currently being reconciled.
func (r *Registry) IsPackageScheduledForUpdate(name string) bool {
	return r.queue.isScheduled(name)
}

// GetUpdateQueuePosition returns 0 if name is the package currently being
// reconciled, the 1-based queue position if it is queued, or -1.
func (r *Registry) GetUpdateQueuePosition(name string) int {
	return r.queue.position(name)
}

// CheckAllPackages enqueues every known package for reconciliation — the
// externally-triggered full rescan named in spec §3's queue lifecycle
// ("on restart the queue is empty and a full rescan is triggered
// externally via checkForNewVersions").
func (r *Registry) CheckAllPackages(ctx context.Context) error {
	ids, err := r.store.GetAllPackageIDs(ctx)
	if err != nil {
		return fmt.Errorf("list packages: %w", err)
	}
	for _, id := range ids {
		pkg, err := r.store.GetPackageByID(ctx, id)
		if err != nil {
			continue
		}
		_ = r.queue.trigger(ctx, pkg.Name)
	}
	return nil
}
