// Package store defines the persistence-layer contract consumed by the
// registry facade (spec §4.F, §6) and ships an in-memory reference
// implementation (SPEC_FULL.md §4.K). The real persistence layer (a
// document store) is explicitly out of this spec's core scope; no
// document-store driver appears anywhere in the example pack (checked:
// no mongo-driver/bbolt/badger/database-sql usage in any retrieved
// repo's real source), so Memory stays on the standard library — see
// DESIGN.md.
package store

import (
	"context"
	"errors"

	"github.com/pkgforge/registry/pkg/model"
)

// ErrNotFound is returned when a package, version, or download-stat
// lookup finds nothing.
var ErrNotFound = errors.New("store: not found")

// ErrExists is returned by AddPackage when the name is already taken.
var ErrExists = errors.New("store: already exists")

// Store is the persistence-layer contract. All methods are safe for
// concurrent use (spec §5 "the store is assumed thread-safe").
type Store interface {
	GetAllPackages(ctx context.Context) ([]model.Package, error)
	GetAllPackageIDs(ctx context.Context) ([]string, error)
	GetPackage(ctx context.Context, name string) (model.Package, error)
	GetPackageByID(ctx context.Context, id string) (model.Package, error)
	GetPackageDump(ctx context.Context) ([]model.Package, error)

	AddPackage(ctx context.Context, pkg model.Package) error
	AddOrSetPackage(ctx context.Context, pkg model.Package) error
	RemovePackage(ctx context.Context, name, ownerID string) error

	SetPackageCategories(ctx context.Context, name string, categories []string) error
	SetPackageRepository(ctx context.Context, name string, descriptor []byte) error
	SetPackageErrors(ctx context.Context, name string, errs []string) error

	AddVersion(ctx context.Context, name string, v model.Version) error
	UpdateVersion(ctx context.Context, name string, v model.Version) error
	RemoveVersion(ctx context.Context, name, version string) error
	HasVersion(ctx context.Context, name, version string) (bool, error)
	GetVersionInfo(ctx context.Context, name, version string) (model.Version, error)
	GetLatestVersion(ctx context.Context, name string) (model.Version, bool, error)

	SearchPackages(ctx context.Context, query string) ([]model.Package, error)
	GetUserPackages(ctx context.Context, ownerID string) ([]model.Package, error)
	IsUserPackage(ctx context.Context, ownerID, name string) (bool, error)

	AddDownload(ctx context.Context, name, version string) error
	GetDownloadStats(ctx context.Context, name, version string) (int64, error)
}
