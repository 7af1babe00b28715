// Package repo defines the repository-driver contract consumed by the
// onboarding validator and the per-package reconciler (spec §4.C, §4.D,
// §6), and ships a concrete OCI-backed implementation plus an in-memory
// test double (SPEC_FULL.md §4.J).
package repo

import (
	"context"
	"io"
	"time"
)

// Ref is a named pointer into a repository (tag or branch tip).
type Ref struct {
	Name string
	SHA  string
	Date time.Time
}

// Driver resolves a repository descriptor to tags, branches, file reads
// and download URLs. One Driver instance is scoped to a single
// repository.
type Driver interface {
	GetBranches(ctx context.Context) ([]Ref, error)
	GetTags(ctx context.Context) ([]Ref, error)

	// ReadFile streams the file at path as of commit sha to sink. sink is
	// called with the content reader; ReadFile returns whatever sink
	// returns, plus ErrNotFound (use IsNotFound) if the path does not
	// exist at sha.
	ReadFile(ctx context.Context, sha, path string, sink func(io.Reader) error) error

	// Download streams the archive for a version string ("~branch" or
	// "vX.Y.Z") to sink.
	Download(ctx context.Context, version string, sink func(io.Reader) error) error

	// GetDownloadURL returns a stable URL for the archive of version.
	GetDownloadURL(ctx context.Context, version string) (string, error)
}

// Opener resolves an opaque repository descriptor (spec §3) to a Driver.
// The registry facade calls Opener once per reconciliation to get a
// handle scoped to the package's stored repository.
type Opener interface {
	Open(ctx context.Context, descriptor []byte) (Driver, error)
}
