package repo

import (
	"errors"

	"oras.land/oras-go/v2/errdef"
)

// ErrNotFound is returned by ReadFile when the requested path does not
// exist at the requested commit. Drivers should wrap oras-go's own
// errdef.ErrNotFound (or repo.ErrNotFound directly) so IsNotFound can
// classify the failure without string matching, mirroring the teacher's
// oci.HasCode helper.
var ErrNotFound = errdef.ErrNotFound

// IsNotFound reports whether err (or anything it wraps) denotes a missing
// file, tag, or branch.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
