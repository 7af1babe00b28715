package registry

import (
	"context"
	"fmt"

	"github.com/pkgforge/registry/pkg/repo"
)

// fakeOpener resolves a descriptor (its raw bytes, used verbatim as a map
// key) to a pre-registered repo.Fake, letting tests wire a Registry to
// in-memory repository doubles without a real repository-driver backend.
type fakeOpener map[string]*repo.Fake

func (o fakeOpener) Open(ctx context.Context, descriptor []byte) (repo.Driver, error) {
	d, ok := o[string(descriptor)]
	if !ok {
		return nil, fmt.Errorf("fakeOpener: no repository registered for descriptor %q", descriptor)
	}
	return d, nil
}
