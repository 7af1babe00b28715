package registry

import (
	"context"
	"testing"
	"time"

	"github.com/abcxyz/pkg/testutil"

	"github.com/pkgforge/registry/pkg/repo"
)

func validRecipeJSON() []byte {
	return []byte(`{"name":"libfoo","description":"a library","license":"MIT"}`)
}

func TestRegistryValidateRepository(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("valid repository", func(t *testing.T) {
		t.Parallel()
		f := repo.NewFake()
		master := f.AddBranch("master", now)
		f.AddFile(master.SHA, "dub.json", validRecipeJSON())
		f.AddTag("v1.0.0", now)

		r := New(nil, nil)
		name, err := r.validateRepository(context.Background(), f)
		if err != nil {
			t.Fatalf("validateRepository() = %v", err)
		}
		if name != "libfoo" {
			t.Errorf("name = %q, want %q", name, "libfoo")
		}
	})

	t.Run("no branches", func(t *testing.T) {
		t.Parallel()
		f := repo.NewFake()
		r := New(nil, nil)
		_, err := r.validateRepository(context.Background(), f)
		if diff := testutil.DiffErrString(err, "repository has no branches"); diff != "" {
			t.Errorf("unexpected error (-got, +want): %s", diff)
		}
	})

	t.Run("no valid recipe on any branch", func(t *testing.T) {
		t.Parallel()
		f := repo.NewFake()
		f.AddBranch("master", now)
		f.AddTag("v1.0.0", now)

		r := New(nil, nil)
		_, err := r.validateRepository(context.Background(), f)
		if diff := testutil.DiffErrString(err, "no branch has a valid package description file"); diff != "" {
			t.Errorf("unexpected error (-got, +want): %s", diff)
		}
	})

	t.Run("missing semver tag", func(t *testing.T) {
		t.Parallel()
		f := repo.NewFake()
		master := f.AddBranch("master", now)
		f.AddFile(master.SHA, "dub.json", validRecipeJSON())

		r := New(nil, nil)
		_, err := r.validateRepository(context.Background(), f)
		if diff := testutil.DiffErrString(err, "must have at least one tagged version"); diff != "" {
			t.Errorf("unexpected error (-got, +want): %s", diff)
		}
	})

	t.Run("master preferred over other branches", func(t *testing.T) {
		t.Parallel()
		f := repo.NewFake()
		dev := f.AddBranch("dev", now)
		f.AddFile(dev.SHA, "dub.json", []byte(`{"name":"wrongname","description":"d","license":"MIT"}`))
		master := f.AddBranch("master", now)
		f.AddFile(master.SHA, "dub.json", validRecipeJSON())
		f.AddTag("v1.0.0", now)

		r := New(nil, nil)
		name, err := r.validateRepository(context.Background(), f)
		if err != nil {
			t.Fatalf("validateRepository() = %v", err)
		}
		if name != "libfoo" {
			t.Errorf("name = %q, want %q (master's recipe, not dev's)", name, "libfoo")
		}
	})
}
