package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pkgforge/registry/pkg/model"
	"github.com/pkgforge/registry/pkg/repo"
	"github.com/pkgforge/registry/pkg/store"
)

func descriptorFor(repoKey string) []byte {
	b, _ := json.Marshal(map[string]string{"kind": "fake", "ref": repoKey})
	return b
}

func newTestRegistry(t *testing.T, repos fakeOpener) *Registry {
	t.Helper()
	return New(store.NewMemory(), repos, WithWatchdogTimeout(time.Hour))
}

func TestRegistryAddAndGetPackage(t *testing.T) {
	t.Parallel()

	now := time.Now()
	f := repo.NewFake()
	master := f.AddBranch("master", now)
	f.AddFile(master.SHA, "dub.json", validRecipeJSON())
	f.AddTag("v1.0.0", now)

	key := descriptorFor("libfoo-repo")
	r := newTestRegistry(t, fakeOpener{string(key): f})

	ctx := context.Background()
	name, err := r.AddPackage(ctx, key, "alice")
	if err != nil {
		t.Fatalf("AddPackage() = %v", err)
	}
	if name != "libfoo" {
		t.Fatalf("AddPackage() name = %q, want libfoo", name)
	}

	pkgs, err := r.GetPackages(ctx, "")
	if err != nil {
		t.Fatalf("GetPackages() = %v", err)
	}
	if len(pkgs) != 1 || pkgs[0].Name != "libfoo" {
		t.Fatalf("GetPackages() = %+v, want one package named libfoo", pkgs)
	}

	owned, err := r.IsUserPackage(ctx, "alice", "libfoo")
	if err != nil || !owned {
		t.Errorf("IsUserPackage(alice, libfoo) = %v, %v, want true, nil", owned, err)
	}
}

func TestRegistryRemovePackageNotFound(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, fakeOpener{})
	err := r.RemovePackage(context.Background(), "nope", "alice")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("RemovePackage() error = %v, want ErrNotFound", err)
	}
}

func TestRegistrySetPackageRepositoryRejectsRename(t *testing.T) {
	t.Parallel()

	now := time.Now()
	f := repo.NewFake()
	master := f.AddBranch("master", now)
	f.AddFile(master.SHA, "dub.json", validRecipeJSON())
	f.AddTag("v1.0.0", now)

	other := repo.NewFake()
	otherMaster := other.AddBranch("master", now)
	other.AddFile(otherMaster.SHA, "dub.json", []byte(`{"name":"libbar","description":"d","license":"MIT"}`))
	other.AddTag("v1.0.0", now)

	key := descriptorFor("libfoo-repo")
	otherKey := descriptorFor("libbar-repo")
	r := newTestRegistry(t, fakeOpener{string(key): f, string(otherKey): other})

	ctx := context.Background()
	if _, err := r.AddPackage(ctx, key, "alice"); err != nil {
		t.Fatalf("AddPackage() = %v", err)
	}

	err := r.SetPackageRepository(ctx, "libfoo", otherKey)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("SetPackageRepository() error = %v, want ErrForbidden", err)
	}
}

func TestRegistryGetPackageStatsLatest(t *testing.T) {
	t.Parallel()

	now := time.Now()
	f := repo.NewFake()
	master := f.AddBranch("master", now)
	f.AddFile(master.SHA, "dub.json", validRecipeJSON())
	f.AddTag("v1.0.0", now)
	f.AddTag("v1.2.0", now)

	key := descriptorFor("libfoo-repo")
	r := newTestRegistry(t, fakeOpener{string(key): f})

	ctx := context.Background()
	if _, err := r.AddPackage(ctx, key, "alice"); err != nil {
		t.Fatalf("AddPackage() = %v", err)
	}

	if err := r.store.AddVersion(ctx, "libfoo", model.Version{Version: "1.0.0"}); err != nil {
		t.Fatalf("AddVersion(1.0.0): %v", err)
	}
	if err := r.store.AddVersion(ctx, "libfoo", model.Version{Version: "1.2.0"}); err != nil {
		t.Fatalf("AddVersion(1.2.0): %v", err)
	}
	if err := r.store.AddDownload(ctx, "libfoo", "1.2.0"); err != nil {
		t.Fatalf("AddDownload: %v", err)
	}
	if err := r.store.AddDownload(ctx, "libfoo", "1.2.0"); err != nil {
		t.Fatalf("AddDownload: %v", err)
	}

	count, ok, err := r.GetPackageStats(ctx, "libfoo", "latest")
	if err != nil {
		t.Fatalf("GetPackageStats() = %v", err)
	}
	if !ok {
		t.Fatal("GetPackageStats() ok = false, want true")
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestRegistryTriggerPackageUpdateNotFound(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, fakeOpener{})
	err := r.TriggerPackageUpdate(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("TriggerPackageUpdate() error = %v, want ErrNotFound", err)
	}
}
