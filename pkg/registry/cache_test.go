package registry

import (
	"context"
	"testing"
	"time"

	"github.com/pkgforge/registry/pkg/model"
	"github.com/pkgforge/registry/pkg/repo"
	"github.com/pkgforge/registry/pkg/store"
)

func TestGetPackageInfoCachesAndInvalidates(t *testing.T) {
	t.Parallel()

	now := time.Now()
	f := repo.NewFake()
	master := f.AddBranch("master", now)
	f.AddFile(master.SHA, "dub.json", validRecipeJSON())
	f.AddFile(master.SHA, "README.md", []byte("hello readme"))
	f.AddTag("v1.0.0", now)

	st := store.NewMemory()
	id, _ := model.NewID(now)
	key := descriptorFor("libfoo-repo")
	ctx := context.Background()
	if err := st.AddPackage(ctx, model.Package{ID: id, Owner: "alice", Name: "libfoo", Repository: key}); err != nil {
		t.Fatalf("AddPackage: %v", err)
	}
	if err := st.AddVersion(ctx, "libfoo", model.Version{Version: "1.0.0", CommitID: master.SHA, ReadmePath: "/README.md"}); err != nil {
		t.Fatalf("AddVersion: %v", err)
	}

	r := New(st, fakeOpener{string(key): f}, WithWatchdogTimeout(time.Hour))

	view, err := r.GetPackageInfo(ctx, "libfoo", false)
	if err != nil {
		t.Fatalf("GetPackageInfo() = %v", err)
	}
	if view.Name != "libfoo" {
		t.Errorf("view.Name = %q, want libfoo", view.Name)
	}
	if len(view.Versions) != 1 {
		t.Fatalf("view.Versions = %+v, want 1 entry", view.Versions)
	}
	if readme, _ := view.Versions[0]["readme"].(string); readme != "hello readme" {
		t.Errorf("readme = %q, want %q", readme, "hello readme")
	}
	if view.Errors != nil {
		t.Errorf("Errors = %v, want nil (includeErrors=false)", view.Errors)
	}

	cached, ok := r.cache.get("libfoo")
	if !ok || cached != view {
		t.Errorf("expected GetPackageInfo to populate the cache with the same pointer")
	}

	r.cache.invalidate("libfoo")
	if _, ok := r.cache.get("libfoo"); ok {
		t.Error("expected invalidate to evict the cache entry")
	}

	// Writes invalidate the cache automatically.
	if _, ok := r.cache.get("libfoo"); ok {
		t.Fatal("sanity: cache should be empty before this check")
	}
	if _, err := r.GetPackageInfo(ctx, "libfoo", false); err != nil {
		t.Fatalf("GetPackageInfo() = %v", err)
	}
	if err := r.SetPackageCategories(ctx, "libfoo", []string{"lib"}); err != nil {
		t.Fatalf("SetPackageCategories: %v", err)
	}
	if _, ok := r.cache.get("libfoo"); ok {
		t.Error("expected SetPackageCategories to invalidate the cached view")
	}
}

func TestGetPackageInfoWithErrorsIsNeverCached(t *testing.T) {
	t.Parallel()

	now := time.Now()
	f := repo.NewFake()
	master := f.AddBranch("master", now)
	f.AddFile(master.SHA, "dub.json", validRecipeJSON())

	st := store.NewMemory()
	id, _ := model.NewID(now)
	key := descriptorFor("libfoo-repo")
	ctx := context.Background()
	if err := st.AddPackage(ctx, model.Package{ID: id, Owner: "alice", Name: "libfoo", Repository: key, Errors: []string{"boom"}}); err != nil {
		t.Fatalf("AddPackage: %v", err)
	}

	r := New(st, fakeOpener{string(key): f}, WithWatchdogTimeout(time.Hour))

	view, err := r.GetPackageInfo(ctx, "libfoo", true)
	if err != nil {
		t.Fatalf("GetPackageInfo() = %v", err)
	}
	if len(view.Errors) != 1 || view.Errors[0] != "boom" {
		t.Errorf("Errors = %v, want [boom]", view.Errors)
	}
	if _, ok := r.cache.get("libfoo"); ok {
		t.Error("includeErrors=true views must never populate the cache")
	}
}
