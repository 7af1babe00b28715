package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/pkgforge/registry/pkg/model"
)

// Memory is an in-memory Store, structurally in the spirit of the
// teacher's oci.FakeRegistry map-of-maps test double: a mutex-guarded map
// keyed by package name, plus a secondary id index for the mirror path
// (spec §9 "Name is external identity... internal ids are used only by
// the mirror path").
type Memory struct {
	mu        sync.RWMutex
	byName    map[string]*model.Package
	idToName  map[string]string
	downloads map[string]int64 // "name@version" -> count
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		byName:    make(map[string]*model.Package),
		idToName:  make(map[string]string),
		downloads: make(map[string]int64),
	}
}

func clonePackage(p *model.Package) model.Package {
	out := *p
	out.Categories = append([]string(nil), p.Categories...)
	out.Versions = append([]model.Version(nil), p.Versions...)
	out.Errors = append([]string(nil), p.Errors...)
	return out
}

func (m *Memory) GetAllPackages(ctx context.Context) ([]model.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Package, 0, len(m.byName))
	for _, p := range m.byName {
		out = append(out, clonePackage(p))
	}
	return out, nil
}

func (m *Memory) GetAllPackageIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.byName))
	for _, p := range m.byName {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (m *Memory) GetPackage(ctx context.Context, name string) (model.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byName[name]
	if !ok {
		return model.Package{}, fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	return clonePackage(p), nil
}

func (m *Memory) GetPackageByID(ctx context.Context, id string) (model.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.idToName[id]
	if !ok {
		return model.Package{}, fmt.Errorf("store: package id %q: %w", id, ErrNotFound)
	}
	return clonePackage(m.byName[name]), nil
}

func (m *Memory) GetPackageDump(ctx context.Context) ([]model.Package, error) {
	return m.GetAllPackages(ctx)
}

func (m *Memory) AddPackage(ctx context.Context, pkg model.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[pkg.Name]; ok {
		return fmt.Errorf("store: package %q: %w", pkg.Name, ErrExists)
	}
	cp := pkg
	cp.Categories = append([]string(nil), pkg.Categories...)
	cp.Versions = append([]model.Version(nil), pkg.Versions...)
	cp.Errors = append([]string(nil), pkg.Errors...)
	m.byName[pkg.Name] = &cp
	m.idToName[pkg.ID] = pkg.Name
	return nil
}

// AddOrSetPackage upserts pkg by id, as required by the mirror path
// (spec §4.G). If an existing package under a different name already
// owns pkg.ID, that old name entry is replaced.
func (m *Memory) AddOrSetPackage(ctx context.Context, pkg model.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldName, ok := m.idToName[pkg.ID]; ok && oldName != pkg.Name {
		delete(m.byName, oldName)
	}
	cp := pkg
	cp.Categories = append([]string(nil), pkg.Categories...)
	cp.Versions = append([]model.Version(nil), pkg.Versions...)
	cp.Errors = append([]string(nil), pkg.Errors...)
	m.byName[pkg.Name] = &cp
	m.idToName[pkg.ID] = pkg.Name
	return nil
}

func (m *Memory) RemovePackage(ctx context.Context, name, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	if ownerID != "" && p.Owner != ownerID {
		return fmt.Errorf("store: package %q not owned by %q", name, ownerID)
	}
	delete(m.byName, name)
	delete(m.idToName, p.ID)
	return nil
}

func (m *Memory) SetPackageCategories(ctx context.Context, name string, categories []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	p.Categories = append([]string(nil), categories...)
	return nil
}

func (m *Memory) SetPackageRepository(ctx context.Context, name string, descriptor []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	p.Repository = append([]byte(nil), descriptor...)
	return nil
}

func (m *Memory) SetPackageErrors(ctx context.Context, name string, errs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	p.Errors = append([]string(nil), errs...)
	return nil
}

func (m *Memory) AddVersion(ctx context.Context, name string, v model.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	for i := range p.Versions {
		if p.Versions[i].Version == v.Version {
			return fmt.Errorf("store: version %q already exists on %q", v.Version, name)
		}
	}
	p.Versions = append(p.Versions, v)
	return nil
}

func (m *Memory) UpdateVersion(ctx context.Context, name string, v model.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	for i := range p.Versions {
		if p.Versions[i].Version == v.Version {
			p.Versions[i] = v
			return nil
		}
	}
	return fmt.Errorf("store: version %q on %q: %w", v.Version, name, ErrNotFound)
}

func (m *Memory) RemoveVersion(ctx context.Context, name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	for i := range p.Versions {
		if p.Versions[i].Version == version {
			p.Versions = append(p.Versions[:i], p.Versions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("store: version %q on %q: %w", version, name, ErrNotFound)
}

func (m *Memory) HasVersion(ctx context.Context, name, version string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byName[name]
	if !ok {
		return false, fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	for _, v := range p.Versions {
		if v.Version == version {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) GetVersionInfo(ctx context.Context, name, version string) (model.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byName[name]
	if !ok {
		return model.Version{}, fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	for _, v := range p.Versions {
		if v.Version == version {
			return v, nil
		}
	}
	return model.Version{}, fmt.Errorf("store: version %q on %q: %w", version, name, ErrNotFound)
}

// GetLatestVersion returns the highest-precedence tag version (branch
// versions never qualify as "latest"); ok is false if the package has no
// tag versions at all.
func (m *Memory) GetLatestVersion(ctx context.Context, name string) (model.Version, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byName[name]
	if !ok {
		return model.Version{}, false, fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}

	var best model.Version
	var bestSV *semver.Version
	for _, v := range p.Versions {
		if v.IsBranch() {
			continue
		}
		sv, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		if bestSV == nil || sv.GreaterThan(bestSV) {
			bestSV, best = sv, v
		}
	}
	return best, bestSV != nil, nil
}

func (m *Memory) SearchPackages(ctx context.Context, query string) ([]model.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	var out []model.Package
	for _, p := range m.byName {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, clonePackage(p))
		}
	}
	return out, nil
}

func (m *Memory) GetUserPackages(ctx context.Context, ownerID string) ([]model.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Package
	for _, p := range m.byName {
		if p.Owner == ownerID {
			out = append(out, clonePackage(p))
		}
	}
	return out, nil
}

func (m *Memory) IsUserPackage(ctx context.Context, ownerID, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byName[name]
	if !ok {
		return false, nil
	}
	return p.Owner == ownerID, nil
}

func (m *Memory) AddDownload(ctx context.Context, name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[name]; !ok {
		return fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	m.downloads[name+"@"+version]++
	return nil
}

func (m *Memory) GetDownloadStats(ctx context.Context, name, version string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.byName[name]; !ok {
		return 0, fmt.Errorf("store: package %q: %w", name, ErrNotFound)
	}
	return m.downloads[name+"@"+version], nil
}

