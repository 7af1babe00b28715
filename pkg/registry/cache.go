package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pkgforge/registry/pkg/model"
	"github.com/pkgforge/registry/pkg/repo"
)

// maxInlineReadmeBytes is the §4.F cutoff below which a recorded README
// path's content is inlined into the rendered view.
const maxInlineReadmeBytes = 256

// packageView is the JSON-shaped rendering exposed by getPackageInfo
// (spec §4.F, §6 "Exposed package-view JSON").
type packageView struct {
	ID         string           `json:"id"`
	DateAdded  string           `json:"dateAdded"`
	Owner      string           `json:"owner"`
	Name       string           `json:"name"`
	Repository json.RawMessage  `json:"repository"`
	Categories []string         `json:"categories"`
	Versions   []map[string]any `json:"versions"`
	Errors     []string         `json:"errors,omitempty"`
}

// packageCache holds built views keyed by package name (spec §3 "Cached
// package view"). Concurrent builds for the same not-yet-cached name are
// coalesced with singleflight rather than rebuilding the view once per
// waiting reader.
type packageCache struct {
	mu      sync.RWMutex
	entries map[string]*packageView
	group   singleflight.Group
}

func newPackageCache() *packageCache {
	return &packageCache{entries: make(map[string]*packageView)}
}

func (c *packageCache) get(name string) (*packageView, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[name]
	return v, ok
}

func (c *packageCache) set(name string, v *packageView) {
	c.mu.Lock()
	c.entries[name] = v
	c.mu.Unlock()
}

// invalidate evicts name's entry. Every write path in Registry calls this
// (spec §9 "Cache discipline": "any writer of P removes P from the cache
// before returning").
func (c *packageCache) invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

// GetPackageInfo returns the rendered view of name. With includeErrors
// false (the default), the cached view is returned if present, otherwise
// built and stored. With includeErrors true the view is always rebuilt,
// is never cached, and carries the package's errors array (spec §4.F).
func (r *Registry) GetPackageInfo(ctx context.Context, name string, includeErrors bool) (*packageView, error) {
	if includeErrors {
		pkg, err := r.store.GetPackage(ctx, name)
		if err != nil {
			return nil, wrapNotFound(err)
		}
		return r.buildView(ctx, pkg, true)
	}

	if v, ok := r.cache.get(name); ok {
		return v, nil
	}

	built, err, _ := r.cache.group.Do(name, func() (any, error) {
		if v, ok := r.cache.get(name); ok {
			return v, nil
		}
		pkg, err := r.store.GetPackage(ctx, name)
		if err != nil {
			return nil, wrapNotFound(err)
		}
		view, err := r.buildView(ctx, pkg, false)
		if err != nil {
			return nil, err
		}
		r.cache.set(name, view)
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return built.(*packageView), nil
}

// buildView is the pure-ish render step: it opens the package's
// repository once to produce each version's download URL and, where
// applicable, its inlined README (spec §4.F field list).
func (r *Registry) buildView(ctx context.Context, pkg model.Package, includeErrors bool) (*packageView, error) {
	driver, err := r.opener.Open(ctx, pkg.Repository)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	versions := make([]map[string]any, 0, len(pkg.Versions))
	for _, v := range pkg.Versions {
		versions = append(versions, renderVersion(ctx, driver, v))
	}

	view := &packageView{
		ID:         pkg.ID,
		DateAdded:  model.IDEmbeddedTime(pkg.ID).UTC().Format(time.RFC3339),
		Owner:      pkg.Owner,
		Name:       pkg.Name,
		Repository: pkg.Repository,
		Categories: pkg.Categories,
		Versions:   versions,
	}
	if includeErrors {
		view.Errors = pkg.Errors
	}
	return view, nil
}

// renderVersion never fails: a download-URL or README read failure is
// reflected by omitting that field, so one bad version never breaks the
// whole view.
func renderVersion(ctx context.Context, driver repo.Driver, v model.Version) map[string]any {
	out := make(map[string]any, len(v.Recipe)+4)
	for k, val := range v.Recipe {
		out[k] = val
	}
	out["version"] = v.Version
	out["date"] = v.Date.UTC().Format(time.RFC3339)

	arg := "v" + v.Version
	if v.IsBranch() {
		arg = v.Version
	}
	if url, err := driver.GetDownloadURL(ctx, arg); err == nil {
		out["url"] = url
	}

	if v.ReadmePath != "" && len(v.ReadmePath) < maxInlineReadmeBytes && strings.HasPrefix(v.ReadmePath, "/") {
		var content []byte
		err := driver.ReadFile(ctx, v.CommitID, strings.TrimPrefix(v.ReadmePath, "/"), func(rc io.Reader) error {
			b, err := io.ReadAll(rc)
			content = b
			return err
		})
		if err == nil {
			out["readme"] = string(content)
		}
	}

	return out
}
