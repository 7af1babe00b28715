// Package mirror implements the mirror pull protocol (spec §4.G): a
// secondary registry converges its local package set against a full
// dump served by an upstream registry's mirror wire contract (spec §6).
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/abcxyz/pkg/logging"

	"github.com/pkgforge/registry/pkg/model"
	"github.com/pkgforge/registry/pkg/registry"
)

// concurrencyLimit bounds how many package deletes/upserts run at once
// during a pull cycle (spec §4.G "(expansion)": errgroup.SetLimit).
const concurrencyLimit = 8

// ValidateMirrorURL checks that baseURL ends with "/" and that the two
// mirror-wire liveness probes respond with a non-error status (spec
// §4.G).
func ValidateMirrorURL(ctx context.Context, client *http.Client, baseURL string) error {
	if !strings.HasSuffix(baseURL, "/") {
		return fmt.Errorf("mirror: base URL %q must end with /", baseURL)
	}

	probes := []string{"packages/index.json", "api/packages/search?q=foobar"}
	for _, p := range probes {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL+p, nil)
		if err != nil {
			return fmt.Errorf("mirror: build probe request for %s: %w", p, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("mirror: probe %s: %w", p, err)
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("mirror: probe %s returned status %d", p, resp.StatusCode)
		}
	}
	return nil
}

// PullOnce runs one mirror pull cycle (spec §4.G "mirrorRegistry"):
// fetch the upstream dump, delete local packages absent from it, then
// upsert every upstream record. A top-level fetch/decode failure aborts
// the cycle; per-package failures in either pass are logged and do not
// abort it.
func PullOnce(ctx context.Context, client *http.Client, reg *registry.Registry, baseURL string) error {
	logger := logging.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"api/packages/dump", nil)
	if err != nil {
		return fmt.Errorf("mirror: build dump request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("mirror: fetch dump: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("mirror: dump request returned status %d", resp.StatusCode)
	}

	var dump []model.Package
	if err := json.NewDecoder(resp.Body).Decode(&dump); err != nil {
		return fmt.Errorf("mirror: decode dump: %w", err)
	}

	upstream := make(map[string]bool, len(dump))
	for _, p := range dump {
		upstream[p.ID] = true
	}

	local, err := reg.GetPackages(ctx, "")
	if err != nil {
		return fmt.Errorf("mirror: list local packages: %w", err)
	}

	// Pass 1: delete local packages absent from the upstream set, before
	// any upserts, to avoid name collisions (spec §4.G).
	{
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrencyLimit)
		for _, p := range local {
			if upstream[p.ID] {
				continue
			}
			p := p
			g.Go(func() error {
				if err := reg.RemovePackage(gctx, p.Name, p.Owner); err != nil {
					logger.ErrorContext(gctx, "mirror: failed to remove stale package", "package", p.Name, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	// Pass 2: upsert every upstream record by id.
	{
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrencyLimit)
		for _, p := range dump {
			p := p
			g.Go(func() error {
				if err := reg.AddOrSetPackage(gctx, p); err != nil {
					logger.ErrorContext(gctx, "mirror: failed to upsert package", "package", p.Name, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	return nil
}
