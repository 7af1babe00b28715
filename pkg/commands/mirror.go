package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"

	"github.com/pkgforge/registry/pkg/registry"
	"github.com/pkgforge/registry/pkg/registry/mirror"
	"github.com/pkgforge/registry/pkg/repo"
	"github.com/pkgforge/registry/pkg/store"
)

type mirrorFlags struct {
	upstreamURL string
	interval    time.Duration
}

func (f *mirrorFlags) Validate() error {
	var merr error
	if f.upstreamURL == "" {
		merr = errors.Join(merr, fmt.Errorf("upstream-url is required"))
	}
	return merr
}

// MirrorCommand runs the mirror pull protocol (component G) against an
// upstream registry's mirror wire contract. With --interval unset it runs
// one pull cycle and exits; otherwise it pulls on that interval until ctx
// is canceled.
//
// The local package set lives only for the process's lifetime (spec §1:
// persistence is an external collaborator, not implemented here) — this
// command demonstrates the wiring, not a durable mirror deployment.
type MirrorCommand struct {
	cli.BaseCommand

	flags *mirrorFlags
}

func (c *MirrorCommand) Desc() string {
	return "Pull package records from an upstream registry's mirror."
}

func (c *MirrorCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]
`
}

func (c *MirrorCommand) Flags() *cli.FlagSet {
	c.flags = &mirrorFlags{}
	set := c.NewFlagSet()
	sec := set.NewSection("OPTIONS")

	sec.StringVar(&cli.StringVar{
		Name:   "upstream-url",
		Target: &c.flags.upstreamURL,
		EnvVar: "REGISTRY_MIRROR_UPSTREAM_URL",
		Usage:  "Base URL of the upstream registry to mirror, must end with /.",
	})

	sec.DurationVar(&cli.DurationVar{
		Name:    "interval",
		Target:  &c.flags.interval,
		EnvVar:  "REGISTRY_MIRROR_INTERVAL",
		Default: 0,
		Usage:   "How often to re-pull. 0 runs one cycle and exits.",
	})

	return set
}

func (c *MirrorCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if err := c.flags.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := logging.FromContext(ctx)
	client := &http.Client{Timeout: 30 * time.Second}

	if err := mirror.ValidateMirrorURL(ctx, client, c.flags.upstreamURL); err != nil {
		return fmt.Errorf("invalid upstream: %w", err)
	}

	reg := registry.New(store.NewMemory(), repo.OCIOpener{})

	if c.flags.interval <= 0 {
		return mirror.PullOnce(ctx, client, reg, c.flags.upstreamURL)
	}

	ticker := time.NewTicker(c.flags.interval)
	defer ticker.Stop()
	for {
		if err := mirror.PullOnce(ctx, client, reg, c.flags.upstreamURL); err != nil {
			logger.ErrorContext(ctx, "mirror pull cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
