package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abcxyz/pkg/cli"

	"github.com/pkgforge/registry/pkg/api"
	"github.com/pkgforge/registry/pkg/registry"
	"github.com/pkgforge/registry/pkg/repo"
	"github.com/pkgforge/registry/pkg/store"
)

type serveFlags struct {
	port            string
	queueCapacity   int
	watchdogTimeout time.Duration
	nameMaxLength   int
}

func (f *serveFlags) Validate() error {
	var merr error
	if f.port == "" {
		merr = errors.Join(merr, fmt.Errorf("port is required"))
	}
	if f.queueCapacity <= 0 {
		merr = errors.Join(merr, fmt.Errorf("queue-capacity must be positive"))
	}
	if f.watchdogTimeout <= 0 {
		merr = errors.Join(merr, fmt.Errorf("watchdog-timeout must be positive"))
	}
	if f.nameMaxLength <= 0 {
		merr = errors.Join(merr, fmt.Errorf("name-max-length must be positive"))
	}
	return merr
}

// ServeCommand starts the registry's HTTP surface (component H), wired to
// an in-memory store (component K) and an OCI-backed repository driver
// (component J) — see spec §1 on persistence and the repository driver
// being external collaborators, not part of this engine's core scope.
type ServeCommand struct {
	cli.BaseCommand

	flags *serveFlags
}

func (c *ServeCommand) Desc() string {
	return "Run the package registry's update engine and HTTP API."
}

func (c *ServeCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]
`
}

func (c *ServeCommand) Flags() *cli.FlagSet {
	c.flags = &serveFlags{}
	set := c.NewFlagSet()
	sec := set.NewSection("OPTIONS")

	sec.StringVar(&cli.StringVar{
		Name:    "port",
		Target:  &c.flags.port,
		EnvVar:  "PORT",
		Default: "8080",
		Usage:   `The port the server listens to.`,
	})

	sec.IntVar(&cli.IntVar{
		Name:    "queue-capacity",
		Target:  &c.flags.queueCapacity,
		EnvVar:  "REGISTRY_QUEUE_CAPACITY",
		Default: registry.DefaultQueueCapacity,
		Usage:   "Maximum number of packages the update queue holds at once.",
	})

	sec.DurationVar(&cli.DurationVar{
		Name:    "watchdog-timeout",
		Target:  &c.flags.watchdogTimeout,
		EnvVar:  "REGISTRY_WATCHDOG_TIMEOUT",
		Default: registry.DefaultWatchdogTimeout,
		Usage:   "How stale the drain task's liveness beacon may be, when a package is enqueued, before the drain task is interrupted and restarted.",
	})

	sec.IntVar(&cli.IntVar{
		Name:    "name-max-length",
		Target:  &c.flags.nameMaxLength,
		EnvVar:  "REGISTRY_NAME_MAX_LENGTH",
		Default: registry.MaxNameLength,
		Usage:   "Maximum length of a package name accepted during onboarding.",
	})

	return set
}

func (c *ServeCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if err := c.flags.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	reg := registry.New(
		store.NewMemory(),
		repo.OCIOpener{},
		registry.WithQueueCapacity(c.flags.queueCapacity),
		registry.WithWatchdogTimeout(c.flags.watchdogTimeout),
		registry.WithNameMaxLength(c.flags.nameMaxLength),
	)

	h, err := api.NewHandler(reg)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	srv, err := api.NewServer(c.flags.port, api.PassThroughUser, api.Logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx, h.Mux())
}
