package commands

import (
	"context"
	"fmt"

	"github.com/abcxyz/pkg/cli"

	"github.com/pkgforge/registry/pkg/registry"
	"github.com/pkgforge/registry/pkg/repo"
	"github.com/pkgforge/registry/pkg/store"
)

// RescanCommand enqueues every known package for reconciliation (spec §3:
// "on restart the queue is empty and a full rescan is triggered
// externally"). It is meant to be invoked against a deployment's shared
// store, not the process-local one it constructs here for wiring
// purposes (spec §1: persistence is an external collaborator).
type RescanCommand struct {
	cli.BaseCommand
}

func (c *RescanCommand) Desc() string {
	return "Enqueue every known package for reconciliation."
}

func (c *RescanCommand) Help() string {
	return `
Usage: {{ COMMAND }}
`
}

func (c *RescanCommand) Flags() *cli.FlagSet {
	return c.NewFlagSet()
}

func (c *RescanCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	reg := registry.New(store.NewMemory(), repo.OCIOpener{})
	if err := reg.CheckAllPackages(ctx); err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	return nil
}
