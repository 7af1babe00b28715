package commands

import (
	"context"

	"github.com/abcxyz/pkg/cli"
)

var rootCmd = func() cli.Command {
	return &cli.RootCommand{
		Name:    "registryd",
		Version: "dev",
		Commands: map[string]cli.CommandFactory{
			"serve":  func() cli.Command { return &ServeCommand{} },
			"mirror": func() cli.Command { return &MirrorCommand{} },
			"rescan": func() cli.Command { return &RescanCommand{} },
		},
	}
}

// Run executes the CLI.
func Run(ctx context.Context, args []string) error {
	return rootCmd().Run(ctx, args) //nolint:wrapcheck // Want passthrough
}
