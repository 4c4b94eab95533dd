// Command esmcp serves Elasticsearch operations as MCP tools.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitRuntime)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "esmcp",
		Short: "Elasticsearch MCP tool server",
		Long:  "esmcp exposes search, document, bulk and cluster inspection operations of an Elasticsearch cluster as MCP tools.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("esmcp version %s\n", version))

	root.AddCommand(newServeCmd())
	root.AddCommand(newToolsCmd())
	root.AddCommand(newVersionCmd())
	return root
}
