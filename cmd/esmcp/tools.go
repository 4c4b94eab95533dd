package main

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/silbaram/elasticsearch-mcp-server/configs"
	"github.com/silbaram/elasticsearch-mcp-server/internal/adapter/inbound/mcpserver"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog without connecting to the engine",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
	cmd.Flags().Bool("names", false, "Print only tool names, one per line")
	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	namesOnly, _ := cmd.Flags().GetBool("names")
	catalog := usecase.Catalog()

	if namesOnly {
		for _, desc := range catalog {
			fmt.Fprintln(cmd.OutOrStdout(), desc.Name)
		}
		return nil
	}

	tools := make([]mcp.Tool, 0, len(catalog))
	for _, desc := range catalog {
		tool, err := mcpserver.ToolFor(desc)
		if err != nil {
			return err
		}
		tools = append(tools, tool)
	}
	out, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering tool catalog: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			majors := usecase.NewResolveEngineUseCase(engineFactories, discardLogger()).SupportedMajors()
			fmt.Fprintf(cmd.OutOrStdout(), "esmcp %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "default engine version: %s\n", configs.DefaultEngineVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "supported engine majors: %v\n", majors)
		},
	}
}
