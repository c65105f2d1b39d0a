package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/draw2ui/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing projects, generated markup and the daily quota to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		backend, projects, limiter, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		list, err := projects.ListProjects(context.Background())
		if err != nil {
			return fmt.Errorf("reading projects: %w", err)
		}

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "draw2ui MCP server started on stdio (storage=%s, projects=%d)\n", storageLabel(cfg), len(list))

		srv := mcpserver.NewServer(projects, limiter)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
