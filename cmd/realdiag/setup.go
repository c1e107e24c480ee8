package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/realdiag-server/internal/setup"
)

func newSetupCmd(opts *options) *cobra.Command {
	var (
		configPath string
		name       string
		binary     string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with a desktop MCP client",
		Long: `Add or replace the RealDiag entry in the desktop client's MCP configuration.
The entry runs mcp-server with the current --data-dir, --rules-dir and
--trees-dir. Other servers in the file are left alone.

Subcommands:
  status  - Show the registered entry and any problems with it`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if binary == "" {
				binary = defaultServerBinary()
			}
			written, entry, err := setup.Register(setup.Options{
				ConfigPath: configPath,
				ServerName: name,
				BinaryPath: binary,
				DataDir:    absOrEmpty(opts.dataDir),
				RulesDir:   absOrEmpty(opts.rulesDir),
				TreesDir:   absOrEmpty(opts.treesDir),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Registered in %s; restart the client to load it\n", written)
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "client config file (default: per-OS desktop client path)")
	cmd.PersistentFlags().StringVar(&name, "name", setup.DefaultServerName, "server entry name")
	cmd.Flags().StringVar(&binary, "binary", "", "path to the mcp-server binary (default: next to this executable)")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the registered MCP server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := setup.GetStatus(configPath, name)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	})
	return cmd
}

// defaultServerBinary guesses mcp-server installed alongside this binary.
func defaultServerBinary() string {
	exe, err := os.Executable()
	if err != nil {
		return "mcp-server"
	}
	return filepath.Join(filepath.Dir(exe), "mcp-server")
}

func absOrEmpty(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
