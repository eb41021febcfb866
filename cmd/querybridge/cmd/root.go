// Package cmd provides the CLI commands for querybridge.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/querybridge/querybridge/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "querybridge",
	Short: "QueryBridge - read-only SQL bridge for AI agents",
	Long: `QueryBridge exposes a SQL Server database to AI agent platforms
through a small set of read-only operations.

It serves the Model Context Protocol over SSE sessions, plus legacy
direct-call REST endpoints, with API key authentication, rate limiting,
and Azure AD token-based database access.

Quick start:
  1. Create a config file: querybridge.yaml
  2. Run: querybridge start

Configuration:
  Config is loaded from querybridge.yaml in the current directory,
  $HOME/.querybridge/, or /etc/querybridge/.

  Environment variables can override config values with the QUERYBRIDGE_ prefix.
  Example: QUERYBRIDGE_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the bridge server
  hash-key    Generate a hash for an API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./querybridge.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
