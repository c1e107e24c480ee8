// Package main provides the MCP entry point for RealDiag.
// It requires no external databases - uses in-memory caching and SQLite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/realdiag-server/internal/config"
	"github.com/realdiag-server/internal/logging"
	"github.com/realdiag-server/internal/mcp"
)

func main() {
	_ = godotenv.Load()

	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	server, err := mcp.NewLiteServer(ctx, cfg, mcp.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create MCP server: %v\n", err)
		os.Exit(1)
	}
	defer server.Close()

	// Start MCP server
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "MCP server failed: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("cache", server.GetCache().Stats()).Info("MCP server stopped")
}
