// chapterverse-mcp is a standalone MCP server for the chapterverse engine.
// It opens the same database as the CLI and serves deck, saved-book and
// preference tools over stdio, so an assistant can walk a reader through
// their recommendations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/logging"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "config file path, .yaml or .toml")
	dbPath := flag.String("db", "", "override the configured database path")
	flag.Parse()

	cfg, err := storage.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// stdout carries the protocol; logs go to stderr.
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "json", Output: os.Stderr})
	log := logging.Component("mcp")

	engine, err := chapterverse.NewEngine(chapterverse.ConfigFromFile(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("create chapterverse engine")
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newServer(engine).run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("server error")
	}
}
