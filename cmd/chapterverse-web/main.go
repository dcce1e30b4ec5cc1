// chapterverse-web serves the chapterverse engine as a JSON API, for a web or
// mobile front end that renders the swipe deck itself.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matthewjhunter/chapterverse"
	"github.com/matthewjhunter/chapterverse/internal/logging"
	"github.com/matthewjhunter/chapterverse/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "config file path, .yaml or .toml")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	cfg, err := storage.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chapterverse-web: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.Component("web")

	engine, err := chapterverse.NewEngine(chapterverse.ConfigFromFile(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "chapterverse-web: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      logRequests(recovery(newRouter(engine))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", *addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-done
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
