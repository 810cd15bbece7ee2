// Package main is the entry point for the Secret Santa API server.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (env vars, .env files, config.yaml)
//  2. Create the logger
//  3. Wire the application and start the server
//
// All actual logic lives in internal/ packages.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/secret-santa/internal/app"
	"github.com/sakif/secret-santa/internal/config"
	"github.com/sakif/secret-santa/internal/logging"
	"github.com/sakif/secret-santa/internal/server"
)

func main() {
	cfg := config.MustLoad()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialise application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	// and closes the database on the way out.
	if err := server.New(a).Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
