// Package main is the entry point for the snipvault server.
//
// main() is deliberately the composition root: it reads configuration,
// builds the storage stack bottom-up (bridge → engine → schema check → DAOs
// → backends → services), and hands everything to the server. No other
// package constructs these dependencies.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ameline/snipvault/internal/apperror"
	"github.com/ameline/snipvault/internal/backend"
	"github.com/ameline/snipvault/internal/backup"
	"github.com/ameline/snipvault/internal/config"
	"github.com/ameline/snipvault/internal/durable"
	"github.com/ameline/snipvault/internal/engine"
	"github.com/ameline/snipvault/internal/migrate"
	"github.com/ameline/snipvault/internal/persist"
	"github.com/ameline/snipvault/internal/repository/sqlite"
	"github.com/ameline/snipvault/internal/schema"
	"github.com/ameline/snipvault/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run builds the dependency graph and blocks until shutdown. Split from
// main so the deferred cleanups actually run before the process exits.
func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	// Durable store first: it holds both the byte image the engine boots
	// from and the storage preference the registry reads.
	bridge, err := durable.Open(filepath.Join(cfg.DataDir, "vault.db"))
	if err != nil {
		return err
	}
	defer bridge.Close()

	eng, err := engine.Open(ctx, engine.Options{
		WorkPath: filepath.Join(cfg.DataDir, "work", "snippets.sqlite"),
		Bridge:   bridge,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	// A corrupted schema is repaired destructively on startup, matching the
	// recovery path the data layer has always had. Data loss is loud in the
	// logs, never silent.
	schemaManager := schema.NewManager(eng, logger)
	if err := schemaManager.Validate(ctx); err != nil {
		if !errors.Is(err, apperror.ErrSchemaCorrupted) {
			return err
		}
		logger.Warn("schema corrupted, repairing", slog.String("error", err.Error()))
		if err := schemaManager.Repair(ctx); err != nil {
			return err
		}
	}

	db := sqlite.New(eng)
	local := backend.NewLocal(db)

	registry, err := backend.NewRegistry(bridge, cfg.RemoteURL, local, nil, logger)
	if err != nil {
		return err
	}

	saver := persist.NewSaver(eng, cfg.PersistOptions(), logger)
	defer saver.Close()

	backupService := backup.NewService(db, bridge, registry)
	migrator := migrate.New(registry, local, eng, nil, logger)

	srv := server.New(server.Config{Port: cfg.Port}, server.Dependencies{
		Backends:   registry,
		Namespaces: db.Namespaces,
		Schema:     schemaManager,
		Backup:     backupService,
		Migrator:   migrator,
		Saver:      saver,
	}, logger)

	return srv.Start()
}
