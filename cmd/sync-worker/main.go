package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"golang.org/x/sync/errgroup"

	"minhasfinancas/internal/amqp"
	"minhasfinancas/internal/backend"
	"minhasfinancas/internal/cli"
	"minhasfinancas/internal/log"
	"minhasfinancas/internal/sheets"
	gsheet "minhasfinancas/internal/sheets/google"
	mem "minhasfinancas/internal/sheets/memory"
	"minhasfinancas/internal/worker"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "mirror into memory instead of Google Sheets")
	skipStartupSync := flag.Bool("skip-startup-sync", false, "do not rewrite every entry on startup")
	flag.Parse()

	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting sync-worker", "dry_run", *dryRun)

	if *dryRun {
		if cfg.AMQPURL == "" {
			logger.Error("AMQP_URL is required by the sync worker")
			os.Exit(1)
		}
	} else if err := cfg.ValidateSyncWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Error("The memory backend is private to the API process and cannot be mirrored")
		os.Exit(1)
	}

	repo, err := backend.OpenRepository(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to open repository", log.FieldError, err)
		os.Exit(1)
	}
	defer repo.Close()

	var mirror sheets.EntryMirror
	if *dryRun {
		mirror = mem.New()
		logger.Info("Mirroring into memory")
	} else {
		credentials, err := cfg.GoogleCredentialsJSON()
		if err != nil {
			logger.Error("Failed to load Google credentials", log.FieldError, err)
			os.Exit(1)
		}
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: credentials,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets client initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, mirror)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	if !*skipStartupSync {
		logger.Info("Performing startup sync...")
		if err := syncWorker.StartupSync(ctx); err != nil {
			// Keep consuming; events still bring the mirror up to date.
			logger.Error("Startup sync failed", log.FieldError, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeEntryEvents(gctx, syncWorker.HandleEntryEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped")
}
