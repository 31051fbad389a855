// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Command vellum-document-service runs the document service: the
// partitioned object store, the content processing pipeline, and the
// workflow engine wired together over a message bus. Ingested content
// flows through the pipeline to the aggregate partition, promotion
// and document events trigger workflows, and an hourly sweep collects
// expired staging content.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/clock"
	"github.com/vellum-foundation/vellum/lib/config"
	"github.com/vellum-foundation/vellum/lib/event"
	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/lib/integrity"
	"github.com/vellum-foundation/vellum/lib/objectstore"
	"github.com/vellum-foundation/vellum/lib/pipeline"
	"github.com/vellum-foundation/vellum/lib/sqlitepool"
	"github.com/vellum-foundation/vellum/lib/subject"
	"github.com/vellum-foundation/vellum/lib/version"
	"github.com/vellum-foundation/vellum/lib/workflow"
	"github.com/vellum-foundation/vellum/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var showVersion bool
	var configPath string
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&configPath, "config", "", "configuration file (overrides VELLUM_CONFIG)")
	flag.Parse()

	if showVersion {
		fmt.Printf("vellum-document-service %s\n", version.Info())
		return nil
	}

	logger := newLogger()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	bus := messaging.NewMemory()
	defer bus.Close()
	publisher := event.NewPublisher(bus)

	store := objectstore.New(bus, objectstore.Options{
		Clock:                 clk,
		Publisher:             publisher,
		Domain:                cfg.Domain,
		CapacityBytes:         uint64(cfg.Store.CapacityBytes),
		StagingRetentionHours: cfg.Store.StagingRetentionHours,
		Logger:                logger,
	})

	proc := pipeline.New(store, pipeline.Options{
		Clock:         clk,
		Publisher:     publisher,
		Logger:        logger,
		MaxConcurrent: int64(cfg.Pipeline.MaxConcurrent),
	})
	proc.RegisterStage(objectstore.StageVirusScan, virusScanStage)
	proc.RegisterStage(objectstore.StageFormatValidation, formatValidationStage)

	// Integrity chains go to SQLite when a database is configured,
	// otherwise they live in process memory and vanish on restart.
	var chains integrity.ChainStore
	if cfg.Workflow.ChainDatabase != "" {
		pool, err := sqlitepool.Open(sqlitepool.Config{
			Path:      cfg.Workflow.ChainDatabase,
			PoolSize:  cfg.Workflow.PoolSize,
			Logger:    logger,
			OnConnect: integrity.PrepareConn,
		})
		if err != nil {
			return fmt.Errorf("opening chain database: %w", err)
		}
		defer func() {
			if err := pool.Close(); err != nil {
				logger.Error("closing chain database", "error", err)
			}
		}()
		chains = integrity.NewSQLiteChainStore(pool)
	} else {
		chains = integrity.NewMemoryChainStore()
	}

	engine, err := workflow.NewEngine(workflow.Options{
		Clock:     clk,
		Publisher: publisher,
		Chains:    chains,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating workflow engine: %w", err)
	}
	manager, err := workflow.NewManager(engine, logger)
	if err != nil {
		return fmt.Errorf("creating workflow manager: %w", err)
	}
	manager.AddTrigger(workflow.TriggerRule{
		Kind:     event.KindDocumentCreated,
		Workflow: "review",
	})

	// Drive processing jobs from ingestion events. The subscription
	// must exist before the manager starts so no event slips between
	// the two consumers.
	var ingestSub *messaging.Subscription
	if cfg.Pipeline.AutoPromoteEnabled() {
		ingestSub, err = bus.Subscribe(ctx, subject.ForAggregate("document", string(event.KindContentIngested)))
		if err != nil {
			return fmt.Errorf("subscribing to ingestion events: %w", err)
		}
	}

	managerDone := make(chan error, 1)
	go func() {
		managerDone <- manager.Run(ctx, bus)
	}()

	if ingestSub != nil {
		go runProcessingLoop(ctx, ingestSub, store, proc, cfg.Pipeline, logger)
	}

	go runStagingSweep(ctx, clk, cfg.Store.SweepEvery(), store, logger)

	logger.Info("document service running",
		"version", version.Info(),
		"environment", cfg.Environment,
		"domain", cfg.Domain,
		"chain_database", cfg.Workflow.ChainDatabase,
		"auto_promote", cfg.Pipeline.AutoPromoteEnabled(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := <-managerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("workflow manager error", "error", err)
	}
	return nil
}

// loadConfig resolves configuration from the --config flag, the
// VELLUM_CONFIG environment variable, or built-in defaults, in that
// order.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("VELLUM_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// newLogger creates the standard service logger: a JSON handler
// writing to stderr at Info level. It also sets the default slog
// logger so that third-party code using slog.Info etc. gets the same
// handler.
func newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// runProcessingLoop starts a processing job for every blob that lands
// in staging and runs it through the pipeline. Each job runs in its
// own goroutine; the pipeline's own concurrency limit bounds how many
// make progress at once.
func runProcessingLoop(ctx context.Context, sub *messaging.Subscription, store *objectstore.Store, proc *pipeline.Pipeline, cfg config.PipelineConfig, logger *slog.Logger) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			rec, err := event.DecodeRecord(msg.Data)
			if err != nil {
				logger.Warn("discarding undecodable event", "subject", msg.Subject, "error", err)
				continue
			}
			payload, err := event.DecodePayload(rec)
			if err != nil {
				logger.Warn("discarding event with undecodable payload", "kind", rec.Kind, "error", err)
				continue
			}
			ingested, ok := payload.(*event.ContentIngested)
			if !ok || ingested.Partition.Kind != string(objectstore.Staging) {
				continue
			}
			job, err := store.StartProcessing(ctx, ingested.CID, cfg.VirusScanEnabled(), cfg.ValidationEnabled())
			if err != nil {
				logger.Error("starting processing job", "cid", ingested.CID.ShortPrefix(), "error", err)
				continue
			}
			go func(jobID uuid.UUID, cause identity.Identity) {
				_, err := proc.Run(ctx, jobID, cause)
				if err == nil || ctx.Err() != nil {
					return
				}
				var busy *pipeline.ContentBusyError
				if errors.As(err, &busy) {
					logger.Info("content already processing", "cid", busy.CID.ShortPrefix())
					return
				}
				logger.Error("processing job failed", "job_id", jobID, "error", err)
			}(job.ID, rec.Identity)
		}
	}
}

// runStagingSweep runs the staging retention sweep on a fixed
// interval until the context ends.
func runStagingSweep(ctx context.Context, clk clock.Clock, every time.Duration, store *objectstore.Store, logger *slog.Logger) {
	ticker := clk.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupExpiredStaging(ctx)
			if err != nil {
				logger.Error("staging sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("staging sweep complete", "removed", removed)
			}
		}
	}
}

// eicarSignature is the standard antivirus test string. Content
// containing it fails the scan, which gives the quarantine path a
// deterministic trigger without a real scanner engine.
var eicarSignature = []byte(`X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`)

const scannerVersion = "vellum-scan/1.0"

func virusScanStage(ctx context.Context, c cid.CID, data []byte, prior []event.StageResult) (event.StageResult, error) {
	result := event.StageResult{
		Stage:   objectstore.StageVirusScan,
		Success: true,
		VirusScan: &event.VirusScanResult{
			Clean:              true,
			ScannerVersion:     scannerVersion,
			DefinitionsUpdated: time.Now().UTC(),
		},
	}
	if bytes.Contains(data, eicarSignature) {
		result.Success = false
		result.Error = "threat detected"
		result.VirusScan.Clean = false
		result.VirusScan.Threats = []string{"EICAR-Test-File"}
	}
	return result, nil
}

func formatValidationStage(ctx context.Context, c cid.CID, data []byte, prior []event.StageResult) (event.StageResult, error) {
	meta := objectstore.DetectMetadata(data, "")
	detail := &event.FormatValidationResult{
		Valid:  true,
		Format: meta.MimeType,
	}
	result := event.StageResult{
		Stage:   objectstore.StageFormatValidation,
		Success: true,
		Format:  detail,
	}
	if len(data) == 0 {
		detail.Valid = false
		detail.Errors = []string{"content is empty"}
		result.Success = false
		result.Error = "empty content"
	}
	return result, nil
}
