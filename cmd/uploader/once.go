package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/csgen/Airi/internal/config"
	"github.com/csgen/Airi/internal/persistence/postgres"
)

type onceCommand struct {
	cfg config.Config
}

// Execute implements the go-flags Commander interface for onceCommand.
func (c *onceCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	report, err := newEngine(c.cfg, postgres.NewStore(pool, c.cfg.ActivityTopic)).UploadAll(ctx)
	if err != nil {
		return err
	}

	log.Printf("pass %s: files=%d failed_files=%d accepted=%d duplicate=%d failed=%d",
		report.PassID, report.Files, len(report.FailedFiles), report.Accepted, report.Duplicate, report.Failed)
	if report.Failed > 0 || len(report.FailedFiles) > 0 {
		return fmt.Errorf("%d records and %d files were not uploaded", report.Failed, len(report.FailedFiles))
	}
	return nil
}
