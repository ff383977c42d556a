package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/coder/quartz"

	"github.com/csgen/Airi/internal/categorize"
	"github.com/csgen/Airi/internal/config"
	"github.com/csgen/Airi/internal/platform"
	"github.com/csgen/Airi/internal/recorder"
	"github.com/csgen/Airi/internal/segment"
	httptransport "github.com/csgen/Airi/internal/transport/http"
)

type runCommand struct {
	cfg config.Config
}

// Execute implements the go-flags Commander interface for runCommand.
func (c *runCommand) Execute(_ []string) error {
	cfg := c.cfg
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probe, err := platform.NewCommandProbe(cfg.Monitor.FocusCommand)
	if err != nil {
		return err
	}

	clock := quartz.NewReal()
	rec := recorder.New(cfg.DataDir, categorize.WithOverrides(cfg.Categories),
		recorder.WithClock(clock),
		recorder.WithFlushInterval(cfg.Monitor.FlushInterval),
	)
	seg := segment.New(probe, rec,
		segment.WithClock(clock),
		segment.WithPollInterval(cfg.Monitor.PollInterval),
		segment.WithMinDuration(cfg.Monitor.MinDuration),
	)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				log.Printf("%s stopped with error: %v", name, err)
			}
		}()
	}

	run("segmenter", seg.Run)
	run("recorder", rec.Run)

	if cfg.Monitor.InputFIFO != "" {
		events := make(chan segment.InputEvent, 256)
		run("input listener", func(ctx context.Context) error {
			return platform.ListenFIFO(ctx, cfg.Monitor.InputFIFO, clock, log.Default(), events)
		})
		run("input consumer", func(ctx context.Context) error {
			return seg.ConsumeInput(ctx, events)
		})
	}

	if cfg.Monitor.MetricsAddress != "" {
		srv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.Monitor.MetricsAddress), httptransport.NewOpsHandler(nil))
		run("metrics server", func(ctx context.Context) error {
			return httptransport.Serve(ctx, srv)
		})
	}

	log.Printf("monitor started (data_dir=%s, poll=%s, flush=%s)", cfg.DataDir, cfg.Monitor.PollInterval, cfg.Monitor.FlushInterval)
	<-ctx.Done()
	log.Println("monitor shutdown requested")
	wg.Wait()

	var sealer recorder.Sealer
	if cfg.Monitor.SealOnExit {
		sealer = seg
	}
	if err := rec.Shutdown(sealer); err != nil {
		log.Printf("shutdown failed: %v", err)
		return err
	}
	return nil
}
