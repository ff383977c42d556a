package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csgen/Airi/internal/activityfile"
	"github.com/csgen/Airi/internal/config"
	"github.com/csgen/Airi/internal/outbox"
	"github.com/csgen/Airi/internal/persistence/postgres"
	"github.com/csgen/Airi/internal/schedule"
	httptransport "github.com/csgen/Airi/internal/transport/http"
	"github.com/csgen/Airi/internal/upload"
)

type serveCommand struct {
	cfg config.Config
}

// Execute implements the go-flags Commander interface for serveCommand.
func (c *serveCommand) Execute(_ []string) error {
	cfg := c.cfg
	mode, err := schedule.ParseMode(cfg.AppEnv)
	if err != nil {
		return err
	}
	at, err := schedule.ParseTimeOfDay(cfg.Upload.Time)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	if mode != schedule.ModeProduction {
		log.Printf("upload disabled in %s mode", mode)
		return httptransport.Serve(ctx, httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), httptransport.NewOpsHandler(nil)))
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.NewStore(pool, cfg.ActivityTopic)
	engine := newEngine(cfg, store)

	srv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), httptransport.NewOpsHandler(pool.Ping))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httptransport.Serve(ctx, srv); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	if len(cfg.KafkaBrokers) > 0 {
		compression, err := outbox.ParseCompression(cfg.KafkaCompression)
		if err != nil {
			return err
		}
		producer := outbox.NewKafkaProducer(outbox.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Compression:  compression,
			BatchTimeout: cfg.KafkaBatchTimeout,
			WriteTimeout: cfg.KafkaWriteTimeout,
		})
		defer producer.Close()

		dispatcher := outbox.NewDispatcher(store, producer,
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
		)
		go dispatcher.Start(ctx)
		defer dispatcher.Wait()
	} else {
		log.Println("KAFKA_BROKERS not set; outbox events stay unpublished")
	}

	scheduler := schedule.New(func(ctx context.Context) error {
		_, err := engine.UploadAll(ctx)
		return err
	}, schedule.WithMode(mode), schedule.WithTimeOfDay(at))

	log.Printf("uploader started (data_dir=%s, upload_time=%s)", cfg.DataDir, at)
	return scheduler.Run(ctx)
}

func openPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := postgres.Open(ctx, cfg.PostgresURL, postgres.InitConfig{
		Attempts: cfg.Store.InitAttempts,
		Interval: cfg.Store.InitInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise store: %w", err)
	}
	return pool, nil
}

func newEngine(cfg config.Config, store upload.Store) *upload.Engine {
	return upload.NewEngine(store, activityfile.NewSource(cfg.DataDir),
		upload.WithMaxRetries(cfg.Upload.MaxRetries),
		upload.WithBackoff(cfg.Upload.Backoff),
	)
}
