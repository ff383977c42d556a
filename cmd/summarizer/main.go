package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/csgen/Airi/internal/config"
	"github.com/csgen/Airi/internal/consumer"
	"github.com/csgen/Airi/internal/persistence/postgres"
	httptransport "github.com/csgen/Airi/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.Open(ctx, cfg.PostgresURL, postgres.InitConfig{
		Attempts: cfg.Store.InitAttempts,
		Interval: cfg.Store.InitInterval,
	})
	if err != nil {
		log.Fatalf("failed to initialise store: %v", err)
	}
	defer pool.Close()

	handler := consumer.NewSummaryHandler(postgres.NewStore(pool, cfg.ActivityTopic), nil)

	var wg sync.WaitGroup
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	metricsSrv := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.MetricsAddress), httptransport.NewOpsHandler(pool.Ping))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httptransport.Serve(ctx, metricsSrv); err != nil {
			log.Printf("metrics server error: %v", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.ActivityTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})

	proc := consumer.NewProcessor(reader, handler)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer reader.Close()

		log.Printf("summarizer started (topic=%s, group=%s)", cfg.ActivityTopic, cfg.ConsumerGroupID)
		if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("summarizer stopped with error: %v", err)
		}
	}()

	<-stop
	log.Println("summarizer shutdown requested")
	cancel()

	wg.Wait()
}
