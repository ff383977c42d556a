package main

import (
	"log"
	"os"

	goflags "github.com/jessevdk/go-flags"

	"github.com/csgen/Airi/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	parser := goflags.NewParser(nil, goflags.Default)
	parser.Name = "uploader"
	parser.LongDescription = "Uploads local activity files into the durable store exactly once."

	parser.AddCommand("serve", "Run scheduled uploads", "Upload at startup and daily at UPLOAD_TIME, and publish outbox events when Kafka brokers are configured.", &serveCommand{cfg: cfg})
	parser.AddCommand("once", "Run a single upload pass", "Upload every activity file once and exit.", &onceCommand{cfg: cfg})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
