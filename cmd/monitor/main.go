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
	parser.Name = "monitor"
	parser.LongDescription = "Records foreground application usage into daily activity files."

	parser.AddCommand("run", "Start the activity monitor", "Poll the foreground window, count input events and flush records to the data directory.", &runCommand{cfg: cfg})
	parser.AddCommand("recategorize", "Reclassify activity files", "Rewrite the activity_type column of each file with the current keyword sets.", &recategorizeCommand{cfg: cfg})
	parser.AddCommand("repair-timestamps", "Add UTC offsets to naive timestamps", "Rewrite timestamps written without an offset as local time in the given zone.", &repairCommand{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}
