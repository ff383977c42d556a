package main

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/csgen/Airi/internal/activityfile"
	"github.com/csgen/Airi/internal/categorize"
	"github.com/csgen/Airi/internal/config"
)

type fileArgs struct {
	Files []string `positional-arg-name:"FILE" required:"1"`
}

type recategorizeCommand struct {
	Args fileArgs `positional-args:"yes" required:"yes"`

	cfg config.Config
}

// Execute implements the go-flags Commander interface for recategorizeCommand.
func (c *recategorizeCommand) Execute(_ []string) error {
	classifier := categorize.WithOverrides(c.cfg.Categories)

	var errs []error
	for _, path := range c.Args.Files {
		changed, err := activityfile.Recategorize(path, classifier)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		log.Printf("recategorized %s (%d rows changed)", path, changed)
	}
	return errors.Join(errs...)
}

type repairCommand struct {
	Zone string   `long:"zone" description:"IANA zone naive timestamps were recorded in" default:"Asia/Singapore"`
	Args fileArgs `positional-args:"yes" required:"yes"`
}

// Execute implements the go-flags Commander interface for repairCommand.
func (c *repairCommand) Execute(_ []string) error {
	loc, err := time.LoadLocation(c.Zone)
	if err != nil {
		return fmt.Errorf("load zone %q: %w", c.Zone, err)
	}

	var errs []error
	for _, path := range c.Args.Files {
		repaired, err := activityfile.RepairTimestamps(path, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		log.Printf("repaired %d timestamps in %s", repaired, path)
	}
	return errors.Join(errs...)
}
