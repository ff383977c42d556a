package platform

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/coder/quartz"

	"github.com/csgen/Airi/internal/segment"
)

// ReadInputEvents parses one event name per line from r (key_press,
// key_release, mouse_down, mouse_up) and sends it on out, stamped with the
// clock's current time. Unknown lines are logged and skipped. It returns when
// r is exhausted or ctx is cancelled.
func ReadInputEvents(ctx context.Context, r io.Reader, clock quartz.Clock, logger *log.Logger, out chan<- segment.InputEvent) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		kind, err := segment.ParseInputKind(line)
		if err != nil {
			logger.Printf("input: %v", err)
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case out <- segment.InputEvent{Kind: kind, At: clock.Now()}:
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// ListenFIFO opens the named pipe at path and feeds its events to out until
// ctx is cancelled. The pipe is opened read-write so it stays open while no
// writer is attached.
func ListenFIFO(ctx context.Context, path string, clock quartz.Clock, logger *log.Logger, out chan<- segment.InputEvent) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open input fifo: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer func() {
		if stop() {
			f.Close()
		}
	}()

	if err := ReadInputEvents(ctx, f, clock, logger, out); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
