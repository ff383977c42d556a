package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/csgen/Airi/internal/events"
)

// SummaryStore applies an activity event to the daily summary at most once.
type SummaryStore interface {
	ApplyActivityEvent(ctx context.Context, evt events.ActivityUploaded) (bool, error)
}

// SummaryHandler folds activity.uploaded events into daily_summary.
type SummaryHandler struct {
	store  SummaryStore
	logger *log.Logger
}

// NewSummaryHandler constructs a handler backed by store.
func NewSummaryHandler(store SummaryStore, logger *log.Logger) *SummaryHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[summary] ", log.LstdFlags|log.Lshortfile)
	}
	return &SummaryHandler{store: store, logger: logger}
}

// Handle applies msg. Events of other types are ignored; replays of an
// already applied event leave the summary unchanged.
func (h *SummaryHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeActivityUploaded {
		recordSummary("ignored")
		return nil
	}

	var evt events.ActivityUploaded
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if evt.EventID == "" {
		evt.EventID = msg.EventID
	}
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	applied, err := h.store.ApplyActivityEvent(ctx, evt)
	if err != nil {
		return err
	}
	if !applied {
		recordSummary("replayed")
		h.logger.Printf("event already applied event_id=%s", evt.EventID)
		return nil
	}
	recordSummary("applied")
	return nil
}
