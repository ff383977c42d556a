package segment

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// InputKind distinguishes keyboard and mouse events.
type InputKind int

const (
	KeyPress InputKind = iota
	KeyRelease
	MouseDown
	MouseUp
)

// Counts reports whether the event is a press that adds to the input count.
func (k InputKind) Counts() bool {
	return k == KeyPress || k == MouseDown
}

func (k InputKind) String() string {
	switch k {
	case KeyPress:
		return "key_press"
	case KeyRelease:
		return "key_release"
	case MouseDown:
		return "mouse_down"
	case MouseUp:
		return "mouse_up"
	default:
		return "unknown"
	}
}

// ParseInputKind accepts the names produced by InputKind.String.
func ParseInputKind(value string) (InputKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "key_press":
		return KeyPress, nil
	case "key_release":
		return KeyRelease, nil
	case "mouse_down":
		return MouseDown, nil
	case "mouse_up":
		return MouseUp, nil
	}
	return 0, fmt.Errorf("unknown input kind %q", value)
}

// InputEvent is one keyboard or mouse event.
type InputEvent struct {
	Kind InputKind
	At   time.Time
}

// ConsumeInput feeds events into the segmenter until ctx is cancelled or
// events is closed.
func (s *Segmenter) ConsumeInput(ctx context.Context, events <-chan InputEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.Input(ev.Kind, ev.At)
		}
	}
}
