package platform

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/csgen/Airi/internal/segment"
)

func TestReadInputEvents(t *testing.T) {
	mClock := quartz.NewMock(t)
	now := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	mClock.Set(now)

	out := make(chan segment.InputEvent, 10)
	input := "key_press\nkey_release\n\nwheel\nMOUSE_DOWN\nmouse_up\n"
	err := ReadInputEvents(context.Background(), strings.NewReader(input), mClock, log.New(io.Discard, "", 0), out)
	require.NoError(t, err)
	close(out)

	var kinds []segment.InputKind
	for ev := range out {
		require.True(t, now.Equal(ev.At))
		kinds = append(kinds, ev.Kind)
	}
	require.Equal(t, []segment.InputKind{segment.KeyPress, segment.KeyRelease, segment.MouseDown, segment.MouseUp}, kinds)
}

func TestReadInputEventsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan segment.InputEvent)
	err := ReadInputEvents(ctx, strings.NewReader("key_press\n"), quartz.NewMock(t), log.New(io.Discard, "", 0), out)
	require.NoError(t, err)
}
