// Package platform adapts the host desktop to the segmenter: a command based
// foreground-window probe and a line oriented input event source.
package platform

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long a killed command may keep its output pipes open.
const waitDelay = time.Second

// CommandProbe reports the foreground application by running an external
// command, such as xdotool, and reading the first line it prints.
type CommandProbe struct {
	name string
	args []string
}

// NewCommandProbe splits command on whitespace into a program and arguments.
func NewCommandProbe(command string) (*CommandProbe, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("focus command is empty")
	}
	return &CommandProbe{name: fields[0], args: fields[1:]}, nil
}

// CurrentForegroundApplication runs the command once. An empty title is
// returned as is; the segmenter maps it to its unknown application.
func (p *CommandProbe) CurrentForegroundApplication(ctx context.Context) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.name, p.args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", p.name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", p.name, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", scanner.Err()
}
