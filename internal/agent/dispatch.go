package agent

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var (
	ErrPrinterNotConfigured = errors.New("printer is not configured")
	ErrDispatchFailed       = errors.New("print dispatch failed")
)

// Dispatcher hands a finished file to the physical print subsystem. The call
// blocks until the subsystem accepts or rejects the job.
type Dispatcher interface {
	Dispatch(ctx context.Context, path string, copies int) error
}

// LPDispatcher spools files through the CUPS lp command, which is how the
// lab's shared printer is driven.
type LPDispatcher struct {
	Printer string

	// command overrides the spooler binary in tests.
	command string
}

func NewLPDispatcher(printer string) *LPDispatcher {
	return &LPDispatcher{Printer: printer, command: "lp"}
}

func (d *LPDispatcher) Dispatch(ctx context.Context, path string, copies int) error {
	if d.Printer == "" {
		return ErrPrinterNotConfigured
	}
	if copies < 1 {
		copies = 1
	}

	bin := d.command
	if bin == "" {
		bin = "lp"
	}

	cmd := exec.CommandContext(ctx, bin, "-d", d.Printer, "-n", strconv.Itoa(copies), path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return fmt.Errorf("%w: %s", ErrDispatchFailed, detail)
	}

	return nil
}
