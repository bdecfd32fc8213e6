// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Capture collects the console transcript of a single tool invocation.
// Tool goroutines may log concurrently, so writes are serialized.
type Capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewCapture returns an empty capture buffer.
func NewCapture() *Capture {
	return &Capture{}
}

// Write implements io.Writer.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// String returns everything written so far.
func (c *Capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Attach derives a logger from base that writes to parent (the general log
// sink, may be nil) and also renders plain console lines into the capture.
// The logger is bound to the returned context; code running under it logs
// through zerolog.Ctx(ctx).
func (c *Capture) Attach(ctx context.Context, base zerolog.Logger, parent io.Writer) (context.Context, zerolog.Logger) {
	console := zerolog.ConsoleWriter{
		Out:        c,
		NoColor:    true,
		TimeFormat: time.TimeOnly,
	}
	var out io.Writer = console
	if parent != nil {
		out = zerolog.MultiLevelWriter(parent, console)
	}
	logger := base.Output(out)
	return logger.WithContext(ctx), logger
}
