// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the zerolog loggers used by every frontend and
// provides the per-invocation capture sink that feeds the envelope transcript.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls where general logs go.
type Options struct {
	Dir     string // directory holding <App>.log; empty disables the file
	App     string
	Level   string
	Console bool // also write human-readable lines to stderr
}

// Logs is the process logging handle. Output is the raw sink behind Logger;
// capture sinks tee into it so the general log keeps every tool line.
type Logs struct {
	Logger zerolog.Logger
	Output io.Writer
	file   *os.File
}

// Close releases the log file, if any.
func (l *Logs) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Nop returns a handle that discards everything. Used by tests.
func Nop() *Logs {
	return &Logs{Logger: zerolog.Nop(), Output: io.Discard}
}

// Setup builds the process logger.
func Setup(opts Options) (*Logs, error) {
	level := ParseLevel(opts.Level)

	var writers []io.Writer
	var file *os.File

	if opts.Dir != "" {
		app := opts.App
		if app == "" {
			app = "aleopantest"
		}
		if err := os.MkdirAll(opts.Dir, 0700); err != nil {
			return Nop(), fmt.Errorf("create log dir: %w", err)
		}
		path := filepath.Join(opts.Dir, app+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return Nop(), fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		file = f
	}
	if opts.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	var output io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		output = writers[0]
	default:
		output = zerolog.MultiLevelWriter(writers...)
	}

	return &Logs{
		Logger: zerolog.New(output).Level(level).With().Timestamp().Logger(),
		Output: output,
		file:   file,
	}, nil
}

// ParseLevel maps a level name to zerolog, falling back to info.
func ParseLevel(name string) zerolog.Level {
	if name == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

var secretKeys = []string{"password", "passwd", "token", "secret", "auth", "api_key", "apikey"}

// Redact returns a copy of params with secret-looking values masked so they
// can be logged.
func Redact(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		lower := strings.ToLower(k)
		masked := false
		for _, s := range secretKeys {
			if strings.Contains(lower, s) {
				masked = true
				break
			}
		}
		if masked {
			out[k] = "***"
		} else {
			out[k] = v
		}
	}
	return out
}
