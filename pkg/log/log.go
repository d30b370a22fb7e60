// Copyright 2023 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the compact slog handler used when diagnostics
// are routed with --log-policy.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Column is the attribute key rendered in the fixed-width column ahead
// of every message.
const Column = "cwd"

// writerFromTarget returns a writer given a target specification.
func writerFromTarget(target string) (io.Writer, error) {
	switch target {
	case "builtin:stderr":
		return os.Stderr, nil
	case "builtin:stdout":
		return os.Stdout, nil
	case "builtin:discard":
		return io.Discard, nil
	default:
		if strings.Contains(target, "/") {
			parent := filepath.Dir(target)
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}

		return out, nil
	}
}

// writer returns a writer which writes to multiple target specifications.
func writer(targets []string) (io.Writer, error) {
	if len(targets) == 0 {
		return os.Stderr, nil
	}
	if len(targets) == 1 {
		return writerFromTarget(targets[0])
	}

	writers := []io.Writer{}
	for _, target := range targets {
		writer, err := writerFromTarget(target)
		if err != nil {
			return nil, err
		}

		writers = append(writers, writer)
	}

	return io.MultiWriter(writers...), nil
}

const (
	reset   = 0
	yellow  = 33
	magenta = 35
	gray    = 37
)

func isTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case *os.File:
		return term.IsTerminal(int(v.Fd()))
	default:
		return false
	}
}

func color(w io.Writer, color int) string {
	if !isTerminal(w) {
		return ""
	}

	return fmt.Sprintf("\x1b[%dm", color)
}

func levelToColor(r slog.Record) int {
	switch r.Level {
	case slog.LevelError:
		return magenta
	case slog.LevelWarn:
		return yellow
	default:
		return gray
	}
}

func levelEmoji(r slog.Record) string {
	switch r.Level {
	case slog.LevelError:
		return "❌ "
	case slog.LevelWarn:
		return "⚠️ "
	case slog.LevelInfo:
		return "ℹ️ "
	default:
		return "❕"
	}
}

// Handler returns a handler writing to every target in logPolicy. A
// target is a file path or one of builtin:stderr, builtin:stdout and
// builtin:discard.
func Handler(logPolicy []string, level slog.Level) (slog.Handler, error) {
	out, err := writer(logPolicy)
	if err != nil {
		return nil, fmt.Errorf("opening log targets %v: %w", logPolicy, err)
	}
	return NewHandler(out, level), nil
}

// NewHandler returns a handler writing to out.
func NewHandler(out io.Writer, level slog.Level) slog.Handler {
	return &handler{out: out, level: level, mu: &sync.Mutex{}}
}

type handler struct {
	level slog.Level
	out   io.Writer
	attrs []slog.Attr

	mu *sync.Mutex
}

func (h *handler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &handler{attrs: merged, out: h.out, level: h.level, mu: h.mu}
}

func (h *handler) column(r slog.Record) string {
	var col string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == Column {
			col = a.Value.String()
			return false
		}
		return true
	})
	if col != "" {
		return col
	}
	// Later attrs shadow earlier ones.
	for i := len(h.attrs) - 1; i >= 0; i-- {
		if h.attrs[i].Key == Column {
			return h.attrs[i].Value.String()
		}
	}
	return ""
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c := color(h.out, levelToColor(r))
	_, err := fmt.Fprintf(h.out, "%s %s%-10s|%s %s%s%s\n", levelEmoji(r), c, h.column(r), color(h.out, reset), c, r.Message, color(h.out, reset))
	return err
}

// This handler doesn't support groups.
func (h *handler) WithGroup(string) slog.Handler { return h }
