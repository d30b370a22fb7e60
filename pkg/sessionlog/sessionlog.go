// Copyright 2025 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sessionlog records the outcome of every command in a shell
// session and writes the record out once when the session ends.
package sessionlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is a single dispatched command and its outcome.
type Entry struct {
	Timestamp time.Time
	Command   string
	Status    Status
	// Message is empty on success.
	Message string
}

// Log is an append-only, in-memory sequence of entries.
type Log struct {
	entries []Entry
	now     func() time.Time
}

type Option func(*Log)

// WithClock sets the clock used to timestamp appended entries.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

func New(opts ...Option) *Log {
	l := &Log{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Log) append(command string, status Status, message string) {
	l.entries = append(l.entries, Entry{
		Timestamp: l.now(),
		Command:   command,
		Status:    status,
		Message:   message,
	})
}

// Success records a command that completed.
func (l *Log) Success(command string) {
	l.append(command, StatusSuccess, "")
}

// Failure records a command that failed with message.
func (l *Log) Failure(command, message string) {
	l.append(command, StatusError, message)
}

// Entries returns a copy of the recorded entries in append order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	return len(l.entries)
}

// Flush writes the log to path in the format implied by its extension.
// An empty log is not written and any existing file at path is left
// alone; in that case Flush reports false.
//
// The document is written to a temporary file next to path and renamed
// into place, so a failed flush never leaves a truncated log behind.
func (l *Log) Flush(ctx context.Context, path string) (bool, error) {
	log := clog.FromContext(ctx)

	if len(l.entries) == 0 {
		log.Debugf("session log is empty, not writing %s", path)
		return false, nil
	}

	format := FormatFromPath(path)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return false, fmt.Errorf("creating temporary log file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := l.Encode(tmp, format); err != nil {
		tmp.Close()
		return false, fmt.Errorf("encoding session log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, fmt.Errorf("syncing session log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("closing session log: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return false, fmt.Errorf("setting session log permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return false, fmt.Errorf("writing session log: %w", err)
	}

	log.Infof("wrote %d actions to %s (%s)", len(l.entries), path, format)
	return true, nil
}
