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

// Package shell interprets command lines against an in-memory tree and
// records every outcome in a session log.
package shell

import (
	"context"
	"errors"
	"strings"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chainguard.dev/tarshell/pkg/sessionlog"
	"chainguard.dev/tarshell/pkg/vfs"
)

// Session is the state one user's commands run against. It is not safe
// for concurrent use; commands are dispatched one at a time.
type Session struct {
	root *vfs.Node
	cwd  string
	user string
	log  *sessionlog.Log
}

type Option func(*Session) error

// WithLog records outcomes into l instead of a fresh log.
func WithLog(l *sessionlog.Log) Option {
	return func(s *Session) error {
		if l == nil {
			return errors.New("session log must not be nil")
		}
		s.log = l
		return nil
	}
}

// New starts a session at the root of tree for user.
func New(root *vfs.Node, user string, opts ...Option) (*Session, error) {
	if root == nil || !root.IsDir() {
		return nil, errors.New("session root must be a directory")
	}
	if user == "" {
		return nil, errors.New("session user must not be empty")
	}

	s := &Session{
		root: root,
		cwd:  vfs.Separator,
		user: user,
		log:  sessionlog.New(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Cwd returns the normalized absolute working directory.
func (s *Session) Cwd() string {
	return s.cwd
}

func (s *Session) User() string {
	return s.user
}

func (s *Session) Log() *sessionlog.Log {
	return s.log
}

// Result is the outcome of one Execute call.
type Result struct {
	// Command is the trimmed input line, as recorded in the log.
	Command string
	Output  string
	Err     error
	// Exit is set once the session has been asked to end.
	Exit bool
}

// Execute runs one input line. Whitespace-only lines are ignored and
// return a zero Result. Every other line is dispatched and appends
// exactly one entry to the session log before Execute returns, whether
// or not the command succeeded.
func (s *Session) Execute(ctx context.Context, line string) Result {
	line = strings.TrimSpace(line)
	if line == "" {
		return Result{}
	}

	args, err := tokenize(line)

	ctx, span := otel.Tracer("tarshell").Start(ctx, "Execute")
	defer span.End()
	log := clog.FromContext(ctx).With("cwd", s.cwd)

	res := Result{Command: line}
	if err != nil {
		res.Err = newError(ErrInvalidArguments, "Invalid arguments: %v", err)
	} else {
		verb := Verb(args[0])
		span.SetAttributes(attribute.String("verb", string(verb)))

		cmd, ok := commands[verb]
		if !ok {
			res.Err = newError(ErrCommandNotFound, "Command not found: %s", verb)
		} else {
			res.Output, res.Err = cmd.run(ctx, s, args[1:])
			if errors.Is(res.Err, errUsage) {
				res.Err = usage(cmd.usage)
			}
			res.Exit = verb == VerbExit && res.Err == nil
		}
	}

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, Message(res.Err))
		log.Debugf("%q failed: %v", line, res.Err)
		s.log.Failure(line, Message(res.Err))
		return res
	}

	log.Debugf("%q succeeded", line)
	s.log.Success(line)
	return res
}
