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

package shell

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/exp/slices"

	"chainguard.dev/tarshell/pkg/vfs"
)

// Verb names a built-in command.
type Verb string

const (
	VerbLs    Verb = "ls"
	VerbCd    Verb = "cd"
	VerbChown Verb = "chown"
	VerbWho   Verb = "who"
	VerbUniq  Verb = "uniq"
	VerbExit  Verb = "exit"
)

type command struct {
	usage string
	run   func(ctx context.Context, s *Session, args []string) (string, error)
}

// commands is the closed set of verbs the shell understands. Anything
// not listed here fails with ErrCommandNotFound.
var commands = map[Verb]command{
	VerbLs:    {usage: "ls [path]", run: ls},
	VerbCd:    {usage: "cd <path>", run: cd},
	VerbChown: {usage: "chown <owner> <path>", run: chown},
	VerbWho:   {usage: "who", run: who},
	VerbUniq:  {usage: "uniq <file>", run: uniq},
	VerbExit:  {usage: "exit", run: exit},
}

// Verbs returns the built-in verbs in sorted order.
func Verbs() []Verb {
	out := make([]Verb, 0, len(commands))
	for v := range commands {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Usage returns the usage line of a built-in verb.
func Usage(v Verb) (string, bool) {
	cmd, ok := commands[v]
	return cmd.usage, ok
}

func ls(_ context.Context, s *Session, args []string) (string, error) {
	if len(args) > 1 {
		return "", errUsage
	}

	target, shown := s.cwd, s.cwd
	if len(args) == 1 {
		target, shown = vfs.Clean(s.cwd, args[0]), args[0]
	}

	node, err := s.root.Walk(target)
	if err != nil {
		return "", newError(ErrNoSuchDirectory, "No such directory: %s", shown)
	}
	if !node.IsDir() {
		return "", newError(ErrNotADirectory, "Not a directory: %s", shown)
	}

	dentry, err := node.ReadDir()
	if err != nil {
		return "", newError(ErrNotADirectory, "Not a directory: %s", shown)
	}
	names := make([]string, 0, len(dentry))
	for _, d := range dentry {
		names = append(names, d.Name())
	}
	return strings.Join(names, "\n"), nil
}

func cd(_ context.Context, s *Session, args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}

	target := vfs.Clean(s.cwd, args[0])
	node, err := s.root.Walk(target)
	if err != nil || !node.IsDir() {
		return "", newError(ErrNoSuchDirectory, "No such directory: %s", args[0])
	}

	s.cwd = target
	return "", nil
}

func chown(_ context.Context, s *Session, args []string) (string, error) {
	if len(args) != 2 {
		return "", errUsage
	}
	owner, path := args[0], args[1]

	node, err := s.root.Walk(vfs.Clean(s.cwd, path))
	if err != nil {
		return "", newError(ErrNoSuchPath, "No such file or directory: %s", path)
	}

	node.Chown(owner)
	return fmt.Sprintf("Owner of %s changed to %s", path, owner), nil
}

func who(_ context.Context, s *Session, _ []string) (string, error) {
	return "User: " + s.user, nil
}

func uniq(_ context.Context, s *Session, args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}

	node, err := s.root.Walk(vfs.Clean(s.cwd, args[0]))
	if err != nil || node.IsDir() {
		return "", newError(ErrNoSuchFile, "No such file: %s", args[0])
	}

	out := strings.Join(dedupe(splitLines(node.Content())), "\n")
	if err := node.SetContent(out); err != nil {
		return "", newError(ErrNoSuchFile, "No such file: %s", args[0])
	}
	return out, nil
}

func exit(context.Context, *Session, []string) (string, error) {
	return "", nil
}

// splitLines splits s at line boundaries: "\n", "\r", "\r\n", "\v",
// "\f", the file, group and record separators, NEL, U+2028 and U+2029.
// A trailing boundary does not produce an empty final line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, s[start:i])
		i += size
		if r == '\r' && i < len(s) && s[i] == '\n' {
			i++
		}
		start = i
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	default:
		return false
	}
}

// dedupe keeps the first occurrence of every line, in order.
func dedupe(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
