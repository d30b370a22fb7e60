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
	"errors"
	"strings"

	"github.com/google/shlex"
)

// tokenize splits a non-blank line into words. Single and double quotes
// group words and a backslash escapes the next character, as in a POSIX
// shell. Unlike shlex on its own, "#" is ordinary text: a line is never
// a comment and file names may start with "#".
func tokenize(line string) ([]string, error) {
	args, err := shlex.Split(escapeComments(line))
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}

// escapeComments backslash-escapes every "#" that shlex would otherwise
// read as the start of a comment, leaving quoted text alone.
func escapeComments(line string) string {
	var b strings.Builder
	b.Grow(len(line))

	var quote rune
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
