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
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Every command failure wraps exactly one of these.
var (
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrNoSuchDirectory  = errors.New("no such directory")
	ErrNoSuchFile       = errors.New("no such file")
	ErrNoSuchPath       = errors.New("no such file or directory")
	ErrNotADirectory    = errors.New("not a directory")
	ErrCommandNotFound  = errors.New("command not found")
)

// Error is a recoverable command failure. Error() is the text shown to
// the user; the wrapped Kind is what gets recorded in the session log.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// errUsage is returned by command handlers on a malformed argument list.
// Execute replaces it with the usage line of the command.
var errUsage = errors.New("usage")

func usage(format string) *Error {
	return &Error{Kind: ErrInvalidArguments, Detail: "Usage: " + format}
}

// Message returns the session log message for err: the capitalized
// category of a command failure, or the plain error text otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Kind != nil {
		return capitalize(cerr.Kind.Error())
	}
	return err.Error()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
