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

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"

	"chainguard.dev/tarshell/pkg/sessionlog"
	"chainguard.dev/tarshell/pkg/shell"
	"chainguard.dev/tarshell/pkg/tarfs"
	"chainguard.dev/tarshell/pkg/vfs"
)

// DefaultUser is the session user when the login prompt is left empty.
const DefaultUser = "guest"

type shellOptions struct {
	Archive string
	Image   string
	Limits  sizeLimits
	LogPath string
	User    string
}

// source names where the tree comes from: a tar archive on the host
// filesystem or a container image.
type source struct {
	Archive string
	Image   string
	Limits  sizeLimits
}

func (s source) String() string {
	if s.Image != "" {
		return "image " + s.Image
	}
	return "archive " + s.Archive
}

func (s source) load(ctx context.Context) (*vfs.Node, error) {
	if s.Image != "" {
		return tarfs.OpenImage(ctx, s.Image, s.Limits.options()...)
	}
	abs, err := filepath.Abs(s.Archive)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", s.Archive, err)
	}
	return tarfs.Open(ctx, os.DirFS(filepath.Dir(abs)), filepath.Base(abs), s.Limits.options()...)
}

// RunShell loads the tree, logs the user in and runs commands read
// from in until exit, end of input or cancellation of ctx. The session
// log is flushed on every one of those paths. Only startup failures are
// returned; command failures are reported on out and recorded.
func RunShell(ctx context.Context, in io.Reader, out io.Writer, o shellOptions) error {
	log := clog.FromContext(ctx)

	src := source{Archive: o.Archive, Image: o.Image, Limits: o.Limits}
	root, err := src.load(ctx)
	if err != nil {
		return fmt.Errorf("loading %s: %w", src, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := scanLines(ctx, in)
	readLine := func() (string, bool) {
		select {
		case l, ok := <-lines:
			return l, ok
		case <-ctx.Done():
			return "", false
		}
	}

	user := o.User
	if user == "" {
		fmt.Fprint(out, "Enter your username: ")
		answer, _ := readLine()
		user = strings.TrimSpace(answer)
		if user == "" {
			fmt.Fprintf(out, "Username cannot be empty. Using '%s' as default.\n", DefaultUser)
			user = DefaultUser
		}
	}

	sess, err := shell.New(root, user)
	if err != nil {
		return err
	}
	log.Infof("session started for %s", user)

	fmt.Fprintln(out, "Welcome to tarshell. Type 'exit' to quit.")
	for {
		fmt.Fprintf(out, "%s> ", sess.Cwd())
		line, ok := readLine()
		if !ok {
			// Keep the next message off the prompt line.
			fmt.Fprintln(out)
			if ctx.Err() != nil {
				log.Infof("interrupted, ending session")
			}
			break
		}

		res := sess.Execute(ctx, line)
		if res.Output != "" {
			fmt.Fprintln(out, res.Output)
		}
		if res.Err != nil {
			fmt.Fprintln(out, res.Err.Error())
		}
		if res.Exit {
			break
		}
	}

	// The caller's context may already be cancelled here; the flush
	// must still happen.
	saveLog(context.WithoutCancel(ctx), out, sess.Log(), o.LogPath)
	fmt.Fprintln(out, "Session saved. Exiting...")
	return nil
}

func saveLog(ctx context.Context, out io.Writer, l *sessionlog.Log, path string) {
	wrote, err := l.Flush(ctx, path)
	switch {
	case err != nil:
		clog.FromContext(ctx).Errorf("saving session log: %v", err)
		fmt.Fprintf(out, "Error saving log: %v\n", err)
	case !wrote:
		fmt.Fprintln(out, "No actions to log.")
	default:
		fmt.Fprintf(out, "Log saved to %s\n", path)
	}
}

// scanLines feeds the lines of r to the returned channel until r is
// exhausted or ctx is done. The channel is closed when scanning stops.
func scanLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			clog.FromContext(ctx).Warnf("reading input: %v", err)
		}
	}()
	return lines
}
