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

package tarfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chainguard.dev/tarshell/pkg/vfs"
)

// ErrInvalidText is returned when a file's content cannot be decoded
// as UTF-8 text.
var ErrInvalidText = errors.New("file content is not valid text")

// Build turns entries into a tree. Missing parents are created as
// directories, directory entries reuse whatever already exists at their
// path, and a later file entry replaces an earlier one. The first error
// aborts the build and no tree is returned.
func Build(ctx context.Context, entries []Entry, opts ...Option) (*vfs.Node, error) {
	log := clog.FromContext(ctx)
	root := vfs.New()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	for _, e := range entries {
		if len(vfs.Split(e.Path)) == 0 {
			// "." and "/" name the root, which always exists.
			continue
		}
		nodeOpts := []vfs.NodeOption{vfs.WithPerm(e.Mode), vfs.WithModTime(e.ModTime)}

		switch e.Kind {
		case KindDirectory:
			if _, err := root.MkdirAll(e.Path, nodeOpts...); err != nil {
				return nil, fmt.Errorf("creating directory %s: %w", e.Path, err)
			}
		case KindFile:
			if !utf8.Valid(e.Content) {
				if o.skipBinary {
					log.Debugf("skipping binary file %s", e.Path)
					// The file is dropped but its directory is kept.
					parts := vfs.Split(e.Path)
					if _, err := root.MkdirAll(vfs.Join(parts[:len(parts)-1]...)); err != nil {
						return nil, fmt.Errorf("creating directory for %s: %w", e.Path, err)
					}
					continue
				}
				return nil, fmt.Errorf("decoding %s: %w", e.Path, ErrInvalidText)
			}
			if _, err := root.WriteFile(e.Path, string(e.Content), nodeOpts...); err != nil {
				return nil, fmt.Errorf("creating file %s: %w", e.Path, err)
			}
		default:
			return nil, fmt.Errorf("entry %s: unknown kind %s", e.Path, e.Kind)
		}
		log.Debugf("loaded %s %s", e.Kind, e.Path)
	}

	return root, nil
}

// Load reads the archive from r and builds its tree.
func Load(ctx context.Context, r io.Reader, opts ...Option) (*vfs.Node, error) {
	ctx, span := otel.Tracer("tarshell").Start(ctx, "Load")
	defer span.End()

	entries, err := Read(ctx, r, opts...)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))

	return Build(ctx, entries, opts...)
}

// Open loads the archive stored at name in fsys. The archive handle is
// closed before Open returns.
func Open(ctx context.Context, fsys fs.FS, name string, opts ...Option) (*vfs.Node, error) {
	ctx, span := otel.Tracer("tarshell").Start(ctx, "Open", trace.WithAttributes(attribute.String("archive", name)))
	defer span.End()

	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidArchive, name)
	}

	clog.FromContext(ctx).Infof("loading archive %s (%d bytes)", name, fi.Size())
	return Load(ctx, f, opts...)
}
