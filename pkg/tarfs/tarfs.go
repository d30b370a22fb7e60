// Copyright 2023, 2025 Chainguard, Inc.
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

// Package tarfs decodes a tar archive into a flat list of entries and
// builds an in-memory vfs tree from them.
package tarfs

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"chainguard.dev/tarshell/pkg/limitio"
)

// ErrInvalidArchive is returned when the source is not a readable tar
// container. It is always returned before any tree is built.
var ErrInvalidArchive = errors.New("invalid archive")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

const (
	// DefaultMaxArchiveSize bounds the decompressed size of an archive.
	DefaultMaxArchiveSize int64 = 1 << 30
	// DefaultMaxFileSize bounds the size of any one file in an archive.
	DefaultMaxFileSize int64 = 64 << 20
)

type options struct {
	maxArchiveSize int64
	maxFileSize    int64
	skipBinary     bool
}

// Option tunes how an archive is read.
type Option func(*options)

// WithMaxArchiveSize caps the decompressed archive size. 0 keeps the
// default and limitio.Unlimited removes the cap.
func WithMaxArchiveSize(n int64) Option {
	return func(o *options) {
		o.maxArchiveSize = n
	}
}

// WithMaxFileSize caps the size of each file. 0 keeps the default and
// limitio.Unlimited removes the cap.
func WithMaxFileSize(n int64) Option {
	return func(o *options) {
		o.maxFileSize = n
	}
}

// WithSkipBinary drops files that are not valid UTF-8 instead of
// failing the build with ErrInvalidText.
func WithSkipBinary() Option {
	return func(o *options) {
		o.skipBinary = true
	}
}

// Kind tags an entry as a file or a directory.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Entry is one record of the archive.
type Entry struct {
	Path    string
	Kind    Kind
	Content []byte
	Mode    fs.FileMode
	ModTime time.Time
}

// decompress sniffs the leading bytes of r and wraps it in the matching
// decompressor. Plain tar streams are returned as is.
func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zstdMagic))
	if len(head) == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty input", ErrInvalidArchive)
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: creating gzip reader: %w", ErrInvalidArchive, err)
		}
		return zr, func() { zr.Close() }, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: creating zstd reader: %w", ErrInvalidArchive, err)
		}
		return zr, zr.Close, nil
	default:
		return br, func() {}, nil
	}
}

// Read decodes every regular file and directory in the archive, in
// archive order. Other header types are skipped, leaving only a
// directory entry for their parent.
func Read(ctx context.Context, r io.Reader, opts ...Option) ([]Entry, error) {
	log := clog.FromContext(ctx)

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	src, done, err := decompress(r)
	if err != nil {
		return nil, err
	}
	defer done()

	tr := tar.NewReader(limitio.NewReader(src, "archive", o.maxArchiveSize, DefaultMaxArchiveSize))
	entries := []Entry{}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading header: %w", ErrInvalidArchive, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			entries = append(entries, Entry{
				Path:    hdr.Name,
				Kind:    KindDirectory,
				Mode:    hdr.FileInfo().Mode(),
				ModTime: hdr.ModTime,
			})
		case tar.TypeReg, tar.TypeRegA: //nolint:staticcheck // old archivers still emit TypeRegA
			content, err := io.ReadAll(limitio.NewReader(tr, hdr.Name, o.maxFileSize, DefaultMaxFileSize))
			if err != nil {
				return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidArchive, hdr.Name, err)
			}
			entries = append(entries, Entry{
				Path:    hdr.Name,
				Kind:    KindFile,
				Content: content,
				Mode:    hdr.FileInfo().Mode(),
				ModTime: hdr.ModTime,
			})
		default:
			log.Debugf("skipping %s: unsupported type %q", hdr.Name, hdr.Typeflag)
			// The entry itself is dropped but its parents still exist.
			if dir := path.Dir(strings.TrimSuffix(hdr.Name, "/")); dir != "." && dir != "/" {
				entries = append(entries, Entry{
					Path:    dir,
					Kind:    KindDirectory,
					Mode:    fs.ModeDir | 0o755,
					ModTime: hdr.ModTime,
				})
			}
		}
	}

	log.Debugf("read %d entries from archive", len(entries))
	return entries, nil
}
