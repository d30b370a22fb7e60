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

package tarfs_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io/fs"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/psanford/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainguard.dev/tarshell/pkg/limitio"
	"chainguard.dev/tarshell/pkg/tarfs"
	"chainguard.dev/tarshell/pkg/vfs"
)

type member struct {
	name     string
	typeflag byte
	content  string
	linkname string
}

func writeTar(t *testing.T, members ...member) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, m := range members {
		hdr := &tar.Header{
			Name:     m.name,
			Typeflag: m.typeflag,
			Linkname: m.linkname,
			Mode:     0o644,
			Size:     int64(len(m.content)),
			ModTime:  time.Unix(1700000000, 0),
		}
		if m.typeflag == tar.TypeDir {
			hdr.Mode = 0o755
			hdr.Size = 0
		}
		if m.typeflag == tar.TypeSymlink {
			hdr.Size = 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Size > 0 {
			_, err := tw.Write([]byte(m.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipped(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstded(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var sample = []member{
	{name: "a/", typeflag: tar.TypeDir},
	{name: "a/f.txt", typeflag: tar.TypeReg, content: "x\nx\ny\n"},
	{name: "b/c/deep.txt", typeflag: tar.TypeReg, content: "deep"},
	{name: "b/link", typeflag: tar.TypeSymlink, linkname: "c/deep.txt"},
	{name: "empty/", typeflag: tar.TypeDir},
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	plain := writeTar(t, sample...)

	for name, raw := range map[string][]byte{
		"plain": plain,
		"gzip":  gzipped(t, plain),
		"zstd":  zstded(t, plain),
	} {
		t.Run(name, func(t *testing.T) {
			entries, err := tarfs.Read(ctx, bytes.NewReader(raw))
			require.NoError(t, err)

			type got struct {
				Path    string
				Kind    tarfs.Kind
				Content string
			}
			var gots []got
			for _, e := range entries {
				gots = append(gots, got{e.Path, e.Kind, string(e.Content)})
			}
			want := []got{
				{"a/", tarfs.KindDirectory, ""},
				{"a/f.txt", tarfs.KindFile, "x\nx\ny\n"},
				{"b/c/deep.txt", tarfs.KindFile, "deep"},
				{"b", tarfs.KindDirectory, ""},
				{"empty/", tarfs.KindDirectory, ""},
			}
			if diff := cmp.Diff(want, gots); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadInvalid(t *testing.T) {
	ctx := context.Background()
	for name, raw := range map[string][]byte{
		"empty":        {},
		"text":         []byte("this is definitely not a tar archive, just some words on a line\n"),
		"short binary": {0x00, 0x01, 0x02},
		"broken gzip":  {0x1f, 0x8b, 0x00, 0x00},
		"garbage":      bytes.Repeat([]byte("z"), 1024),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tarfs.Read(ctx, bytes.NewReader(raw))
			require.ErrorIs(t, err, tarfs.ErrInvalidArchive)
		})
	}
}

func TestReadLimits(t *testing.T) {
	ctx := context.Background()
	raw := gzipped(t, writeTar(t, sample...))

	_, err := tarfs.Read(ctx, bytes.NewReader(raw), tarfs.WithMaxFileSize(3))
	require.ErrorIs(t, err, tarfs.ErrInvalidArchive)
	var ee *limitio.ExceededError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "a/f.txt", ee.What)

	_, err = tarfs.Read(ctx, bytes.NewReader(raw), tarfs.WithMaxArchiveSize(512))
	require.ErrorIs(t, err, tarfs.ErrInvalidArchive)

	entries, err := tarfs.Read(ctx, bytes.NewReader(raw),
		tarfs.WithMaxFileSize(limitio.Unlimited),
		tarfs.WithMaxArchiveSize(limitio.Unlimited))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	root, err := tarfs.Load(ctx, bytes.NewReader(gzipped(t, writeTar(t, sample...))))
	require.NoError(t, err)

	for _, m := range sample {
		if m.typeflag == tar.TypeSymlink {
			_, err := root.Walk(m.name)
			require.Error(t, err, "symlinks are not loaded")
			continue
		}
		n, err := root.Walk(m.name)
		require.NoError(t, err, m.name)
		assert.Equal(t, m.typeflag == tar.TypeDir, n.IsDir(), m.name)
		assert.Equal(t, vfs.DefaultOwner, n.Owner(), m.name)
		if !n.IsDir() {
			assert.Equal(t, m.content, n.Content(), m.name)
		}
	}

	// Implicit parents are directories.
	c, err := root.Walk("/b/c")
	require.NoError(t, err)
	assert.True(t, c.IsDir())
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("every entry reachable", func(t *testing.T) {
		entries := []tarfs.Entry{
			{Path: "x/y/z.txt", Kind: tarfs.KindFile, Content: []byte("z")},
			{Path: "x/", Kind: tarfs.KindDirectory},
			{Path: "./x/y", Kind: tarfs.KindDirectory},
			{Path: "top.txt", Kind: tarfs.KindFile},
			{Path: "./", Kind: tarfs.KindDirectory},
		}
		root, err := tarfs.Build(ctx, entries)
		require.NoError(t, err)
		for _, e := range entries {
			n, err := root.Walk(e.Path)
			require.NoError(t, err, e.Path)
			assert.Equal(t, e.Kind == tarfs.KindDirectory, n.IsDir(), e.Path)
		}
		z, err := root.Walk("x/y/z.txt")
		require.NoError(t, err)
		assert.Equal(t, "z", z.Content(), "directory entries must not clobber children")
	})

	t.Run("later file wins", func(t *testing.T) {
		root, err := tarfs.Build(ctx, []tarfs.Entry{
			{Path: "f", Kind: tarfs.KindFile, Content: []byte("old")},
			{Path: "f", Kind: tarfs.KindFile, Content: []byte("new")},
		})
		require.NoError(t, err)
		f, err := root.Walk("f")
		require.NoError(t, err)
		assert.Equal(t, "new", f.Content())
	})

	t.Run("invalid text", func(t *testing.T) {
		_, err := tarfs.Build(ctx, []tarfs.Entry{
			{Path: "bin", Kind: tarfs.KindFile, Content: []byte{0xff, 0xfe, 0xfd}},
		})
		require.ErrorIs(t, err, tarfs.ErrInvalidText)
	})

	t.Run("file under file", func(t *testing.T) {
		_, err := tarfs.Build(ctx, []tarfs.Entry{
			{Path: "f", Kind: tarfs.KindFile},
			{Path: "f/g", Kind: tarfs.KindFile},
		})
		require.ErrorIs(t, err, vfs.ErrNotDirectory)
	})

	t.Run("file over directory", func(t *testing.T) {
		_, err := tarfs.Build(ctx, []tarfs.Entry{
			{Path: "d/", Kind: tarfs.KindDirectory},
			{Path: "d", Kind: tarfs.KindFile},
		})
		require.ErrorIs(t, err, vfs.ErrIsDirectory)
	})

	t.Run("dot dot stays inside", func(t *testing.T) {
		root, err := tarfs.Build(ctx, []tarfs.Entry{
			{Path: "../../etc/passwd", Kind: tarfs.KindFile, Content: []byte("root:x:0:0")},
		})
		require.NoError(t, err)
		_, err = root.Walk("/etc/passwd")
		require.NoError(t, err)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("archives", 0o755))
	require.NoError(t, fsys.WriteFile("archives/root.tar.gz", gzipped(t, writeTar(t, sample...)), 0o644))
	require.NoError(t, fsys.WriteFile("archives/bogus.tar", []byte("nope"), 0o644))

	root, err := tarfs.Open(ctx, fsys, "archives/root.tar.gz")
	require.NoError(t, err)
	_, err = root.Walk("a/f.txt")
	require.NoError(t, err)

	_, err = tarfs.Open(ctx, fsys, "archives/bogus.tar")
	require.ErrorIs(t, err, tarfs.ErrInvalidArchive)

	_, err = tarfs.Open(ctx, fsys, "archives/missing.tar")
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = tarfs.Open(ctx, fsys, "archives")
	require.ErrorIs(t, err, tarfs.ErrInvalidArchive)
}
