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

package tarfs_test

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainguard.dev/tarshell/pkg/tarfs"
)

func layer(t *testing.T, members ...member) v1.Layer {
	t.Helper()
	raw := writeTar(t, members...)
	l, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	})
	require.NoError(t, err)
	return l
}

func testImage(t *testing.T) v1.Image {
	t.Helper()
	img, err := mutate.AppendLayers(empty.Image,
		layer(t,
			member{name: "etc/", typeflag: tar.TypeDir},
			member{name: "etc/motd", typeflag: tar.TypeReg, content: "base\n"},
			member{name: "etc/gone", typeflag: tar.TypeReg, content: "deleted later\n"},
			member{name: "bin/tool", typeflag: tar.TypeReg, content: "\x7fELF\xff\xfe"},
		),
		layer(t,
			member{name: "etc/motd", typeflag: tar.TypeReg, content: "top\n"},
			member{name: "etc/.wh.gone", typeflag: tar.TypeReg},
		),
	)
	require.NoError(t, err)
	return img
}

func TestLoadImage(t *testing.T) {
	ctx := context.Background()

	root, err := tarfs.LoadImage(ctx, testImage(t))
	require.NoError(t, err)

	motd, err := root.Walk("/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, "top\n", motd.Content(), "upper layers win")

	_, err = root.Walk("/etc/gone")
	require.ErrorIs(t, err, fs.ErrNotExist, "whiteouts are applied")

	_, err = root.Walk("/bin/tool")
	require.ErrorIs(t, err, fs.ErrNotExist, "binaries are skipped")
	bin, err := root.Walk("/bin")
	require.NoError(t, err)
	assert.True(t, bin.IsDir())
}

func TestOpenImageTarball(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "image.tar")

	ref, err := name.ParseReference("example.com/tarshell/test:latest")
	require.NoError(t, err)
	require.NoError(t, tarball.WriteToFile(path, ref, testImage(t)))

	root, err := tarfs.OpenImage(ctx, path)
	require.NoError(t, err)
	motd, err := root.Walk("/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, "top\n", motd.Content())

	_, err = tarfs.OpenImage(ctx, "not a valid reference!")
	require.Error(t, err)
}
