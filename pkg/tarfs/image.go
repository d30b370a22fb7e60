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
	"fmt"
	"os"
	"runtime"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chainguard.dev/tarshell/pkg/vfs"
)

// FetchImage resolves ref to a container image. A ref naming a regular
// file is read as an image tarball, as written by "docker save" or
// "crane pull"; anything else is pulled from its registry for the host
// architecture using the default keychain.
func FetchImage(ctx context.Context, ref string) (v1.Image, error) {
	log := clog.FromContext(ctx)

	if fi, err := os.Stat(ref); err == nil && fi.Mode().IsRegular() {
		log.Infof("reading image tarball %s", ref)
		img, err := tarball.ImageFromPath(ref, nil)
		if err != nil {
			return nil, fmt.Errorf("reading image tarball %s: %w", ref, err)
		}
		return img, nil
	}

	r, err := name.ParseReference(ref)
	if err != nil {
		return nil, fmt.Errorf("parsing reference %q: %w", ref, err)
	}
	log.Infof("pulling %s", r)
	img, err := remote.Image(r,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
		remote.WithPlatform(v1.Platform{OS: "linux", Architecture: runtime.GOARCH}),
	)
	if err != nil {
		return nil, fmt.Errorf("pulling %s: %w", r, err)
	}
	return img, nil
}

// LoadImage builds the tree of img's flattened filesystem, with
// whiteouts from later layers applied. Images are full of binaries, so
// files that are not text are left out of the tree.
func LoadImage(ctx context.Context, img v1.Image, opts ...Option) (*vfs.Node, error) {
	ctx, span := otel.Tracer("tarshell").Start(ctx, "LoadImage")
	defer span.End()

	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("listing layers: %w", err)
	}
	span.SetAttributes(attribute.Int("layers", len(layers)))

	rc := mutate.Extract(img)
	defer rc.Close()

	opts = append(opts, WithSkipBinary())
	return Load(ctx, rc, opts...)
}

// OpenImage fetches ref and loads its filesystem.
func OpenImage(ctx context.Context, ref string, opts ...Option) (*vfs.Node, error) {
	ctx, span := otel.Tracer("tarshell").Start(ctx, "OpenImage", trace.WithAttributes(attribute.String("image", ref)))
	defer span.End()

	img, err := FetchImage(ctx, ref)
	if err != nil {
		return nil, err
	}
	return LoadImage(ctx, img, opts...)
}
