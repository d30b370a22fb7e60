// Copyright 2022, 2023 Chainguard, Inc.
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
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/tmc/dot"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/tarshell/pkg/vfs"
)

func dotcmd() *cobra.Command {
	var src source
	var web, owners bool

	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Output a digraph of the directory tree inside a tar archive or image.",
		Long: `Output a digraph of the directory tree inside a tar archive or image.

# Render an svg of rootfs.tar.gz
tarshell dot --tar rootfs.tar.gz | dot -Tsvg > tree.svg

# Open browser to explore rootfs.tar.gz, one subtree at a time
tarshell dot --web --tar rootfs.tar.gz

# Graph the text files of an image, with their owners
tarshell dot --owners --image cgr.dev/chainguard/static
`,
		Example: `  tarshell dot --tar <archive>`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return DotCmd(cmd.Context(), cmd.OutOrStdout(), src, web, owners)
		},
	}

	cmd.Flags().StringVar(&src.Archive, "tar", "", "path to the tar archive to graph")
	cmd.Flags().StringVar(&src.Image, "image", "", "image reference or image tarball to graph instead of an archive")
	cmd.Flags().BoolVar(&web, "web", false, "launch a browser")
	cmd.Flags().BoolVar(&owners, "owners", false, "include the owner of every node in its label")
	cmd.MarkFlagsOneRequired("tar", "image")
	cmd.MarkFlagsMutuallyExclusive("tar", "image")
	addSizeLimitFlags(cmd, &src.Limits)

	return cmd
}

func DotCmd(ctx context.Context, w io.Writer, src source, web, owners bool) error {
	log := clog.FromContext(ctx)

	root, err := src.load(ctx)
	if err != nil {
		return fmt.Errorf("loading %s: %w", src, err)
	}

	if !web {
		g, err := renderTree(root, vfs.Separator, owners, false)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, g.String())
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			return
		}
		start := r.URL.Query().Get("node")
		if start == "" {
			start = vfs.Separator
		}

		out, err := renderTree(root, start, owners, true)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		log.Infof("%s: rendering %s", r.URL, start)
		cmd := exec.Command("dot", "-Tsvg")
		cmd.Stdin = strings.NewReader(out.String())
		cmd.Stdout = w

		if err := cmd.Run(); err != nil {
			fmt.Fprintf(w, "error rendering %s: %v", start, err)
		}
	})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              l.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	log.Infof("%s", l.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(l); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Close()
	})

	g.Go(func() error {
		return open.Run(fmt.Sprintf("http://localhost:%d", l.Addr().(*net.TCPAddr).Port))
	})

	return g.Wait()
}

// renderTree graphs the subtree rooted at start. Directories point at
// their children; with links set, every directory links to its own
// subtree.
func renderTree(root *vfs.Node, start string, owners, links bool) (*dot.Graph, error) {
	top, err := root.Walk(start)
	if err != nil {
		return nil, err
	}
	start = vfs.Clean(vfs.Separator, start)

	out := dot.NewGraph("tree")
	if err := out.Set("rankdir", "LR"); err != nil {
		return nil, err
	}
	out.SetType(dot.DIGRAPH)

	var add func(p string, n *vfs.Node) (*dot.Node, error)
	add = func(p string, n *vfs.Node) (*dot.Node, error) {
		node := dot.NewNode(p)
		label := n.Name()
		if owners {
			label = fmt.Sprintf("%s (%s)", label, n.Owner())
		}
		if err := node.Set("label", label); err != nil {
			return nil, err
		}
		shape := "note"
		if n.IsDir() {
			shape = "folder"
		}
		if err := node.Set("shape", shape); err != nil {
			return nil, err
		}
		if links && n.IsDir() {
			if err := node.Set("URL", "/?"+url.Values{"node": {p}}.Encode()); err != nil {
				return nil, err
			}
		}
		out.AddNode(node)

		if !n.IsDir() {
			return node, nil
		}
		dentry, err := n.ReadDir()
		if err != nil {
			return nil, err
		}
		for _, d := range dentry {
			child, ok := d.(*vfs.Node)
			if !ok {
				continue
			}
			c, err := add(vfs.Clean(p, child.Name()), child)
			if err != nil {
				return nil, err
			}
			out.AddEdge(dot.NewEdge(node, c))
		}
		return node, nil
	}

	if _, err := add(start, top); err != nil {
		return nil, err
	}
	return out, nil
}
