// Copyright 2022, 2023, 2025 Chainguard, Inc.
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

package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"golang.org/x/exp/slices"
)

// DefaultOwner is the owner assigned to every node at load time.
const DefaultOwner = "root"

var (
	ErrNotDirectory = errors.New("not a directory")
	ErrIsDirectory  = errors.New("is a directory")
)

// A Node is a single entry in the in-memory tree, either a directory
// holding named children or a file holding text content.
//
// Each node is exclusively owned by its parent directory, so the tree
// never contains cycles or shared subtrees.
type Node struct {
	name     string
	dir      bool
	children map[string]*Node
	content  string
	owner    string
	perm     fs.FileMode
	modTime  time.Time
}

// NodeOption configures a node as it is created.
type NodeOption func(*Node)

// WithPerm sets the permission bits reported by Mode.
func WithPerm(perm fs.FileMode) NodeOption {
	return func(n *Node) {
		n.perm = perm.Perm()
	}
}

// WithModTime sets the modification time reported by ModTime.
func WithModTime(t time.Time) NodeOption {
	return func(n *Node) {
		n.modTime = t
	}
}

func newDir(name string, opts ...NodeOption) *Node {
	n := &Node{
		name:     name,
		dir:      true,
		children: map[string]*Node{},
		owner:    DefaultOwner,
		perm:     0o755,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func newFile(name, content string, opts ...NodeOption) *Node {
	n := &Node{
		name:    name,
		content: content,
		owner:   DefaultOwner,
		perm:    0o644,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// New returns an empty root directory.
func New() *Node {
	return newDir(Separator)
}

// Walk resolves path against the tree rooted at n. The path is
// normalized with Clean first, so "", "/" and "." all return n.
//
// Walk never creates nodes. It fails with an error wrapping
// fs.ErrNotExist if a segment is missing or if a non-final segment
// is a file.
func (n *Node) Walk(path string) (*Node, error) {
	cur := n
	for _, part := range Split(path) {
		if !cur.dir {
			return nil, fmt.Errorf("walk %s: %w", path, fs.ErrNotExist)
		}
		child, ok := cur.children[part]
		if !ok {
			return nil, fmt.Errorf("walk %s: %w", path, fs.ErrNotExist)
		}
		cur = child
	}
	return cur, nil
}

// MkdirAll creates every missing directory along path and returns the
// last one. Existing directories are reused, so calling it repeatedly
// with the same path is a no-op. Options only apply to the final
// directory, and only when it is created.
func (n *Node) MkdirAll(path string, opts ...NodeOption) (*Node, error) {
	parts := Split(path)
	cur := n
	for i, part := range parts {
		child, ok := cur.children[part]
		if !ok {
			var childOpts []NodeOption
			if i == len(parts)-1 {
				childOpts = opts
			}
			child = newDir(part, childOpts...)
			cur.children[part] = child
		}
		if !child.dir {
			return nil, fmt.Errorf("mkdir %s: %s: %w", path, Join(parts[:i+1]...), ErrNotDirectory)
		}
		cur = child
	}
	return cur, nil
}

// WriteFile creates or replaces the file at path with content, creating
// any missing parent directories. A replaced file starts over with the
// default owner.
func (n *Node) WriteFile(path, content string, opts ...NodeOption) (*Node, error) {
	parts := Split(path)
	if len(parts) == 0 {
		return nil, fmt.Errorf("write %s: %w", path, ErrIsDirectory)
	}
	parent, err := n.MkdirAll(Join(parts[:len(parts)-1]...))
	if err != nil {
		return nil, err
	}
	base := parts[len(parts)-1]
	if existing, ok := parent.children[base]; ok && existing.dir {
		return nil, fmt.Errorf("write %s: %w", path, ErrIsDirectory)
	}
	f := newFile(base, content, opts...)
	parent.children[base] = f
	return f, nil
}

// ReadDir returns the immediate children of a directory sorted by name.
func (n *Node) ReadDir() ([]fs.DirEntry, error) {
	if !n.dir {
		return nil, fmt.Errorf("readdir %s: %w", n.name, ErrNotDirectory)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]fs.DirEntry, 0, len(names))
	for _, name := range names {
		out = append(out, n.children[name])
	}
	return out, nil
}

// Owner returns the owner recorded for the node.
func (n *Node) Owner() string {
	return n.owner
}

// Chown records owner on the node. Ownership is metadata only and
// nothing in the tree consults it.
func (n *Node) Chown(owner string) {
	n.owner = owner
}

// Content returns the text of a file. Directories have no content.
func (n *Node) Content() string {
	return n.content
}

// SetContent replaces the text of a file.
func (n *Node) SetContent(content string) error {
	if n.dir {
		return fmt.Errorf("write %s: %w", n.name, ErrIsDirectory)
	}
	n.content = content
	return nil
}

func (n *Node) IsDir() bool {
	return n.dir
}

func (n *Node) Mode() fs.FileMode {
	if n.dir {
		return fs.ModeDir | n.perm
	}
	return n.perm
}

func (n *Node) ModTime() time.Time {
	return n.modTime
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) Size() int64 {
	return int64(len(n.content))
}

func (n *Node) Sys() any {
	return nil
}

func (n *Node) Info() (fs.FileInfo, error) {
	return n, nil
}

func (n *Node) Type() fs.FileMode {
	return n.Mode().Type()
}

var (
	_ fs.FileInfo = (*Node)(nil)
	_ fs.DirEntry = (*Node)(nil)
)
