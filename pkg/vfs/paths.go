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

package vfs

import (
	"path"
	"strings"
)

// Separator is the only path separator understood by the tree, both
// when it is built and when it is walked.
const Separator = "/"

// Clean joins rel onto base and returns the normalized absolute path.
// An absolute rel ignores base. "." and ".." are resolved lexically and
// ".." never climbs above the root.
func Clean(base, rel string) string {
	if !strings.HasPrefix(rel, Separator) {
		rel = path.Join(Separator, base, rel)
	}
	return path.Clean(Separator + rel)
}

// Split returns the segments of the normalized form of p. The root has
// no segments.
func Split(p string) []string {
	clean := Clean(Separator, p)
	if clean == Separator {
		return nil
	}
	return strings.Split(strings.TrimPrefix(clean, Separator), Separator)
}

// Join builds an absolute path from segments.
func Join(parts ...string) string {
	return Clean(Separator, strings.Join(parts, Separator))
}
