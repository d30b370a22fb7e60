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
	"github.com/spf13/cobra"

	"chainguard.dev/tarshell/pkg/tarfs"
)

// sizeLimits bounds how much memory loading a tree may take.
type sizeLimits struct {
	ArchiveMaxSize int64
	FileMaxSize    int64
}

func (l sizeLimits) options() []tarfs.Option {
	return []tarfs.Option{
		tarfs.WithMaxArchiveSize(l.ArchiveMaxSize),
		tarfs.WithMaxFileSize(l.FileMaxSize),
	}
}

func addSizeLimitFlags(cmd *cobra.Command, limits *sizeLimits) {
	cmd.Flags().Int64Var(&limits.ArchiveMaxSize, "max-archive-size", tarfs.DefaultMaxArchiveSize,
		"maximum decompressed size of the archive in bytes (0=default, -1=no limit)")
	cmd.Flags().Int64Var(&limits.FileMaxSize, "max-file-size", tarfs.DefaultMaxFileSize,
		"maximum size of any one file in the archive in bytes (0=default, -1=no limit)")
}
