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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/clog/slag"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"

	tslog "chainguard.dev/tarshell/pkg/log"
	"chainguard.dev/tarshell/pkg/shell"
)

func New() *cobra.Command {
	level := slag.Level(slog.LevelWarn)
	var logPolicy []string
	var workDir string
	var so shellOptions

	cmd := &cobra.Command{
		Use:   "tarshell",
		Short: "Interactive shell over the contents of a tar archive",
		Long: `Interactive shell over the contents of a tar archive.

The archive is loaded into memory once and nothing is written back to
it. With --image the flattened filesystem of a container image is
explored instead, leaving out files that are not text.

Every command is recorded in a session log that is saved on exit.

Commands:
` + commandList(),
		Example: `  tarshell --tar rootfs.tar.gz --log session.xml
  tarshell --image cgr.dev/chainguard/static --log session.json --user alice`,
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if workDir != "" {
				if err := os.Chdir(workDir); err != nil {
					return fmt.Errorf("failed to change dir to %s: %w", workDir, err)
				}
			}

			var h slog.Handler
			if len(logPolicy) > 0 {
				var err error
				h, err = tslog.Handler(logPolicy, slog.Level(level))
				if err != nil {
					return fmt.Errorf("invalid logging policy: %w", err)
				}
			} else {
				h = charmlog.NewWithOptions(cmd.ErrOrStderr(), charmlog.Options{
					ReportTimestamp: true,
					Level:           charmlog.Level(level),
				})
			}
			logger := slog.New(h)
			slog.SetDefault(logger)
			cmd.SetContext(clog.WithLogger(cmd.Context(), clog.New(h)))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunShell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), so)
		},
	}

	cmd.Flags().StringVar(&so.Archive, "tar", "", "path to the tar archive to explore (plain, gzip or zstd)")
	cmd.Flags().StringVar(&so.Image, "image", "", "image reference or image tarball to explore instead of an archive")
	cmd.Flags().StringVar(&so.LogPath, "log", "", "path the session log is written to on exit (.xml, .json, .yaml)")
	cmd.Flags().StringVarP(&so.User, "user", "u", "", "session user; prompts for one when empty")
	cmd.MarkFlagsOneRequired("tar", "image")
	cmd.MarkFlagsMutuallyExclusive("tar", "image")
	_ = cmd.MarkFlagRequired("log")
	addSizeLimitFlags(cmd, &so.Limits)

	cmd.PersistentFlags().Var(&level, "log-level", "diagnostic log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringSliceVar(&logPolicy, "log-policy", []string{}, "diagnostic logging targets (builtin:stderr, builtin:stdout, builtin:discard or a file)")
	cmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "working dir (default is current dir where executed)")

	cmd.AddCommand(dotcmd())
	cmd.AddCommand(version.Version())

	return cmd
}

// commandList renders the usage line of every shell command.
func commandList() string {
	lines := []string{}
	for _, v := range shell.Verbs() {
		u, _ := shell.Usage(v)
		lines = append(lines, "  "+u)
	}
	return strings.Join(lines, "\n")
}
