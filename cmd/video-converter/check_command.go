package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"video-converter/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "check",
		Short:       "Report whether ffmpeg and ffprobe are available",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ffmpeg, ffprobe := ctx.tools()
			statuses, err := deps.Require(cmd.Context(), deps.Default(ffmpeg, ffprobe))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatuses(statuses))
			printHints(out, statuses)
			return err
		},
	}
}

func renderStatuses(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "OK"
		detail := s.Version
		if !s.OK() {
			state = "MISSING"
			detail = s.Message()
		}
		rows = append(rows, []string{s.Tool.Name, state, s.Path, detail})
	}
	return renderTable([]string{"Tool", "Status", "Path", "Version"}, rows, nil)
}
