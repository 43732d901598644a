package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"video-converter/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var prune int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past conversion runs, or the files of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			if cfg.Paths.HistoryDB == "" {
				return fmt.Errorf("history is disabled: paths.history_db is empty")
			}

			store, err := history.Open(cmd.Context(), cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("prune") {
				removed, err := store.Prune(cmd.Context(), prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d runs\n", removed)
				return nil
			}

			if len(args) == 1 {
				items, err := store.ListItems(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderItems(items))
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No conversion runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRuns(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "Number of runs to list")
	cmd.Flags().IntVar(&prune, "prune", 0, "Delete all but the newest N runs")
	return cmd
}

func runResult(r history.Run) string {
	switch {
	case !r.Finished():
		return "running"
	case r.Stuck:
		return "stalled"
	case r.Cancelled:
		return "cancelled"
	default:
		return "done"
	}
}

func renderRuns(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			humanize.Time(r.StartedAt),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Converted),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
			r.Elapsed.Round(time.Second).String(),
			runResult(r),
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Files", "Converted", "Failed", "Skipped", "Elapsed", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func renderItems(items []history.Item) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.Path,
			it.Status.Label(),
			it.Duration.Round(time.Second).String(),
			it.Error,
		})
	}
	return renderTable([]string{"File", "Status", "Took", "Error"}, rows, nil)
}
