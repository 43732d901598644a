package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"video-converter/internal/events"
	"video-converter/internal/media"
	"video-converter/internal/memory"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var includeCompatible bool

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "List the videos in a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			run := *cfg
			applyOverrides(&run, runOverrides{includeCompatible: includeCompatible}, cmd.Flags().Changed)

			if err := ctx.requireTools(cmd.Context(), cmd.ErrOrStderr()); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			memory.ConfigureFromEnv()
			ffmpeg, ffprobe := ctx.tools()
			a, err := newApp(runCtx, &run, appOptions{ffmpeg: ffmpeg, ffprobe: ffprobe})
			if err != nil {
				return err
			}
			defer a.Close()
			a.startMonitor()

			dir := sourceArg(&run, args)
			rep := newReporter(cmd.ErrOrStderr(), false)
			stopPump := startPump(a.bus, rep.handle)
			err = scanInto(runCtx, a, dir)
			stopPump()
			if err != nil {
				return err
			}

			printRecords(cmd.OutOrStdout(), dir, a.session.Snapshot())
			res := a.session.LastScan()
			fmt.Fprintf(cmd.OutOrStdout(), "%d videos, %d errors, %d compatible excluded (%v)\n",
				res.Count(), res.Errors, res.Excluded, res.Duration.Round(time.Millisecond))
			if res.Cancelled {
				return context.Canceled
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeCompatible, "include-compatible", true, "List files that need no conversion")
	return cmd
}

// startPump drains bus into handle until the returned stop function is
// called; stop flushes the remaining events before returning.
func startPump(bus *events.Bus, handle func([]events.Event)) func() {
	pumpCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Pump(pumpCtx, events.DefaultPumpConfig(), handle)
	}()
	return func() {
		cancel()
		<-done
	}
}

// scanInto scans dir into the app's session and waits for it to settle.
func scanInto(ctx context.Context, a *app, dir string) error {
	done, err := a.session.StartScan(ctx, dir)
	if err != nil {
		return err
	}
	<-done
	return nil
}

func printRecords(out io.Writer, root string, records []media.VideoRecord) {
	if len(records) == 0 {
		fmt.Fprintf(out, "No videos found in %s\n", root)
		return
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		name := rec.Path
		if rel, err := filepath.Rel(root, rec.Path); err == nil {
			name = rel
		}
		rows = append(rows, []string{
			name,
			humanize.IBytes(uint64(rec.SizeBytes)),
			rec.Format,
			rec.Codec,
			yesNo(rec.Compatible),
			rec.Status.Label(),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Size", "Format", "Codec", "Compatible", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}
