package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"video-converter/internal/converter"
	"video-converter/internal/logging"
	"video-converter/internal/memory"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var o runOverrides

	cmd := &cobra.Command{
		Use:   "convert [dir]",
		Short: "Scan a folder and convert every video found",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			run := *cfg
			applyOverrides(&run, o, cmd.Flags().Changed)

			if err := ctx.requireTools(cmd.Context(), cmd.ErrOrStderr()); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			memory.ConfigureFromEnv()
			ffmpeg, ffprobe := ctx.tools()
			a, err := newApp(runCtx, &run, appOptions{ffmpeg: ffmpeg, ffprobe: ffprobe, withHistory: !o.noHistory})
			if err != nil {
				return err
			}
			defer a.Close()
			a.startMonitor()

			return runConvert(runCtx, a, sourceArg(&run, args), cmd.OutOrStdout(), isTerminal(os.Stdout))
		},
	}

	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Output folder (default from settings)")
	cmd.Flags().StringVar(&o.quality, "quality", "", "Quality: high, medium or low")
	cmd.Flags().StringVar(&o.resolution, "resolution", "", `Bounding box WxH, or "Original"`)
	cmd.Flags().BoolVar(&o.includeCompatible, "include-compatible", true, "Also convert files that are already compatible")
	cmd.Flags().BoolVar(&o.deleteOriginals, "delete-originals", false, "Replace each converted original with a backup")
	cmd.Flags().BoolVar(&o.noHistory, "no-history", false, "Do not journal the run")
	return cmd
}

var errConversionsFailed = errors.New("some conversions failed")

// runConvert scans dir, converts every selected record into the configured
// output folder and prints a summary. Cancelling ctx stops the run
// cooperatively.
func runConvert(ctx context.Context, a *app, dir string, out io.Writer, tty bool) error {
	rep := newReporter(out, tty)
	stopPump := startPump(a.bus, rep.handle)
	defer stopPump()

	if err := scanInto(ctx, a, dir); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return context.Canceled
	}
	found := a.session.Len()
	if found == 0 {
		fmt.Fprintf(out, "No videos found in %s\n", dir)
		return nil
	}
	logging.Info("Converting %d videos from %s into %s", found, dir, a.cfg.Paths.OutputDir)

	done, err := a.session.StartConvert(ctx, a.cfg.Paths.OutputDir)
	if err != nil {
		return err
	}
	<-done
	stopPump()

	sum, _ := a.session.LastSummary()
	printSummary(out, sum, rep.Failures())

	switch {
	case sum.Stuck:
		return converter.ErrStuck
	case sum.Cancelled:
		return context.Canceled
	case sum.Failed > 0:
		return fmt.Errorf("%w: %d of %d", errConversionsFailed, sum.Failed, sum.Total)
	}
	return nil
}

func printSummary(out io.Writer, sum converter.Summary, failures []failure) {
	rows := [][]string{
		{"Converted", strconv.Itoa(sum.Converted)},
		{"Failed", strconv.Itoa(sum.Failed)},
		{"Skipped", strconv.Itoa(sum.Skipped)},
		{"Not started", strconv.Itoa(sum.Total - sum.Processed())},
		{"Elapsed", sum.Elapsed.Round(time.Second).String()},
	}
	fmt.Fprintln(out, renderTable([]string{"Result", "Files"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(failures) > 0 {
		frows := make([][]string, 0, len(failures))
		for _, f := range failures {
			frows = append(frows, []string{f.path, f.err})
		}
		fmt.Fprintln(out, renderTable([]string{"Failed file", "Error"}, frows, nil))
	}

	switch {
	case sum.Stuck:
		fmt.Fprintln(out, "Conversion stalled and was stopped by the watchdog")
	case sum.Cancelled:
		fmt.Fprintln(out, "Conversion cancelled")
	}
}
