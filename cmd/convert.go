package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"imgmatrix/internal/codec"
	"imgmatrix/internal/config"
	"imgmatrix/internal/discover"
	"imgmatrix/internal/logging"
	"imgmatrix/internal/processor"
	"imgmatrix/internal/tui"
)

func runConvert(cmd *cobra.Command, flags *runFlags, input string) error {
	opts, err := flags.resolve(cmd, input)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{File: opts.LogFile, Verbose: opts.Verbose})
	if err != nil {
		return err
	}
	defer closeLog()

	files, err := discover.Files(opts.Input, discover.Options{Recursive: opts.Recursive, Exclude: opts.OutputDir})
	if err != nil {
		return err
	}
	if err := opts.EnsureOutputDir(); err != nil {
		return err
	}

	matrix, err := processor.NewMatrix(opts.Scales, opts.Formats)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tui.RenderHeader(headerRows(opts, len(files), matrix)))
	fmt.Fprintln(out)

	ctx, cancel := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	imgCodec := codec.New(codec.Options{AutoOrient: opts.AutoOrient})
	procOpts := processor.Options{
		OutputDir: opts.OutputDir,
		Quality:   opts.Quality,
		Workers:   opts.Workers(),
		KeepGoing: opts.KeepGoing,
	}

	started := time.Now()
	var report *processor.Report
	if useTerminalUI(out, opts) {
		updates := make(chan processor.ProgressUpdate, 64)
		program := tea.NewProgram(tui.NewModel(updates, len(files), cancel))

		uiDone := make(chan struct{})
		go func() {
			defer close(uiDone)
			_, _ = program.Run()
			for range updates {
			}
		}()

		report, err = processor.Run(ctx, files, matrix, procOpts, imgCodec, processor.NewChanSink(updates), logger)
		close(updates)
		<-uiDone
	} else {
		report, err = processor.Run(ctx, files, matrix, procOpts, imgCodec, tui.NewPlainSink(out), logger)
	}
	if err != nil {
		return err
	}

	return printReport(out, cmd.ErrOrStderr(), report, time.Since(started))
}

func printReport(out, errOut io.Writer, report *processor.Report, elapsed time.Duration) error {
	failed := report.Failed()

	rows := []tui.SummaryRow{
		{Label: "Images processed", Value: strconv.Itoa(report.Total())},
		{Label: "Succeeded", Value: strconv.Itoa(report.Succeeded())},
		{Label: "Failed", Value: strconv.Itoa(len(failed))},
		{Label: "Outputs written", Value: strconv.Itoa(report.Written())},
		{Label: "Elapsed", Value: elapsed.Round(time.Millisecond).String()},
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, tui.RenderSummary(rows))

	if err := report.Err(); err != nil {
		errs := make([]error, len(failed))
		for i, o := range failed {
			errs[i] = o.Err
		}
		fmt.Fprintln(errOut)
		fmt.Fprintln(errOut, tui.RenderErrors(errs))
		fmt.Fprintln(errOut)
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, tui.RenderSuccess(report.Total()))
	return nil
}

func headerRows(opts config.Options, files int, matrix processor.Matrix) []tui.SummaryRow {
	scales := make([]string, len(opts.Scales))
	for i, s := range opts.Scales {
		scales[i] = strconv.Itoa(s) + "%"
	}

	quality := fmt.Sprintf("%d%%", opts.Quality)
	if !matrix.Lossy() {
		quality += " (unused, lossless formats only)"
	}

	threads := opts.Workers()
	threadLabel := "threads"
	if threads == 1 {
		threadLabel = "thread"
	}

	rows := []tui.SummaryRow{{Label: "Found", Value: fmt.Sprintf("%d images", files)}}
	if opts.OutputDir != "" {
		rows = append(rows, tui.SummaryRow{Label: "Output", Value: opts.OutputDir + string(os.PathSeparator)})
	}
	return append(rows,
		tui.SummaryRow{Label: "Formats", Value: strings.Join(opts.Formats, ", ")},
		tui.SummaryRow{Label: "Scales", Value: strings.Join(scales, ", ")},
		tui.SummaryRow{Label: "Quality", Value: quality},
		tui.SummaryRow{Label: "Using", Value: fmt.Sprintf("%d %s", threads, threadLabel)},
	)
}

// useTerminalUI reports whether live progress bars can be drawn: only when
// writing to a real terminal and not asked for plain output.
func useTerminalUI(out io.Writer, opts config.Options) bool {
	if opts.Plain {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
