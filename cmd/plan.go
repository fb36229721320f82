package cmd

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"imgmatrix/internal/discover"
	"imgmatrix/internal/processor"
	"imgmatrix/internal/tui"
)

func newPlanCmd(flags *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <input>",
		Short: "List the outputs a run would write without touching any file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.resolve(cmd, args[0])
			if err != nil {
				return err
			}

			files, err := discover.Files(opts.Input, discover.Options{Recursive: opts.Recursive, Exclude: opts.OutputDir})
			if err != nil {
				return err
			}
			matrix, err := processor.NewMatrix(opts.Scales, opts.Formats)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, input := range files {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, planFileStyle.Render(input))
				for _, task := range matrix {
					fmt.Fprintf(out, "  %s %s\n",
						planBulletStyle.Render("-"),
						planValueStyle.Render(processor.OutputPath(input, opts.OutputDir, task)),
					)
				}
			}

			collisions := processor.Collisions(files, opts.OutputDir, matrix)
			if len(collisions) > 0 {
				paths := make([]string, 0, len(collisions))
				for path := range collisions {
					paths = append(paths, path)
				}
				sort.Strings(paths)

				fmt.Fprintln(out)
				fmt.Fprintln(out, planWarnStyle.Render(fmt.Sprintf("⚠ %d output paths are claimed by more than one input:", len(paths))))
				for _, path := range paths {
					fmt.Fprintf(out, "  %s %s\n", planBulletStyle.Render("-"), planValueStyle.Render(path))
					for _, input := range collisions[path] {
						fmt.Fprintf(out, "      %s\n", planDimStyle.Render(input))
					}
				}
			}

			footer := fmt.Sprintf("%d inputs, %d outputs", len(files), len(files)*matrix.Len())
			if matrix.Lossy() {
				footer += fmt.Sprintf(", quality %d%%", opts.Quality)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, planDimStyle.Render(footer))
			return nil
		},
	}
}

var (
	planFileStyle   = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	planValueStyle  = lipgloss.NewStyle().Foreground(tui.ColorInk)
	planDimStyle    = lipgloss.NewStyle().Foreground(tui.ColorDim)
	planBulletStyle = lipgloss.NewStyle().Foreground(tui.ColorDim)
	planWarnStyle   = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorWarn)
)
