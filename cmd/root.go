package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imgmatrix/internal/imgerr"
)

var version = "0.1.0-dev"

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "imgmatrix [flags] <input>",
		Short: "imgmatrix - resize and convert images into every scale/format combination",
		Long: "imgmatrix resizes and re-encodes a file or a folder of images into every\n" +
			"combination of the requested scales and formats, processing files in parallel.",
		Example: "  imgmatrix photo.jpg\n" +
			"  imgmatrix ./photos --output ./optimized --recursive\n" +
			"  imgmatrix ./images --formats webp,jpg --scales 100,75,50 --quality 85\n" +
			"  imgmatrix ./gallery --threads 4 -r",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, flags, args[0])
		},
	}
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags.register(cmd)
	cmd.AddCommand(newPlanCmd(flags))
	return cmd
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 when the run was refused before any image was touched (bad
// settings, nothing to process) and 1 otherwise.
func exitCode(err error) int {
	var agg *imgerr.AggregateError
	if errors.As(err, &agg) {
		return 1
	}
	if imgerr.KindOf(err).Fatal() {
		return 2
	}
	return 1
}
