package cmd

import (
	"github.com/spf13/cobra"

	"imgmatrix/internal/config"
)

type runFlags struct {
	configFile string
	formats    []string
	scales     []int
	recursive  bool
	output     string

	quality    int
	threads    int
	keepGoing  bool
	autoOrient bool
	plain      bool
	logFile    string
	verbose    bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	def := config.Default()

	shared := cmd.PersistentFlags()
	shared.StringVar(&f.configFile, "config", "", "TOML file with default settings")
	shared.StringSliceVar(&f.formats, "formats", def.Formats, "output image formats (jpg, png, webp, gif, bmp, tiff)")
	shared.IntSliceVar(&f.scales, "scales", def.Scales, "image scale percentages (10-100)")
	shared.BoolVarP(&f.recursive, "recursive", "r", false, "scan directories recursively")
	shared.StringVarP(&f.output, "output", "o", "", "output directory (default: next to each input)")

	local := cmd.Flags()
	local.IntVar(&f.quality, "quality", def.Quality, "JPEG/WebP quality level (0-100)")
	local.IntVarP(&f.threads, "threads", "t", 0, "number of files processed in parallel (default: CPU count)")
	local.BoolVar(&f.keepGoing, "keep-going", false, "attempt every scale/format of a file even after one fails")
	local.BoolVar(&f.autoOrient, "auto-orient", false, "apply EXIF orientation before resizing")
	local.BoolVar(&f.plain, "plain", false, "print one line per file instead of live progress bars")
	local.StringVar(&f.logFile, "log-file", "", "append JSON logs to this file")
	local.BoolVarP(&f.verbose, "verbose", "v", false, "include debug records in the log file")
}

// resolve layers defaults, the optional config file and explicitly set flags,
// in that order, and validates the result.
func (f *runFlags) resolve(cmd *cobra.Command, input string) (config.Options, error) {
	opts := config.Default()
	if f.configFile != "" {
		if err := config.LoadFile(f.configFile, &opts); err != nil {
			return opts, err
		}
	}

	set := cmd.Flags()
	if set.Changed("formats") {
		opts.Formats = f.formats
	}
	if set.Changed("scales") {
		opts.Scales = f.scales
	}
	if set.Changed("recursive") {
		opts.Recursive = f.recursive
	}
	if set.Changed("output") {
		opts.OutputDir = f.output
	}
	if set.Changed("quality") {
		opts.Quality = f.quality
	}
	if set.Changed("threads") {
		opts.Threads = f.threads
	}
	if set.Changed("keep-going") {
		opts.KeepGoing = f.keepGoing
	}
	if set.Changed("auto-orient") {
		opts.AutoOrient = f.autoOrient
	}
	if set.Changed("plain") {
		opts.Plain = f.plain
	}
	if set.Changed("log-file") {
		opts.LogFile = f.logFile
	}
	if set.Changed("verbose") {
		opts.Verbose = f.verbose
	}
	opts.Input = input

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
