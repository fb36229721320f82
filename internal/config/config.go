// Package config holds the resolved run configuration: defaults, the optional
// TOML config file, and validation performed before any file is touched.
package config

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"imgmatrix/internal/imgerr"
	"imgmatrix/pkg/imgutil"
)

const (
	MinScale = 10
	MaxScale = 100

	MinQuality = 0
	MaxQuality = 100
)

// Options is the fully resolved configuration for one run. Command-line flags
// take precedence over the config file, which takes precedence over Default.
type Options struct {
	// Input is the file or directory given on the command line.
	Input string `toml:"-"`

	Formats   []string `toml:"formats"`
	Scales    []int    `toml:"scales"`
	Quality   int      `toml:"quality"`
	Recursive bool     `toml:"recursive"`
	Threads   int      `toml:"threads"` // 0 means one worker per CPU.
	OutputDir string   `toml:"output"`  // Empty writes next to each input.

	// KeepGoing attempts every scale/format task of a file even after one
	// fails. Off by default: the first failure ends that file's work.
	KeepGoing  bool `toml:"keep_going"`
	AutoOrient bool `toml:"auto_orient"`

	// Display and logging.
	Plain   bool   `toml:"plain"`
	LogFile string `toml:"log_file"`
	Verbose bool   `toml:"verbose"`
}

// Default returns the built-in defaults.
func Default() Options {
	return Options{
		Formats: []string{"jpg", "webp"},
		Scales:  []int{75, 50, 25},
		Quality: 80,
	}
}

// LoadFile decodes the TOML file at path over opts. Keys the file sets
// replace the corresponding fields; unknown keys are rejected.
func LoadFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return imgerr.Validation("read config %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), opts)
	if err != nil {
		return imgerr.Validation("parse config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return imgerr.Validation("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks value ranges. Every failure is an imgerr.KindValidation
// error and is reported before discovery starts.
func (o *Options) Validate() error {
	if o.Quality < MinQuality || o.Quality > MaxQuality {
		return imgerr.Validation("quality must be between %d and %d (got %d)", MinQuality, MaxQuality, o.Quality)
	}

	if len(o.Scales) == 0 {
		return imgerr.Validation("at least one scale is required")
	}
	for _, scale := range o.Scales {
		if scale < MinScale || scale > MaxScale {
			return imgerr.Validation("scales must be between %d and %d (%d%% is invalid)", MinScale, MaxScale, scale)
		}
	}

	if len(o.Formats) == 0 {
		return imgerr.Validation("at least one format is required")
	}
	for _, name := range o.Formats {
		if _, err := imgutil.ParseFormat(name); err != nil {
			return imgerr.Validation("%w", err)
		}
	}

	if o.Threads < 0 {
		return imgerr.Validation("threads must be positive (got %d)", o.Threads)
	}
	return nil
}

// Workers is the size of the worker pool.
func (o *Options) Workers() int {
	if o.Threads > 0 {
		return o.Threads
	}
	return runtime.NumCPU()
}

// EnsureOutputDir creates the shared output directory if one is configured.
func (o *Options) EnsureOutputDir() error {
	if o.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(o.OutputDir, 0o755); err != nil {
		return imgerr.Write(o.OutputDir, fmt.Errorf("create output directory: %w", err))
	}
	return nil
}
