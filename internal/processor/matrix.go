package processor

import (
	"path/filepath"
	"strings"

	"imgmatrix/pkg/imgutil"
)

// Matrix is the ordered list of tasks applied to every input of a run:
// declared scale order outside, declared format order inside.
type Matrix []Task

// NewMatrix expands scales x formats. Scale ranges are validated by the
// caller; the only error is an unknown format identifier.
func NewMatrix(scales []int, formats []string) (Matrix, error) {
	parsed := make([]imgutil.Format, len(formats))
	for i, name := range formats {
		f, err := imgutil.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		parsed[i] = f
	}

	m := make(Matrix, 0, len(scales)*len(formats))
	for _, scale := range scales {
		for i, f := range parsed {
			m = append(m, Task{
				Scale:  scale,
				Format: f,
				Ext:    strings.ToLower(strings.TrimSpace(formats[i])),
			})
		}
	}
	return m, nil
}

func (m Matrix) Len() int {
	return len(m)
}

// Lossy reports whether any task encodes to a format that uses the quality
// setting.
func (m Matrix) Lossy() bool {
	for _, task := range m {
		if task.Format.Lossy() {
			return true
		}
	}
	return false
}

// OutputPath is <parent>/<stem>_<scale>pct.<ext>, where parent is outputDir
// or, when that is empty, the input's own directory. Inputs sharing a stem
// collide when they share an outputDir.
func OutputPath(input, outputDir string, task Task) string {
	parent := outputDir
	if parent == "" {
		parent = filepath.Dir(input)
	}
	return filepath.Join(parent, Stem(input)+"_"+task.Label())
}

// Stem is the base name of path without its final extension. Dotfiles with
// no other dot keep their full name.
func Stem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return base
	}
	return stem
}

// TargetSize scales width and height by scale percent, rounding halves up.
// The arithmetic is exact: 50px at 29% is 14.5 and becomes 15.
func TargetSize(width, height, scale int) (int, int) {
	return scalePercent(width, scale), scalePercent(height, scale)
}

func scalePercent(dim, scale int) int {
	return (dim*scale*2 + 100) / 200
}

// Collisions maps every output path claimed by more than one input to the
// inputs claiming it, in input order.
func Collisions(files []string, outputDir string, m Matrix) map[string][]string {
	claims := make(map[string][]string)
	for _, input := range files {
		for _, task := range m {
			path := OutputPath(input, outputDir, task)
			claims[path] = append(claims[path], input)
		}
	}

	out := make(map[string][]string)
	for path, inputs := range claims {
		if len(inputs) > 1 {
			out[path] = inputs
		}
	}
	return out
}
