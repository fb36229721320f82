package processor

import (
	"fmt"
	"image"

	"imgmatrix/pkg/imgutil"
)

// Codec is the image capability the workers drive. Implementations must be
// safe for concurrent use by independent workers.
type Codec interface {
	// Decode reads the file at path into memory.
	Decode(path string) (image.Image, error)
	// Resize returns img scaled to exactly width x height.
	Resize(img image.Image, width, height int) image.Image
	// EncodeAndWrite encodes img in format and writes it to path.
	EncodeAndWrite(img image.Image, path string, format imgutil.Format, quality int) error
}

type Options struct {
	// OutputDir is shared by all inputs. Empty writes each output next to
	// its input.
	OutputDir string
	Quality   int
	// Workers bounds the number of files processed at once; <= 0 uses one
	// worker per CPU.
	Workers   int
	KeepGoing bool
}

// Task is one (scale, format) encode instruction.
type Task struct {
	Scale  int
	Format imgutil.Format
	// Ext is the declared format identifier, lowercased, used verbatim as
	// the output extension.
	Ext string
}

// Label names the task the way its output file suffix does, e.g. "50pct.webp".
func (t Task) Label() string {
	return fmt.Sprintf("%dpct.%s", t.Scale, t.Ext)
}

// FileState tracks one file through the worker.
type FileState int

const (
	StatePending FileState = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s FileState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("FileState(%d)", int(s))
	}
}

// FileOutcome is the result of processing one input file.
type FileOutcome struct {
	// Index is the position of Input in the submitted file list.
	Index int
	Input string
	State FileState
	// FailedTask is the matrix index of the first failing task, or -1.
	FailedTask int
	Written    []string
	Err        error
}

func (o FileOutcome) OK() bool {
	return o.State == StateSucceeded
}

// UpdateKind distinguishes progress events.
type UpdateKind int

const (
	UpdateStart UpdateKind = iota
	UpdateIncrement
	UpdateFinish
)

// ProgressUpdate is one progress event as delivered to a channel consumer.
type ProgressUpdate struct {
	Kind  UpdateKind
	File  FileHandle
	Name  string // UpdateStart only.
	Total int    // UpdateStart only.
	OK    bool   // UpdateFinish only.
}
