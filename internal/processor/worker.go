package processor

import (
	"fmt"
	"image"
	"path/filepath"

	"go.uber.org/multierr"

	"imgmatrix/internal/imgerr"
)

// fileRun is the per-file state machine:
// Pending -> Running(task) -> Succeeded | Failed(err, task).
type fileRun struct {
	outcome FileOutcome
	task    int
}

func (r *fileRun) transition(to FileState) {
	from := r.outcome.State
	allowed := (from == StatePending && to == StateRunning) ||
		(from == StateRunning && (to == StateSucceeded || to == StateFailed))
	if !allowed {
		panic(fmt.Sprintf("processor: invalid file transition %s -> %s for %s", from, to, r.outcome.Input))
	}
	r.outcome.State = to
}

// fail records err against the current task (-1 while decoding). The first
// failing task index is kept when several tasks fail in keep-going mode.
func (r *fileRun) fail(err error) {
	if r.outcome.FailedTask < 0 {
		r.outcome.FailedTask = r.task
	}
	r.outcome.Err = multierr.Append(r.outcome.Err, err)
}

// finish settles the file. Several task errors collapse into one error so
// the batch report counts the file once.
func (r *fileRun) finish(total int) FileOutcome {
	if r.outcome.Err == nil {
		r.transition(StateSucceeded)
		return r.outcome
	}

	if errs := multierr.Errors(r.outcome.Err); len(errs) > 1 {
		r.outcome.Err = imgerr.New(
			imgerr.KindOf(errs[0]),
			r.outcome.Input,
			fmt.Errorf("%d of %d tasks failed: %w", len(errs), total, r.outcome.Err),
		)
	}
	r.transition(StateFailed)
	return r.outcome
}

// ProcessFile runs every task of m against one input. The file is decoded
// once; each task resizes (scale 100 keeps the decoded image as is), then
// encodes and writes its output. By default the first failing task ends the
// file and outputs already written stay on disk. With opts.KeepGoing the
// remaining tasks are still attempted and the file fails with every task
// error combined.
//
// sink receives one StartFile, one Increment per written output and one
// FinishFile.
func ProcessFile(codec Codec, index int, input string, m Matrix, opts Options, sink ProgressSink) FileOutcome {
	if sink == nil {
		sink = nopSink{}
	}

	run := &fileRun{outcome: FileOutcome{Index: index, Input: input, FailedTask: -1}, task: -1}
	run.transition(StateRunning)

	h := sink.StartFile(filepath.Base(input), m.Len())

	outcome := runTasks(codec, run, m, opts, sink, h)
	sink.FinishFile(h, outcome.OK())
	return outcome
}

func runTasks(codec Codec, run *fileRun, m Matrix, opts Options, sink ProgressSink, h FileHandle) FileOutcome {
	input := run.outcome.Input

	src, err := codec.Decode(input)
	if err != nil {
		if imgerr.KindOf(err) == "" {
			err = imgerr.Decode(input, err)
		}
		run.fail(err)
		return run.finish(m.Len())
	}

	bounds := src.Bounds()
	var (
		resized    image.Image
		resizeErr  error
		resizedFor = -1
	)

	for i, task := range m {
		run.task = i

		if task.Scale != resizedFor {
			resized, resizeErr = scaleImage(codec, src, bounds, input, task)
			resizedFor = task.Scale
		}
		if resizeErr != nil {
			run.fail(imgerr.WithTask(resizeErr, input, task.Label(), imgerr.KindDegenerateSize))
			if !opts.KeepGoing {
				break
			}
			continue
		}

		out := OutputPath(input, opts.OutputDir, task)
		if err := codec.EncodeAndWrite(resized, out, task.Format, opts.Quality); err != nil {
			run.fail(imgerr.WithTask(err, input, task.Label(), imgerr.KindEncode))
			if !opts.KeepGoing {
				break
			}
			continue
		}

		run.outcome.Written = append(run.outcome.Written, out)
		sink.Increment(h)
	}

	return run.finish(m.Len())
}

func scaleImage(codec Codec, src image.Image, bounds image.Rectangle, input string, task Task) (image.Image, error) {
	if task.Scale == 100 {
		return src, nil
	}
	w, h := TargetSize(bounds.Dx(), bounds.Dy(), task.Scale)
	if w == 0 || h == 0 {
		return nil, imgerr.DegenerateSize(input, task.Label(), w, h, task.Scale)
	}
	return codec.Resize(src, w, h), nil
}
