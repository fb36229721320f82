package processor

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"imgmatrix/internal/imgerr"
)

type job struct {
	index int
	input string
}

// Run processes every file in files against m on a pool of opts.Workers
// goroutines, each taking one whole file at a time. A failing file never
// stops the others; every file gets exactly one outcome in the report.
//
// Cancelling ctx stops workers from taking new files. Files already being
// processed run to completion, and files never started are reported as
// interrupted.
//
// The returned error is non-nil only when the batch cannot start at all;
// per-file failures are in the report (see Report.Err).
func Run(ctx context.Context, files []string, m Matrix, opts Options, codec Codec, sink ProgressSink, log *zap.Logger) (*Report, error) {
	if len(files) == 0 {
		return nil, imgerr.Discovery("", errors.New("no input files"))
	}
	if m.Len() == 0 {
		return nil, imgerr.Validation("empty scale/format matrix")
	}
	if codec == nil {
		return nil, errors.New("processor: nil codec")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	log.Info("batch started",
		zap.Int("files", len(files)),
		zap.Int("tasks_per_file", m.Len()),
		zap.Int("workers", workers),
		zap.String("output_dir", opts.OutputDir),
		zap.Bool("keep_going", opts.KeepGoing),
	)
	started := time.Now()

	jobs := make(chan job)
	results := make(chan FileOutcome)

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() error {
			worker(ctx, id, jobs, results, codec, m, opts, sink, log)
			return nil
		})
	}

	report := &Report{seen: make([]bool, len(files))}
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			report.add(res)
			if res.OK() {
				log.Info("file done",
					zap.String("input", res.Input),
					zap.Int("outputs", len(res.Written)),
				)
			} else {
				log.Warn("file failed",
					zap.String("input", res.Input),
					zap.Int("task", res.FailedTask),
					zap.Error(res.Err),
				)
			}
		}
	}()

	go func() {
		defer close(jobs)
		for i, input := range files {
			select {
			case jobs <- job{index: i, input: input}:
			case <-ctx.Done():
				return
			}
		}
	}()

	_ = g.Wait()
	close(results)
	<-collectorDone

	for i, done := range report.seen {
		if done {
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = errors.New("not processed")
		}
		report.add(FileOutcome{
			Index:      i,
			Input:      files[i],
			State:      StateFailed,
			FailedTask: -1,
			Err:        imgerr.Interrupted(files[i], cause),
		})
	}

	log.Info("batch finished",
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", len(report.Failed())),
		zap.Duration("elapsed", time.Since(started)),
	)
	return report, nil
}

func worker(ctx context.Context, id int, jobs <-chan job, results chan<- FileOutcome, codec Codec, m Matrix, opts Options, sink ProgressSink, log *zap.Logger) {
	for j := range jobs {
		if err := ctx.Err(); err != nil {
			return
		}

		log.Debug("file started", zap.Int("worker", id), zap.String("input", j.input))
		results <- ProcessFile(codec, j.index, j.input, m, opts, sink)
	}
}

// Report collects one FileOutcome per input in the order files finished.
type Report struct {
	Outcomes []FileOutcome

	seen []bool
	errs error
}

func (r *Report) add(o FileOutcome) {
	if o.Index >= 0 && o.Index < len(r.seen) {
		if r.seen[o.Index] {
			return
		}
		r.seen[o.Index] = true
	}
	r.Outcomes = append(r.Outcomes, o)
	if o.Err != nil {
		r.errs = multierr.Append(r.errs, o.Err)
	}
}

// Total is the number of outcomes recorded.
func (r *Report) Total() int {
	return len(r.Outcomes)
}

func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed returns the failed outcomes in completion order.
func (r *Report) Failed() []FileOutcome {
	var failed []FileOutcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Written is the number of output files produced.
func (r *Report) Written() int {
	n := 0
	for _, o := range r.Outcomes {
		n += len(o.Written)
	}
	return n
}

// Err returns nil when every file succeeded, otherwise an
// *imgerr.AggregateError listing each failure in completion order.
func (r *Report) Err() error {
	agg := imgerr.NewAggregate(r.errs)
	if agg == nil {
		return nil
	}
	return agg
}
