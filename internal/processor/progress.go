package processor

import "sync/atomic"

// FileHandle identifies one file's progress line for the life of a run.
type FileHandle int64

// ProgressSink receives per-file progress events. Every worker calls it
// concurrently, so implementations must serialize internally.
type ProgressSink interface {
	StartFile(name string, total int) FileHandle
	Increment(h FileHandle)
	FinishFile(h FileHandle, ok bool)
}

// ChanSink forwards progress events to a single consumer over a channel.
type ChanSink struct {
	updates chan<- ProgressUpdate
	next    atomic.Int64
}

func NewChanSink(updates chan<- ProgressUpdate) *ChanSink {
	return &ChanSink{updates: updates}
}

func (s *ChanSink) StartFile(name string, total int) FileHandle {
	h := FileHandle(s.next.Add(1))
	s.updates <- ProgressUpdate{Kind: UpdateStart, File: h, Name: name, Total: total}
	return h
}

func (s *ChanSink) Increment(h FileHandle) {
	s.updates <- ProgressUpdate{Kind: UpdateIncrement, File: h}
}

func (s *ChanSink) FinishFile(h FileHandle, ok bool) {
	s.updates <- ProgressUpdate{Kind: UpdateFinish, File: h, OK: ok}
}

type nopSink struct{}

func (nopSink) StartFile(string, int) FileHandle { return 0 }
func (nopSink) Increment(FileHandle)             {}
func (nopSink) FinishFile(FileHandle, bool)      {}
