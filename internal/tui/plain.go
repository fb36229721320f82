package tui

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"imgmatrix/internal/processor"
)

// PlainSink prints one line per finished file. It is used when stdout is not
// a terminal.
type PlainSink struct {
	mu    sync.Mutex
	w     io.Writer
	names map[processor.FileHandle]string
	next  atomic.Int64
}

func NewPlainSink(w io.Writer) *PlainSink {
	return &PlainSink{w: w, names: make(map[processor.FileHandle]string)}
}

func (s *PlainSink) StartFile(name string, total int) processor.FileHandle {
	h := processor.FileHandle(s.next.Add(1))
	s.mu.Lock()
	s.names[h] = DisplayName(name)
	s.mu.Unlock()
	return h
}

func (s *PlainSink) Increment(processor.FileHandle) {}

func (s *PlainSink) FinishFile(h processor.FileHandle, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.names[h]
	delete(s.names, h)
	fmt.Fprintln(s.w, FinishedLine(name, ok))
}
