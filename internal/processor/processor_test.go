package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgmatrix/internal/imgerr"
	"imgmatrix/pkg/imgutil"
)

// fakeCodec decodes every path to a blank image of a fixed size and writes
// a text description of what it was asked to encode.
type fakeCodec struct {
	width, height int
	failDecode    map[string]bool
	failEncode    map[string]bool // keyed by output base name

	mu      sync.Mutex
	resizes [][2]int
}

func (c *fakeCodec) Decode(path string) (image.Image, error) {
	if c.failDecode[filepath.Base(path)] {
		return nil, errors.New("corrupt header")
	}
	return image.NewRGBA(image.Rect(0, 0, c.width, c.height)), nil
}

func (c *fakeCodec) Resize(img image.Image, width, height int) image.Image {
	c.mu.Lock()
	c.resizes = append(c.resizes, [2]int{width, height})
	c.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func (c *fakeCodec) EncodeAndWrite(img image.Image, path string, format imgutil.Format, quality int) error {
	if c.failEncode[filepath.Base(path)] {
		return imgerr.Encode("", fmt.Errorf("%s: %w", path, errors.New("encoder rejected image")))
	}
	b := img.Bounds()
	content := fmt.Sprintf("%s %dx%d q%d", format, b.Dx(), b.Dy(), quality)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return imgerr.Write("", err)
	}
	return nil
}

// recordingSink keeps every progress event per handle.
type recordingSink struct {
	mu      sync.Mutex
	next    FileHandle
	names   map[FileHandle]string
	totals  map[FileHandle]int
	incs    map[FileHandle]int
	results map[FileHandle]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		names:   map[FileHandle]string{},
		totals:  map[FileHandle]int{},
		incs:    map[FileHandle]int{},
		results: map[FileHandle]bool{},
	}
}

func (s *recordingSink) StartFile(name string, total int) FileHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.names[s.next] = name
	s.totals[s.next] = total
	return s.next
}

func (s *recordingSink) Increment(h FileHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incs[h]++
}

func (s *recordingSink) FinishFile(h FileHandle, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.results[h]; dup {
		panic("finish reported twice")
	}
	s.results[h] = ok
}

func (s *recordingSink) byName(name string) (total, incs int, ok, finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, n := range s.names {
		if n == name {
			ok, finished = s.results[h]
			return s.totals[h], s.incs[h], ok, finished
		}
	}
	return 0, 0, false, false
}

func TestNewMatrix(t *testing.T) {
	m, err := NewMatrix([]int{75, 50}, []string{"JPEG", "webp", "png"})
	require.NoError(t, err)
	require.Equal(t, 6, m.Len())

	var labels []string
	for _, task := range m {
		labels = append(labels, task.Label())
	}
	assert.Equal(t, []string{
		"75pct.jpeg", "75pct.webp", "75pct.png",
		"50pct.jpeg", "50pct.webp", "50pct.png",
	}, labels)
	assert.Equal(t, imgutil.FormatJPEG, m[0].Format)
	assert.True(t, m.Lossy())

	lossless, err := NewMatrix([]int{50}, []string{"png", "gif", "tif"})
	require.NoError(t, err)
	assert.False(t, lossless.Lossy())

	_, err = NewMatrix([]int{50}, []string{"heic"})
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	task := Task{Scale: 50, Format: imgutil.FormatWebP, Ext: "webp"}

	assert.Equal(t, filepath.Join("photos", "cat_50pct.webp"), OutputPath(filepath.Join("photos", "cat.jpg"), "", task))
	assert.Equal(t, filepath.Join("out", "cat_50pct.webp"), OutputPath(filepath.Join("photos", "cat.jpg"), "out", task))
	assert.Equal(t, filepath.Join("a", "archive.tar_50pct.webp"), OutputPath(filepath.Join("a", "archive.tar.gz"), "", task))
	assert.Equal(t, ".hidden", Stem(".hidden"))
	assert.Equal(t, "photo", Stem("/x/y/photo.PNG"))
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		w, h, scale  int
		wantW, wantH int
	}{
		{1000, 1000, 50, 500, 500},
		{1000, 800, 75, 750, 600},
		{333, 101, 25, 83, 25},
		{5, 5, 10, 1, 1},
		{4, 40, 10, 0, 4},
		{7, 3, 100, 7, 3},
		{50, 50, 29, 15, 15},
		{3, 1, 50, 2, 1},
		{10, 10, 15, 2, 2},
	}
	for _, tt := range tests {
		w, h := TargetSize(tt.w, tt.h, tt.scale)
		assert.Equal(t, [2]int{tt.wantW, tt.wantH}, [2]int{w, h}, "%dx%d at %d%%", tt.w, tt.h, tt.scale)
	}
}

func TestCollisions(t *testing.T) {
	m, err := NewMatrix([]int{50}, []string{"png"})
	require.NoError(t, err)
	files := []string{filepath.Join("a", "x.jpg"), filepath.Join("b", "x.png"), filepath.Join("b", "y.png")}

	assert.Empty(t, Collisions(files, "", m))

	got := Collisions(files, "out", m)
	require.Len(t, got, 1)
	assert.Equal(t, []string{files[0], files[1]}, got[filepath.Join("out", "x_50pct.png")])
}

func TestProcessFile_FullMatrix(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "photo.jpg")
	codec := &fakeCodec{width: 1000, height: 1000}
	m, err := NewMatrix([]int{100, 50}, []string{"png", "jpg"})
	require.NoError(t, err)
	sink := newRecordingSink()

	out := ProcessFile(codec, 0, input, m, Options{Quality: 80}, sink)

	require.NoError(t, out.Err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, -1, out.FailedTask)
	assert.Equal(t, []string{
		filepath.Join(dir, "photo_100pct.png"),
		filepath.Join(dir, "photo_100pct.jpg"),
		filepath.Join(dir, "photo_50pct.png"),
		filepath.Join(dir, "photo_50pct.jpg"),
	}, out.Written)

	assert.Equal(t, "png 1000x1000 q80", readFile(t, filepath.Join(dir, "photo_100pct.png")))
	assert.Equal(t, "jpeg 1000x1000 q80", readFile(t, filepath.Join(dir, "photo_100pct.jpg")))
	assert.Equal(t, "png 500x500 q80", readFile(t, filepath.Join(dir, "photo_50pct.png")))
	assert.Equal(t, "jpeg 500x500 q80", readFile(t, filepath.Join(dir, "photo_50pct.jpg")))

	// One resize for the 50% pair, none for the identity scale.
	assert.Equal(t, [][2]int{{500, 500}}, codec.resizes)

	total, incs, ok, finished := sink.byName("photo.jpg")
	assert.Equal(t, 4, total)
	assert.Equal(t, 4, incs)
	assert.True(t, finished)
	assert.True(t, ok)
}

func TestProcessFile_OutputCountIsMatrixSize(t *testing.T) {
	for _, tc := range []struct {
		scales  []int
		formats []string
	}{
		{[]int{75, 50, 25}, []string{"jpg", "webp"}},
		{[]int{100}, []string{"png"}},
		{[]int{90, 80, 70, 60}, []string{"png", "gif", "bmp"}},
	} {
		dir := t.TempDir()
		m, err := NewMatrix(tc.scales, tc.formats)
		require.NoError(t, err)

		out := ProcessFile(&fakeCodec{width: 640, height: 480}, 0, filepath.Join(dir, "in.png"), m, Options{}, nil)
		require.NoError(t, out.Err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, len(tc.scales)*len(tc.formats))
	}
}

func TestProcessFile_DegenerateSizeAbortsFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tiny.png")
	m, err := NewMatrix([]int{50, 10, 100}, []string{"png"})
	require.NoError(t, err)
	sink := newRecordingSink()

	out := ProcessFile(&fakeCodec{width: 4, height: 4}, 2, input, m, Options{}, sink)

	require.Error(t, out.Err)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 1, out.FailedTask)
	assert.Equal(t, 2, out.Index)
	assert.True(t, imgerr.Is(out.Err, imgerr.KindDegenerateSize))
	assert.Contains(t, out.Err.Error(), "10pct.png")

	// The 50% output stays on disk, the 100% task never ran.
	assert.Equal(t, []string{filepath.Join(dir, "tiny_50pct.png")}, out.Written)
	assert.FileExists(t, filepath.Join(dir, "tiny_50pct.png"))
	assert.NoFileExists(t, filepath.Join(dir, "tiny_100pct.png"))

	total, incs, ok, finished := sink.byName("tiny.png")
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, incs)
	assert.True(t, finished)
	assert.False(t, ok)
}

func TestProcessFile_KeepGoing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tiny.png")
	m, err := NewMatrix([]int{10, 100}, []string{"png", "jpg"})
	require.NoError(t, err)

	out := ProcessFile(&fakeCodec{width: 4, height: 4}, 0, input, m, Options{KeepGoing: true}, nil)

	require.Error(t, out.Err)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 0, out.FailedTask)
	assert.Len(t, out.Written, 2)
	assert.FileExists(t, filepath.Join(dir, "tiny_100pct.png"))
	assert.FileExists(t, filepath.Join(dir, "tiny_100pct.jpg"))
	assert.True(t, imgerr.Is(out.Err, imgerr.KindDegenerateSize))
	assert.Contains(t, out.Err.Error(), "2 of 4 tasks failed")
}

func TestProcessFile_DecodeError(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMatrix([]int{50}, []string{"png"})
	require.NoError(t, err)
	codec := &fakeCodec{width: 10, height: 10, failDecode: map[string]bool{"bad.jpg": true}}

	out := ProcessFile(codec, 0, filepath.Join(dir, "bad.jpg"), m, Options{}, nil)

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, imgerr.Is(out.Err, imgerr.KindDecode))
	assert.Equal(t, -1, out.FailedTask)
	assert.Empty(t, out.Written)
}

func TestProcessFile_EncodeErrorCarriesTask(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMatrix([]int{50}, []string{"png", "webp", "jpg"})
	require.NoError(t, err)
	codec := &fakeCodec{width: 10, height: 10, failEncode: map[string]bool{"a_50pct.webp": true}}

	out := ProcessFile(codec, 0, filepath.Join(dir, "a.png"), m, Options{}, nil)

	require.Error(t, out.Err)
	assert.Equal(t, 1, out.FailedTask)
	var e *imgerr.Error
	require.True(t, errors.As(out.Err, &e))
	assert.Equal(t, imgerr.KindEncode, e.Kind)
	assert.Equal(t, "50pct.webp", e.Task)
	assert.Equal(t, filepath.Join(dir, "a.png"), e.Input)
	assert.Contains(t, e.Error(), "a_50pct.webp")
	assert.NoFileExists(t, filepath.Join(dir, "a_50pct.jpg"))
}

func TestRun_FailureIsolation(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "one.png"),
		filepath.Join(dir, "two.png"),
		filepath.Join(dir, "three.png"),
	}
	codec := &fakeCodec{width: 100, height: 100, failDecode: map[string]bool{"two.png": true}}
	m, err := NewMatrix([]int{50}, []string{"jpg"})
	require.NoError(t, err)

	report, err := Run(context.Background(), files, m, Options{Workers: 3}, codec, newRecordingSink(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total())
	assert.Equal(t, 2, report.Succeeded())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, files[1], failed[0].Input)

	assert.FileExists(t, filepath.Join(dir, "one_50pct.jpg"))
	assert.FileExists(t, filepath.Join(dir, "three_50pct.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "two_50pct.jpg"))

	runErr := report.Err()
	require.Error(t, runErr)
	var agg *imgerr.AggregateError
	require.True(t, errors.As(runErr, &agg))
	assert.Equal(t, 1, agg.Len())
	assert.True(t, imgerr.Is(agg.Errors[0], imgerr.KindDecode))
}

func TestRun_AllSucceed(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(out, 0o755))
	m, err := NewMatrix([]int{75, 25}, []string{"png", "webp"})
	require.NoError(t, err)

	report, err := Run(context.Background(), []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}, m,
		Options{OutputDir: out, Workers: 2}, &fakeCodec{width: 8, height: 8}, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, report.Err())
	assert.Equal(t, 8, report.Written())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestRun_OneOutcomePerFileUnderLoad(t *testing.T) {
	dir := t.TempDir()
	var files []string
	fail := map[string]bool{}
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("img%02d.png", i)
		files = append(files, filepath.Join(dir, name))
		if i%7 == 3 {
			fail[name] = true
		}
	}
	m, err := NewMatrix([]int{50, 25}, []string{"png", "jpg"})
	require.NoError(t, err)

	summarize := func() []string {
		sink := newRecordingSink()
		report, err := Run(context.Background(), files, m, Options{Workers: 4}, &fakeCodec{width: 20, height: 20, failDecode: fail}, sink, nil)
		require.NoError(t, err)
		require.Equal(t, len(files), report.Total())

		seen := map[int]bool{}
		var summary []string
		for _, o := range report.Outcomes {
			require.False(t, seen[o.Index], "duplicate outcome for %s", o.Input)
			seen[o.Index] = true
			summary = append(summary, fmt.Sprintf("%s=%s", filepath.Base(o.Input), o.State))

			total, incs, ok, finished := sink.byName(filepath.Base(o.Input))
			assert.Equal(t, 4, total)
			assert.Equal(t, len(o.Written), incs)
			assert.True(t, finished)
			assert.Equal(t, o.OK(), ok)
		}
		sort.Strings(summary)
		return summary
	}

	first := summarize()
	second := summarize()
	assert.Equal(t, first, second)

	var agg *imgerr.AggregateError
	report, err := Run(context.Background(), files, m, Options{Workers: 4}, &fakeCodec{width: 20, height: 20, failDecode: fail}, nil, nil)
	require.NoError(t, err)
	require.True(t, errors.As(report.Err(), &agg))
	assert.Equal(t, len(fail), agg.Len())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	m, err := NewMatrix([]int{50}, []string{"png"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, files, m, Options{Workers: 1}, &fakeCodec{width: 10, height: 10}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, report.Total())
	for _, o := range report.Failed() {
		assert.True(t, imgerr.Is(o.Err, imgerr.KindInterrupted))
		assert.True(t, errors.Is(o.Err, context.Canceled))
	}
	assert.Len(t, report.Failed(), 2)
}

func TestRun_RejectsEmptyInput(t *testing.T) {
	m, err := NewMatrix([]int{50}, []string{"png"})
	require.NoError(t, err)

	_, err = Run(context.Background(), nil, m, Options{}, &fakeCodec{}, nil, nil)
	assert.True(t, imgerr.Is(err, imgerr.KindDiscovery))

	_, err = Run(context.Background(), []string{"a.png"}, nil, Options{}, &fakeCodec{}, nil, nil)
	assert.True(t, imgerr.Is(err, imgerr.KindValidation))
}

func TestChanSink(t *testing.T) {
	updates := make(chan ProgressUpdate, 16)
	sink := NewChanSink(updates)

	a := sink.StartFile("a.png", 2)
	b := sink.StartFile("b.png", 1)
	sink.Increment(a)
	sink.FinishFile(b, false)
	close(updates)

	var got []ProgressUpdate
	for u := range updates {
		got = append(got, u)
	}
	assert.NotEqual(t, a, b)
	assert.Equal(t, []ProgressUpdate{
		{Kind: UpdateStart, File: a, Name: "a.png", Total: 2},
		{Kind: UpdateStart, File: b, Name: "b.png", Total: 1},
		{Kind: UpdateIncrement, File: a},
		{Kind: UpdateFinish, File: b, OK: false},
	}, got)
}

func TestChanSink_ConcurrentWorkers(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 12; i++ {
		files = append(files, filepath.Join(dir, fmt.Sprintf("f%d.png", i)))
	}
	m, err := NewMatrix([]int{50, 25}, []string{"png"})
	require.NoError(t, err)

	updates := make(chan ProgressUpdate)
	counts := map[UpdateKind]int{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			counts[u.Kind]++
		}
	}()

	report, err := Run(context.Background(), files, m, Options{Workers: 4}, &fakeCodec{width: 10, height: 10}, NewChanSink(updates), nil)
	close(updates)
	<-done
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.Equal(t, 12, counts[UpdateStart])
	assert.Equal(t, 24, counts[UpdateIncrement])
	assert.Equal(t, 12, counts[UpdateFinish])
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
