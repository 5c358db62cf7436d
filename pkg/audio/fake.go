package audio

import (
	"context"
	"errors"
	"sync"

	"voiceboard/pkg/boarderr"
)

// FakeCaptureDevice is an in-memory capture backend. Each Open returns a
// stream whose chunks are pushed by the test (or scripted up front).
type FakeCaptureDevice struct {
	// OpenErr, when set, makes Open fail (permission denied, no device).
	OpenErr error
	// Scripted chunks are delivered to every opened stream in order.
	Scripted [][]byte

	mu      sync.Mutex
	streams []*FakeCaptureStream
}

func (d *FakeCaptureDevice) Open(ctx context.Context) (CaptureStream, error) {
	if d.OpenErr != nil {
		return nil, boarderr.Device("open capture device", d.OpenErr)
	}
	st := &FakeCaptureStream{ch: make(chan []byte, 64)}
	for _, c := range d.Scripted {
		st.ch <- c
	}
	d.mu.Lock()
	d.streams = append(d.streams, st)
	d.mu.Unlock()
	return st, nil
}

// LastStream returns the most recently opened stream, or nil.
func (d *FakeCaptureDevice) LastStream() *FakeCaptureStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

type FakeCaptureStream struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func (s *FakeCaptureStream) Chunks() <-chan []byte { return s.ch }

// Emit pushes one chunk into the stream. No-op after close.
func (s *FakeCaptureStream) Emit(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- chunk
}

func (s *FakeCaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}

func (s *FakeCaptureStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FakePlaybackDevice materializes in-memory handles. RejectPlays makes
// the next N Play calls fail with ErrPlaybackRejected, simulating a
// suspended pipeline; Resume clears the suspension.
type FakePlaybackDevice struct {
	mu          sync.Mutex
	RejectPlays int
	resumes     int
	handles     []*FakePlaybackHandle
}

func (d *FakePlaybackDevice) Materialize(mediaType string, data []byte) (PlaybackHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := &FakePlaybackHandle{
		dev:       d,
		mediaType: mediaType,
		// one "second" of fake audio per kilobyte keeps durations small
		duration: float64(len(data)) / 1024,
	}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *FakePlaybackDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumes++
	if d.RejectPlays > 0 {
		d.RejectPlays--
	}
	return nil
}

func (d *FakePlaybackDevice) Resumes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resumes
}

// Handles returns every handle materialized so far.
func (d *FakePlaybackDevice) Handles() []*FakePlaybackHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakePlaybackHandle(nil), d.handles...)
}

// LastHandle returns the most recently materialized handle, or nil.
func (d *FakePlaybackDevice) LastHandle() *FakePlaybackHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}

type FakePlaybackHandle struct {
	dev       *FakePlaybackDevice
	mediaType string

	mu       sync.Mutex
	pos      float64
	duration float64
	playing  bool
	closed   bool
	ended    func()
	plays    int
}

func (h *FakePlaybackHandle) Play(from float64) error {
	h.dev.mu.Lock()
	reject := h.dev.RejectPlays > 0
	h.dev.mu.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("handle closed")
	}
	if reject {
		return boarderr.ErrPlaybackRejected
	}
	h.pos = from
	h.playing = true
	h.plays++
	return nil
}

func (h *FakePlaybackHandle) Pause() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
	return nil
}

func (h *FakePlaybackHandle) Seek(pos float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pos = pos
}

func (h *FakePlaybackHandle) Position() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos
}

func (h *FakePlaybackHandle) Duration() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *FakePlaybackHandle) Samples() []byte {
	return []byte{128, 130, 126, 128}
}

func (h *FakePlaybackHandle) OnEnded(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended = fn
}

// FinishPlayback simulates the audio reaching its end: position jumps to
// duration and the ended notification fires once.
func (h *FakePlaybackHandle) FinishPlayback() {
	h.mu.Lock()
	if !h.playing || h.closed {
		h.mu.Unlock()
		return
	}
	h.playing = false
	h.pos = h.duration
	fn := h.ended
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *FakePlaybackHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.playing = false
	return nil
}

func (h *FakePlaybackHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *FakePlaybackHandle) CloseCalled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *FakePlaybackHandle) PlayCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.plays
}

func (h *FakePlaybackHandle) MediaType() string { return h.mediaType }
