// Package capture owns one microphone-to-buffer recording lifecycle:
// start, fixed-countdown auto-stop, manual stop, finalize-to-blob.
package capture

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"voiceboard/pkg/audio"
	"voiceboard/pkg/logger"
	"voiceboard/pkg/models"
)

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
)

// DefaultCountdownTicks is the fixed recording length in countdown ticks
// (one tick per second).
const DefaultCountdownTicks = 5

// TickSource drives the countdown. The default ticks once per second;
// tests substitute a manual source.
type TickSource interface {
	Start() <-chan struct{}
	Stop()
}

type secondTicker struct {
	t    *time.Ticker
	ch   chan struct{}
	quit chan struct{}
}

func (s *secondTicker) Start() <-chan struct{} {
	s.t = time.NewTicker(time.Second)
	s.ch = make(chan struct{})
	s.quit = make(chan struct{})
	go func() {
		for {
			select {
			case <-s.quit:
				return
			case <-s.t.C:
				select {
				case s.ch <- struct{}{}:
				case <-s.quit:
					return
				}
			}
		}
	}()
	return s.ch
}

func (s *secondTicker) Stop() {
	if s.t != nil {
		s.t.Stop()
	}
	if s.quit != nil {
		close(s.quit)
		s.quit = nil
	}
}

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	// CountdownTicks is the number of ticks before auto-stop.
	CountdownTicks int
	// PlatformFamily overrides platform detection for container choice.
	PlatformFamily string
	// Tap receives raw chunks for the live waveform. Optional.
	Tap audio.TapFunc
	// Countdown observes remaining ticks for display. It is fed from the
	// session's own elapsed counter, never from a second timer. Optional.
	Countdown func(remaining int)
	// Ticks substitutes the countdown tick source. Optional.
	Ticks TickSource
}

// Session is the capture state machine. Exactly one Session is live in
// the process, owned by the app; Start while recording is a silent
// no-op, Stop from idle likewise.
type Session struct {
	dev  audio.CaptureDevice
	opts Options

	mu          sync.Mutex
	state       State
	stream      audio.CaptureStream
	chunks      [][]byte
	ticks       TickSource
	done        chan struct{}
	readerWG    sync.WaitGroup
	onFinalized func(models.Blob)
}

func NewSession(dev audio.CaptureDevice, opts Options) *Session {
	if opts.CountdownTicks <= 0 {
		opts.CountdownTicks = DefaultCountdownTicks
	}
	if opts.PlatformFamily == "" {
		opts.PlatformFamily = DetectPlatformFamily()
	}
	return &Session{dev: dev, opts: opts, state: StateIdle}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the capture device and begins buffering chunks, feeding
// the analysis tap and counting down to the auto-stop. onFinalized
// receives the finalized blob once recording stops. Starting while
// already recording is a no-op.
func (s *Session) Start(ctx context.Context, onFinalized func(models.Blob)) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		logger.Debug("capture_start_ignored", zap.String("state", string(s.state)))
		return nil
	}
	stream, err := s.dev.Open(ctx)
	if err != nil {
		s.mu.Unlock()
		logger.Error("capture_open_failed", zap.Error(err))
		return err
	}
	s.state = StateRecording
	s.stream = stream
	s.chunks = nil
	s.onFinalized = onFinalized
	s.done = make(chan struct{})
	s.ticks = s.opts.Ticks
	if s.ticks == nil {
		s.ticks = &secondTicker{}
	}
	done := s.done
	ticks := s.ticks
	s.mu.Unlock()

	logger.Info("recording_started", zap.Int("countdown", s.opts.CountdownTicks))

	s.readerWG.Add(1)
	go s.consume(stream)
	go s.countdown(ticks, done)
	return nil
}

func (s *Session) consume(stream audio.CaptureStream) {
	defer s.readerWG.Done()
	for chunk := range stream.Chunks() {
		s.mu.Lock()
		// Chunks still in flight while finalizing belong to the recording.
		if s.state != StateIdle {
			s.chunks = append(s.chunks, chunk)
		}
		s.mu.Unlock()
		if s.opts.Tap != nil {
			s.opts.Tap(chunk)
		}
	}
}

// countdown drains the tick source, decrementing the one authoritative
// elapsed counter. The display observer is fed from the same counter.
func (s *Session) countdown(ticks TickSource, done chan struct{}) {
	remaining := s.opts.CountdownTicks
	if s.opts.Countdown != nil {
		s.opts.Countdown(remaining)
	}
	ch := ticks.Start()
	for {
		select {
		case <-done:
			return
		case <-ch:
			remaining--
			if s.opts.Countdown != nil {
				s.opts.Countdown(remaining)
			}
			if remaining <= 0 {
				s.Stop()
				return
			}
		}
	}
}

// Stop finalizes the recording: concatenates buffered chunks into one
// blob tagged with the platform's container, releases the device and the
// countdown, and returns the session to idle. Valid only while
// recording; from idle it is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	s.state = StateFinalizing
	stream := s.stream
	ticks := s.ticks
	close(s.done)
	s.mu.Unlock()

	ticks.Stop()
	_ = stream.Close()
	s.readerWG.Wait()

	s.mu.Lock()
	var size int
	for _, c := range s.chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range s.chunks {
		data = append(data, c...)
	}
	blob := models.Blob{
		MediaType: ContainerForPlatform(s.opts.PlatformFamily),
		Data:      data,
	}
	cb := s.onFinalized
	s.chunks = nil
	s.stream = nil
	s.onFinalized = nil
	s.state = StateIdle
	s.mu.Unlock()

	logger.Info("recording_finalized",
		zap.String("media_type", blob.MediaType),
		zap.Int64("bytes", blob.Size()))
	if cb != nil {
		cb(blob)
	}
}
