// Package playback owns audio rendering: a single Session per process
// plus the sequential controller that chains one thread's messages.
package playback

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"voiceboard/pkg/audio"
	"voiceboard/pkg/boarderr"
	"voiceboard/pkg/logger"
	"voiceboard/pkg/models"
	"voiceboard/pkg/telemetry"
)

type State string

const (
	StateEmpty   State = "empty"
	StateLoaded  State = "loaded"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// Session is the single playback state machine: Empty -> Loaded ->
// Playing -> (Paused|Ended) -> Empty. Every Load materializes a fresh
// handle; stale handles are never reused across loads.
type Session struct {
	dev audio.PlaybackDevice
	tap audio.TapFunc

	mu       sync.Mutex
	state    State
	handle   audio.PlaybackHandle
	vizQuit  chan struct{}
	onEnded  func()
	endedGen int
}

func NewSession(dev audio.PlaybackDevice, tap audio.TapFunc) *Session {
	return &Session{dev: dev, tap: tap, state: StateEmpty}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnEnded registers the subscriber notified after playback reaches the
// end of the audio. Fired exactly once per load; the session stops
// itself before notifying.
func (s *Session) OnEnded(fn func()) {
	s.mu.Lock()
	s.onEnded = fn
	s.mu.Unlock()
}

// Load tears down any previous session state and materializes the blob
// into a fresh playable resource with the analysis tap wired.
func (s *Session) Load(blob models.Blob) error {
	s.Stop()

	handle, err := s.dev.Materialize(blob.MediaType, blob.Data)
	if err != nil {
		logger.Error("playback_materialize_failed", zap.Error(err))
		return boarderr.Device("materialize blob", err)
	}

	s.mu.Lock()
	s.handle = handle
	s.state = StateLoaded
	gen := s.endedGen
	s.mu.Unlock()

	handle.OnEnded(func() { s.handleEnded(gen) })
	logger.Debug("playback_loaded",
		zap.String("media_type", blob.MediaType),
		zap.Int64("bytes", blob.Size()))
	return nil
}

// Play begins playback from the given position. A rejected play (audio
// pipeline suspended pending a user gesture) is retried exactly once
// after resuming the device; only a second rejection is surfaced.
func (s *Session) Play(from float64) error {
	s.mu.Lock()
	if s.state != StateLoaded && s.state != StatePaused {
		s.mu.Unlock()
		return boarderr.Validation("play invalid from state %s", s.state)
	}
	handle := s.handle
	s.mu.Unlock()

	err := handle.Play(from)
	if errors.Is(err, boarderr.ErrPlaybackRejected) {
		logger.Warn("playback_rejected_retrying")
		telemetry.PlaybackRetries.Inc()
		if rerr := s.dev.Resume(); rerr != nil {
			logger.Error("playback_resume_failed", zap.Error(rerr))
		}
		err = handle.Play(from)
	}
	if err != nil {
		logger.Error("playback_start_failed", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.state = StatePlaying
	s.mu.Unlock()
	telemetry.PlaybackStarts.Inc()
	s.startViz(handle)
	return nil
}

// Pause halts rendering without releasing the handle.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return nil
	}
	handle := s.handle
	s.state = StatePaused
	s.mu.Unlock()
	s.stopViz()
	return handle.Pause()
}

// Seek moves the position, clamped to [0, duration]. Valid while a
// handle is loaded.
func (s *Session) Seek(pos float64) {
	s.mu.Lock()
	handle := s.handle
	state := s.state
	s.mu.Unlock()
	if handle == nil {
		return
	}
	if state != StateLoaded && state != StatePlaying && state != StatePaused {
		return
	}
	if pos < 0 {
		pos = 0
	}
	if d := handle.Duration(); pos > d {
		pos = d
	}
	handle.Seek(pos)
}

// Stop pauses, detaches the tap, cancels the visualization loop, and
// releases the handle. Always safe to call, including when empty.
func (s *Session) Stop() {
	s.mu.Lock()
	handle := s.handle
	s.handle = nil
	s.state = StateEmpty
	s.endedGen++ // invalidate any in-flight ended notification
	s.mu.Unlock()

	s.stopViz()
	if handle != nil {
		_ = handle.Pause()
		_ = handle.Close()
		logger.Debug("playback_stopped")
	}
}

// handleEnded runs when the device reports end of audio. The generation
// guard makes the notification fire at most once per load, even when the
// device callback races a Stop.
func (s *Session) handleEnded(gen int) {
	s.mu.Lock()
	if gen != s.endedGen {
		s.mu.Unlock()
		return
	}
	s.state = StateEnded
	fn := s.onEnded
	s.mu.Unlock()

	s.Stop()
	if fn != nil {
		fn()
	}
}

// startViz runs the visualization callback loop, feeding the analysis
// tap with amplitude frames while the handle plays.
func (s *Session) startViz(handle audio.PlaybackHandle) {
	if s.tap == nil {
		return
	}
	s.mu.Lock()
	if s.vizQuit != nil {
		s.mu.Unlock()
		return
	}
	quit := make(chan struct{})
	s.vizQuit = quit
	s.mu.Unlock()

	go func() {
		t := time.NewTicker(50 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case <-t.C:
				s.tap(handle.Samples())
			}
		}
	}()
}

func (s *Session) stopViz() {
	s.mu.Lock()
	quit := s.vizQuit
	s.vizQuit = nil
	s.mu.Unlock()
	if quit != nil {
		close(quit)
	}
}
