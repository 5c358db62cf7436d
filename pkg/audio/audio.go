// Package audio declares the contracts the board requires from the
// platform's audio devices. The board never touches hardware directly;
// real capture/render backends satisfy these interfaces out of tree, and
// the fakes in this package stand in for them in tests and dry runs.
package audio

import "context"

// CaptureStream is one live microphone stream: chunked raw audio plus a
// close operation that releases the device.
type CaptureStream interface {
	// Chunks delivers raw audio chunks until the stream is closed.
	Chunks() <-chan []byte
	Close() error
}

// CaptureDevice opens microphone streams. Open fails when the platform
// denies permission or no device is available.
type CaptureDevice interface {
	Open(ctx context.Context) (CaptureStream, error)
}

// PlaybackHandle is one materialized playable resource. Handles are
// single-use: a fresh handle is materialized for every load and closed on
// stop.
type PlaybackHandle interface {
	// Play begins rendering from the given position in seconds. A
	// suspended audio pipeline is reported as boarderr.ErrPlaybackRejected.
	Play(from float64) error
	Pause() error
	// Seek moves the position; callers clamp to [0, Duration].
	Seek(pos float64)
	Position() float64
	Duration() float64
	// Samples returns the current amplitude frame for visualization.
	Samples() []byte
	// OnEnded registers the end-of-playback notification.
	OnEnded(fn func())
	Close() error
}

// PlaybackDevice materializes blobs into playable resources and can
// resume a suspended audio pipeline.
type PlaybackDevice interface {
	Materialize(mediaType string, data []byte) (PlaybackHandle, error)
	Resume() error
}

// TapFunc receives periodic amplitude-sample frames from a live capture
// stream or a playback resource. Purely an observer; errors and timing of
// the visual side never affect correctness.
type TapFunc func(frame []byte)
