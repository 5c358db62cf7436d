package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voiceboard/pkg/audio"
	"voiceboard/pkg/boarderr"
	"voiceboard/pkg/models"
)

// manualTicks drives the countdown by hand. Tick blocks until the
// session has consumed the tick, so tests stay deterministic.
type manualTicks struct {
	ch      chan struct{}
	stopped bool
	mu      sync.Mutex
}

func newManualTicks() *manualTicks {
	return &manualTicks{ch: make(chan struct{})}
}

func (m *manualTicks) Start() <-chan struct{} { return m.ch }

func (m *manualTicks) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *manualTicks) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *manualTicks) Tick() { m.ch <- struct{}{} }

func waitBlob(t *testing.T, ch <-chan models.Blob) models.Blob {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("recording never finalized")
		return models.Blob{}
	}
}

func TestAutoStopAfterCountdown(t *testing.T) {
	dev := &audio.FakeCaptureDevice{}
	ticks := newManualTicks()
	var mu sync.Mutex
	var observed []int
	s := NewSession(dev, Options{
		PlatformFamily: "linux",
		Ticks:          ticks,
		Countdown: func(remaining int) {
			mu.Lock()
			observed = append(observed, remaining)
			mu.Unlock()
		},
	})

	finalized := make(chan models.Blob, 1)
	require.NoError(t, s.Start(context.Background(), func(b models.Blob) { finalized <- b }))
	require.Equal(t, StateRecording, s.State())

	stream := dev.LastStream()
	stream.Emit([]byte("chunk-a "))
	stream.Emit([]byte("chunk-b"))

	for i := 0; i < DefaultCountdownTicks; i++ {
		ticks.Tick()
	}

	blob := waitBlob(t, finalized)
	require.Equal(t, StateIdle, s.State())
	require.Equal(t, []byte("chunk-a chunk-b"), blob.Data)
	require.Equal(t, ContainerWebM, blob.MediaType)
	require.True(t, stream.Closed())
	require.True(t, ticks.Stopped())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{5, 4, 3, 2, 1, 0}, observed)
}

func TestManualStopBeforeCountdown(t *testing.T) {
	dev := &audio.FakeCaptureDevice{}
	ticks := newManualTicks()
	s := NewSession(dev, Options{PlatformFamily: "linux", Ticks: ticks})

	finalized := make(chan models.Blob, 1)
	require.NoError(t, s.Start(context.Background(), func(b models.Blob) { finalized <- b }))
	dev.LastStream().Emit([]byte("short"))
	ticks.Tick()

	s.Stop()
	blob := waitBlob(t, finalized)
	require.Equal(t, []byte("short"), blob.Data)
	require.Equal(t, StateIdle, s.State())
}

func TestAppleFamilyBlobTag(t *testing.T) {
	dev := &audio.FakeCaptureDevice{Scripted: [][]byte{[]byte("aac")}}
	s := NewSession(dev, Options{PlatformFamily: "apple", Ticks: newManualTicks()})

	finalized := make(chan models.Blob, 1)
	require.NoError(t, s.Start(context.Background(), func(b models.Blob) { finalized <- b }))
	s.Stop()
	blob := waitBlob(t, finalized)
	require.Equal(t, ContainerMP4, blob.MediaType)
	require.Equal(t, []byte("aac"), blob.Data)
}

func TestStartWhileRecordingIsNoOp(t *testing.T) {
	dev := &audio.FakeCaptureDevice{}
	s := NewSession(dev, Options{PlatformFamily: "linux", Ticks: newManualTicks()})

	finalized := make(chan models.Blob, 1)
	require.NoError(t, s.Start(context.Background(), func(b models.Blob) { finalized <- b }))
	first := dev.LastStream()

	// A second Start must not open another stream or replace the callback.
	require.NoError(t, s.Start(context.Background(), func(models.Blob) {
		t.Error("second callback must never fire")
	}))
	require.Same(t, first, dev.LastStream())

	s.Stop()
	waitBlob(t, finalized)
}

func TestStopFromIdleIsNoOp(t *testing.T) {
	s := NewSession(&audio.FakeCaptureDevice{}, Options{PlatformFamily: "linux"})
	s.Stop()
	require.Equal(t, StateIdle, s.State())
}

func TestStartDeviceError(t *testing.T) {
	dev := &audio.FakeCaptureDevice{OpenErr: context.DeadlineExceeded}
	s := NewSession(dev, Options{PlatformFamily: "linux"})
	err := s.Start(context.Background(), func(models.Blob) {
		t.Error("callback must not fire when the device fails to open")
	})
	require.Equal(t, boarderr.KindDevice, boarderr.KindOf(err))
	require.Equal(t, StateIdle, s.State())
}

func TestEmptyRecordingFinalizesEmptyBlob(t *testing.T) {
	dev := &audio.FakeCaptureDevice{}
	s := NewSession(dev, Options{PlatformFamily: "linux", Ticks: newManualTicks()})

	finalized := make(chan models.Blob, 1)
	require.NoError(t, s.Start(context.Background(), func(b models.Blob) { finalized <- b }))
	s.Stop()
	blob := waitBlob(t, finalized)
	require.True(t, blob.Empty())
}

func TestTapReceivesChunks(t *testing.T) {
	dev := &audio.FakeCaptureDevice{}
	tapped := make(chan []byte, 8)
	s := NewSession(dev, Options{
		PlatformFamily: "linux",
		Ticks:          newManualTicks(),
		Tap:            func(chunk []byte) { tapped <- chunk },
	})

	finalized := make(chan models.Blob, 1)
	require.NoError(t, s.Start(context.Background(), func(b models.Blob) { finalized <- b }))
	dev.LastStream().Emit([]byte("wave"))
	s.Stop()
	waitBlob(t, finalized)

	select {
	case chunk := <-tapped:
		require.Equal(t, []byte("wave"), chunk)
	default:
		t.Fatal("tap never saw the chunk")
	}
}
