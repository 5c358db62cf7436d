package playback

import (
	"errors"
	"fmt"
	"iter"
	"testing"

	"github.com/stretchr/testify/require"

	"voiceboard/pkg/audio"
	"voiceboard/pkg/models"
)

type fakeLister struct {
	msgs    map[string][]models.Message
	listErr error
}

func (f *fakeLister) ListMessages(threadID string) (iter.Seq[models.Message], func() error) {
	seq := func(yield func(models.Message) bool) {
		if f.listErr != nil {
			return
		}
		for _, m := range f.msgs[threadID] {
			if !yield(m) {
				return
			}
		}
	}
	return seq, func() error { return f.listErr }
}

func threadOf(n int) *fakeLister {
	msgs := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, models.Message{
			ID:        fmt.Sprintf("m%d", i),
			Thread:    "t",
			CreatedAt: int64(i + 1),
			Blob:      webm(fmt.Sprintf("clip-%d", i)),
		})
	}
	return &fakeLister{msgs: map[string][]models.Message{"t": msgs}}
}

// assertOnlyPlaying checks that exactly one handle renders at a time.
func assertOnlyPlaying(t *testing.T, dev *audio.FakePlaybackDevice, idx int) {
	t.Helper()
	for i, h := range dev.Handles() {
		if i == idx {
			require.True(t, h.Playing(), "handle %d should be playing", i)
		} else {
			require.False(t, h.Playing(), "handle %d should not be playing", i)
		}
	}
}

func TestPlayAllChainsMessagesInOrder(t *testing.T) {
	dev := &audio.FakePlaybackDevice{}
	s := NewSession(dev, nil)
	c := NewController(s, threadOf(3))

	c.PlayAll("t")
	require.True(t, c.Active())
	require.Len(t, dev.Handles(), 1)
	assertOnlyPlaying(t, dev, 0)

	dev.Handles()[0].FinishPlayback()
	require.Len(t, dev.Handles(), 2)
	assertOnlyPlaying(t, dev, 1)

	dev.Handles()[1].FinishPlayback()
	require.Len(t, dev.Handles(), 3)
	assertOnlyPlaying(t, dev, 2)

	dev.Handles()[2].FinishPlayback()
	require.False(t, c.Active())
	require.Equal(t, StateEmpty, s.State())
	assertOnlyPlaying(t, dev, -1)
	// The run never materialized more than one handle per message.
	require.Len(t, dev.Handles(), 3)
}

func TestStopAllHaltsWithinOneNotification(t *testing.T) {
	dev := &audio.FakePlaybackDevice{}
	s := NewSession(dev, nil)
	c := NewController(s, threadOf(3))

	c.PlayAll("t")
	first := dev.Handles()[0]
	require.True(t, first.Playing())

	c.StopAll()
	require.False(t, c.Active())
	require.True(t, first.CloseCalled())

	// A late ended notification from the stopped handle must not start
	// the next message.
	first.FinishPlayback()
	require.Len(t, dev.Handles(), 1)
	require.Equal(t, StateEmpty, s.State())
}

func TestPlayAllNoOpWhileRunning(t *testing.T) {
	dev := &audio.FakePlaybackDevice{}
	s := NewSession(dev, nil)
	c := NewController(s, threadOf(2))

	c.PlayAll("t")
	require.Len(t, dev.Handles(), 1)

	c.PlayAll("t")
	require.Len(t, dev.Handles(), 1)
	assertOnlyPlaying(t, dev, 0)
}

func TestPlayAllNoOpWithoutThread(t *testing.T) {
	dev := &audio.FakePlaybackDevice{}
	s := NewSession(dev, nil)
	c := NewController(s, threadOf(2))

	c.PlayAll("")
	require.False(t, c.Active())
	require.Empty(t, dev.Handles())
}

func TestPlayAllEmptyThreadFinishesImmediately(t *testing.T) {
	dev := &audio.FakePlaybackDevice{}
	s := NewSession(dev, nil)
	c := NewController(s, &fakeLister{msgs: map[string][]models.Message{}})

	c.PlayAll("ghost")
	require.False(t, c.Active())
	require.Empty(t, dev.Handles())
}

func TestPlayAllAbortsOnListFailure(t *testing.T) {
	dev := &audio.FakePlaybackDevice{}
	s := NewSession(dev, nil)
	lister := threadOf(2)
	lister.listErr = errors.New("scan aborted")
	c := NewController(s, lister)

	c.PlayAll("t")
	require.False(t, c.Active())
	require.Empty(t, dev.Handles())
}

func TestPlayAllSkipsRejectedMessage(t *testing.T) {
	// Three rejections: the first two messages fail even after their
	// retry and get skipped; the third message's retry lands.
	dev := &audio.FakePlaybackDevice{RejectPlays: 3}
	s := NewSession(dev, nil)
	c := NewController(s, threadOf(3))

	c.PlayAll("t")
	require.True(t, c.Active())
	require.Len(t, dev.Handles(), 3)
	assertOnlyPlaying(t, dev, 2)

	dev.Handles()[2].FinishPlayback()
	require.False(t, c.Active())
}

func TestPlayOneCancelsSequentialRun(t *testing.T) {
	dev := &audio.FakePlaybackDevice{}
	s := NewSession(dev, nil)
	lister := threadOf(3)
	c := NewController(s, lister)

	c.PlayAll("t")
	require.True(t, c.Active())

	solo := models.Message{ID: "solo", Thread: "t", CreatedAt: 99, Blob: webm("solo")}
	require.NoError(t, c.PlayOne(solo, 0))
	require.False(t, c.Active())
	require.Len(t, dev.Handles(), 2)
	assertOnlyPlaying(t, dev, 1)

	// Finishing the single message must not resume the cancelled chain.
	dev.Handles()[1].FinishPlayback()
	require.Len(t, dev.Handles(), 2)
	require.Equal(t, StateEmpty, s.State())
}

func TestStopCurrentClearsRun(t *testing.T) {
	dev := &audio.FakePlaybackDevice{}
	s := NewSession(dev, nil)
	c := NewController(s, threadOf(1))

	solo := models.Message{ID: "solo", Thread: "t", CreatedAt: 1, Blob: webm("solo")}
	require.NoError(t, c.PlayOne(solo, 0))
	c.StopCurrent()
	require.False(t, c.Active())
	require.Equal(t, StateEmpty, s.State())
	require.True(t, dev.LastHandle().CloseCalled())
}
