// Package notify is the presentation boundary: the board pushes change
// notifications through a Notifier and the presentation layer re-renders
// on them. Rendering itself lives outside this repository.
package notify

import (
	"go.uber.org/zap"

	"voiceboard/pkg/logger"
)

// Notifier receives board change notifications.
type Notifier interface {
	// ListChanged fires after any mutation that can affect thread or
	// message listings or the capacity display.
	ListChanged()
	ThreadOpened(threadID string)
	ThreadClosed()
	// PlaybackStateChanged reports coarse playback transitions
	// ("playing", "stopped", "play_all", ...).
	PlaybackStateChanged(state string)
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) ListChanged()                {}
func (Nop) ThreadOpened(string)         {}
func (Nop) ThreadClosed()               {}
func (Nop) PlaybackStateChanged(string) {}

// LogNotifier writes notifications to the log; the default sink when the
// binary runs without an attached presentation layer.
type LogNotifier struct{}

func (LogNotifier) ListChanged() {
	logger.Debug("notify_list_changed")
}

func (LogNotifier) ThreadOpened(threadID string) {
	logger.Debug("notify_thread_opened", zap.String("thread", threadID))
}

func (LogNotifier) ThreadClosed() {
	logger.Debug("notify_thread_closed")
}

func (LogNotifier) PlaybackStateChanged(state string) {
	logger.Debug("notify_playback_state", zap.String("state", state))
}
