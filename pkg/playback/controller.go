package playback

import (
	"iter"
	"sync"

	"go.uber.org/zap"

	"voiceboard/pkg/logger"
	"voiceboard/pkg/models"
)

// MessageLister supplies a thread's messages in reply order. Satisfied by
// the repository; the error accessor is valid once the sequence has been
// iterated.
type MessageLister interface {
	ListMessages(threadID string) (iter.Seq[models.Message], func() error)
}

// Controller chains playback across a thread's ordered messages. The
// active flag is the single cancellation signal: it is checked before
// starting the next item and again inside the ended callback, because
// the callback can fire after cancellation was requested but before the
// player resource was released.
type Controller struct {
	session *Session
	lister  MessageLister

	mu     sync.Mutex
	active bool
	queue  []models.Message
}

func NewController(session *Session, lister MessageLister) *Controller {
	return &Controller{session: session, lister: lister}
}

// Active reports whether a sequential run is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// PlayAll starts sequential playback of the thread's messages in
// ascending CreatedAt order. No-op while already running or when no
// thread is open (empty id). Any current playback is stopped first.
func (c *Controller) PlayAll(threadID string) {
	c.mu.Lock()
	if c.active || threadID == "" {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.mu.Unlock()

	c.session.Stop()

	seq, listErr := c.lister.ListMessages(threadID)
	var msgs []models.Message
	for m := range seq {
		msgs = append(msgs, m)
	}
	if err := listErr(); err != nil {
		logger.Error("play_all_list_failed", zap.String("thread", threadID), zap.Error(err))
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		return
	}
	if len(msgs) == 0 {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.queue = msgs
	c.mu.Unlock()

	logger.Info("play_all_started", zap.String("thread", threadID), zap.Int("messages", len(msgs)))
	c.advance()
}

// advance pops the head message and plays it; the ended notification
// recurses into the next one while the run is still active.
func (c *Controller) advance() {
	c.mu.Lock()
	if !c.active || len(c.queue) == 0 {
		c.active = false
		c.queue = nil
		c.mu.Unlock()
		c.session.Stop()
		logger.Info("play_all_finished")
		return
	}
	msg := c.queue[0]
	c.queue = c.queue[1:]
	c.mu.Unlock()

	if err := c.session.Load(msg.Blob); err != nil {
		logger.Warn("play_all_skip_message", zap.String("msg", msg.ID), zap.Error(err))
		c.advance()
		return
	}
	c.session.OnEnded(func() {
		// re-check under the flag: the callback may outlive a StopAll
		if !c.Active() {
			return
		}
		c.advance()
	})
	if err := c.session.Play(0); err != nil {
		logger.Warn("play_all_skip_message", zap.String("msg", msg.ID), zap.Error(err))
		c.advance()
	}
}

// StopAll clears the active flag and stops the current playback
// immediately.
func (c *Controller) StopAll() {
	c.mu.Lock()
	c.active = false
	c.queue = nil
	c.mu.Unlock()
	c.session.Stop()
	logger.Debug("play_all_stopped")
}

// PlayOne plays a single message directly. It cancels any sequential run
// first so the chain does not silently resume on the next ended
// notification, and always stops the previous playback target.
func (c *Controller) PlayOne(msg models.Message, from float64) error {
	c.mu.Lock()
	c.active = false
	c.queue = nil
	c.mu.Unlock()

	if err := c.session.Load(msg.Blob); err != nil {
		return err
	}
	c.session.OnEnded(nil)
	return c.session.Play(from)
}

// StopCurrent is the user's stop action on a single message. It also
// clears the active flag, per the cancellation contract.
func (c *Controller) StopCurrent() {
	c.StopAll()
}
