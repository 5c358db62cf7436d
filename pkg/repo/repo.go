// Package repo is the thread/message repository: the domain façade over
// the store that owns ordering, cascade, and aggregate rules.
package repo

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voiceboard/pkg/boarderr"
	"voiceboard/pkg/logger"
	"voiceboard/pkg/models"
	"voiceboard/pkg/store"
	"voiceboard/pkg/telemetry"
)

// Repository provides create/read/delete/aggregate operations with the
// board's ordering and cascading rules. All multi-record mutations are
// atomic with respect to concurrent readers.
type Repository struct {
	st *store.Store

	// Now supplies millisecond timestamps; replaceable in tests.
	Now func() int64

	mu       sync.Mutex
	onChange func()
}

func New(st *store.Store) *Repository {
	return &Repository{
		st:  st,
		Now: func() int64 { return time.Now().UnixMilli() },
	}
}

// OnChange registers a listener invoked after every successful mutation.
// The top-level app uses it to recompute capacity and refresh views.
func (r *Repository) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Repository) changed() {
	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// CreateThread inserts a thread together with its opening message; both
// carry the same timestamp and both writes commit or neither does.
func (r *Repository) CreateThread(title string, blob models.Blob) (models.Thread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Thread{}, boarderr.Validation("thread title must not be empty")
	}
	now := r.Now()
	th := models.Thread{ID: uuid.NewString(), Title: title, LastUpdatedAt: now}
	msg := models.Message{ID: uuid.NewString(), Thread: th.ID, CreatedAt: now, Blob: blob}
	if err := r.st.CreateThreadWithMessage(th, msg); err != nil {
		return models.Thread{}, err
	}
	telemetry.ThreadsCreated.Inc()
	telemetry.MessagesSaved.Inc()
	r.changed()
	return th, nil
}

// AddReply appends a message to an existing thread and bumps the thread's
// LastUpdatedAt to the reply's CreatedAt, atomically.
func (r *Repository) AddReply(threadID string, blob models.Blob) (models.Message, error) {
	prev, err := r.st.GetThread(threadID)
	if err != nil {
		return models.Message{}, err
	}
	now := r.Now()
	msg := models.Message{ID: uuid.NewString(), Thread: threadID, CreatedAt: now, Blob: blob}
	next := prev
	next.LastUpdatedAt = now
	if err := r.st.AppendMessage(prev, next, msg); err != nil {
		return models.Message{}, err
	}
	telemetry.MessagesSaved.Inc()
	r.changed()
	return msg, nil
}

// GetThread loads one thread's metadata.
func (r *Repository) GetThread(threadID string) (models.Thread, error) {
	return r.st.GetThread(threadID)
}

// DeleteThread removes a thread and all of its messages atomically.
// Deleting an absent thread is a successful no-op (retry-safe); the
// return value reports whether anything was removed.
func (r *Repository) DeleteThread(threadID string) (bool, error) {
	n, err := r.st.CountMessages(threadID)
	if err != nil {
		return false, err
	}
	deleted, err := r.st.DeleteThreadCascade(threadID)
	if err != nil {
		return false, err
	}
	if deleted {
		telemetry.ThreadsDeleted.Inc()
		telemetry.MessagesDeleted.Add(float64(n))
		r.changed()
	}
	return deleted, nil
}

// DeleteMessage removes one message, then runs the follow-up recompute on
// the parent thread once the delete is durable: the thread is removed if
// no messages remain, otherwise its LastUpdatedAt becomes the max
// CreatedAt over the remaining messages.
func (r *Repository) DeleteMessage(messageID string) error {
	threadID, err := r.st.DeleteMessage(messageID)
	if err != nil {
		return err
	}
	telemetry.MessagesDeleted.Inc()
	if err := r.recomputeThread(threadID); err != nil {
		return err
	}
	r.changed()
	return nil
}

func (r *Repository) recomputeThread(threadID string) error {
	msgs, err := r.st.ThreadMessages(threadID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		deleted, err := r.st.DeleteThreadCascade(threadID)
		if err != nil {
			return err
		}
		if deleted {
			telemetry.ThreadsDeleted.Inc()
			logger.Info("thread_removed_empty", zap.String("thread", threadID))
		}
		return nil
	}
	prev, err := r.st.GetThread(threadID)
	if err != nil {
		// thread vanished under a concurrent delete; nothing to recompute
		if boarderr.KindOf(err) == boarderr.KindNotFound {
			return nil
		}
		return err
	}
	latest := msgs[0].CreatedAt
	for _, m := range msgs[1:] {
		if m.CreatedAt > latest {
			latest = m.CreatedAt
		}
	}
	if latest == prev.LastUpdatedAt {
		return nil
	}
	next := prev
	next.LastUpdatedAt = latest
	return r.st.UpdateThreadMeta(prev, next)
}

// CountMessages returns a thread's message count.
func (r *Repository) CountMessages(threadID string) (int, error) {
	return r.st.CountMessages(threadID)
}
