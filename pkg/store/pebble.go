// Package store persists threads and messages in an embedded Pebble
// database. Multi-record mutations go through one indexed batch committed
// with Sync, so concurrent readers observe either none or all of a
// mutation's writes. Readers that must see a consistent view iterate a
// snapshot.
//
// Key layout:
//
//	thread:<threadID>:meta                      -> Thread JSON
//	thread:<threadID>:msg:<created%020d-seq%06d> -> Message JSON
//	msg:<messageID>                             -> message key (locator)
//	idx:updated:<updated%020d>-<threadID>       -> threadID (recency index)
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"voiceboard/pkg/boarderr"
	"voiceboard/pkg/logger"
	"voiceboard/pkg/models"
)

// Store wraps one opened Pebble database.
type Store struct {
	db   *pebble.DB
	path string
	// seq disambiguates message keys that share a millisecond timestamp
	// and preserves insertion order among them.
	seq uint64
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", zap.String("path", path))
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return nil, boarderr.Transaction("open pebble", err)
	}
	logger.Info("pebble_opened", zap.String("path", path))
	return &Store{db: db, path: path}, nil
}

// Close closes the database. Safe to call on an already-closed store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and usable.
func (s *Store) Ready() bool { return s != nil && s.db != nil }

func threadMetaKey(threadID string) []byte {
	return []byte("thread:" + threadID + ":meta")
}

func msgPrefix(threadID string) []byte {
	return []byte("thread:" + threadID + ":msg:")
}

func (s *Store) msgKey(threadID string, createdAt int64) []byte {
	n := atomic.AddUint64(&s.seq, 1)
	return []byte(fmt.Sprintf("thread:%s:msg:%020d-%06d", threadID, createdAt, n))
}

func locatorKey(messageID string) []byte {
	return []byte("msg:" + messageID)
}

func updatedIdxKey(updatedAt int64, threadID string) []byte {
	return []byte(fmt.Sprintf("idx:updated:%020d-%s", updatedAt, threadID))
}

func (s *Store) notOpen() error {
	if s == nil || s.db == nil {
		return boarderr.Transaction("store", fmt.Errorf("pebble not opened; call store.Open first"))
	}
	return nil
}

// CreateThreadWithMessage inserts a thread together with its opening
// message in one atomic batch. A thread is never persisted without at
// least one message.
func (s *Store) CreateThreadWithMessage(th models.Thread, msg models.Message) error {
	if err := s.notOpen(); err != nil {
		return err
	}
	tb, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	mb, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	mk := s.msgKey(th.ID, msg.CreatedAt)

	b := s.db.NewIndexedBatch()
	defer b.Close()
	_ = b.Set(threadMetaKey(th.ID), tb, nil)
	_ = b.Set(updatedIdxKey(th.LastUpdatedAt, th.ID), []byte(th.ID), nil)
	_ = b.Set(mk, mb, nil)
	_ = b.Set(locatorKey(msg.ID), mk, nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("create_thread_commit_failed", zap.String("thread", th.ID), zap.Error(err))
		return boarderr.Transaction("create thread", err)
	}
	logger.Info("thread_created", zap.String("thread", th.ID), zap.String("msg", msg.ID))
	return nil
}

// AppendMessage inserts a reply and rewrites the parent thread metadata
// (with its bumped LastUpdatedAt) in one atomic batch. The caller supplies
// both the prior and the new thread state so the recency index entry can
// be moved inside the same batch.
func (s *Store) AppendMessage(prev, next models.Thread, msg models.Message) error {
	if err := s.notOpen(); err != nil {
		return err
	}
	tb, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	mb, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	mk := s.msgKey(next.ID, msg.CreatedAt)

	b := s.db.NewIndexedBatch()
	defer b.Close()
	_ = b.Set(mk, mb, nil)
	_ = b.Set(locatorKey(msg.ID), mk, nil)
	_ = b.Set(threadMetaKey(next.ID), tb, nil)
	if prev.LastUpdatedAt != next.LastUpdatedAt {
		_ = b.Delete(updatedIdxKey(prev.LastUpdatedAt, prev.ID), nil)
	}
	_ = b.Set(updatedIdxKey(next.LastUpdatedAt, next.ID), []byte(next.ID), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("append_message_commit_failed", zap.String("thread", next.ID), zap.Error(err))
		return boarderr.Transaction("append message", err)
	}
	logger.Info("message_saved", zap.String("thread", next.ID), zap.String("msg", msg.ID))
	return nil
}

// UpdateThreadMeta rewrites thread metadata and moves its recency index
// entry atomically.
func (s *Store) UpdateThreadMeta(prev, next models.Thread) error {
	if err := s.notOpen(); err != nil {
		return err
	}
	tb, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	b := s.db.NewIndexedBatch()
	defer b.Close()
	_ = b.Set(threadMetaKey(next.ID), tb, nil)
	if prev.LastUpdatedAt != next.LastUpdatedAt {
		_ = b.Delete(updatedIdxKey(prev.LastUpdatedAt, prev.ID), nil)
	}
	_ = b.Set(updatedIdxKey(next.LastUpdatedAt, next.ID), []byte(next.ID), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		return boarderr.Transaction("update thread", err)
	}
	return nil
}

// GetThread loads thread metadata. Returns boarderr.ErrNotFound when the
// thread is absent.
func (s *Store) GetThread(threadID string) (models.Thread, error) {
	var th models.Thread
	if err := s.notOpen(); err != nil {
		return th, err
	}
	v, closer, err := s.db.Get(threadMetaKey(threadID))
	if err == pebble.ErrNotFound {
		return th, boarderr.NotFound("thread %s", threadID)
	}
	if err != nil {
		return th, boarderr.Transaction("get thread", err)
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &th); err != nil {
		return th, fmt.Errorf("invalid thread JSON: %w", err)
	}
	return th, nil
}

// DeleteThreadCascade removes the thread metadata, its recency index
// entry, all of its messages, and their locators in one atomic batch.
// The locator scan runs over a snapshot and the messages are removed by
// range deletion, so a reply committed while the batch is built cannot
// survive the cascade. Reports whether the thread existed; an absent
// thread is not an error.
func (s *Store) DeleteThreadCascade(threadID string) (bool, error) {
	if err := s.notOpen(); err != nil {
		return false, err
	}
	snap := s.db.NewSnapshot()
	defer snap.Close()

	v, closer, err := snap.Get(threadMetaKey(threadID))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, boarderr.Transaction("delete thread", err)
	}
	var th models.Thread
	uerr := json.Unmarshal(v, &th)
	closer.Close()
	if uerr != nil {
		return false, fmt.Errorf("invalid thread JSON: %w", uerr)
	}

	b := s.db.NewIndexedBatch()
	defer b.Close()
	_ = b.Delete(threadMetaKey(threadID), nil)
	_ = b.Delete(updatedIdxKey(th.LastUpdatedAt, threadID), nil)

	prefix := msgPrefix(threadID)
	upper := []byte("thread:" + threadID + ":msg;") // ';' is ':'+1
	_ = b.DeleteRange(prefix, upper, nil)

	iter, err := snap.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return false, boarderr.Transaction("delete thread scan", err)
	}
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err == nil && m.ID != "" {
			_ = b.Delete(locatorKey(m.ID), nil)
		}
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return false, boarderr.Transaction("delete thread scan", err)
	}
	_ = iter.Close()

	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("delete_thread_commit_failed", zap.String("thread", threadID), zap.Error(err))
		return false, boarderr.Transaction("delete thread", err)
	}
	logger.Info("thread_deleted", zap.String("thread", threadID))
	return true, nil
}

// DeleteMessage removes one message and its locator atomically, returning
// the owning thread id so the caller can run the follow-up recompute.
// Returns boarderr.ErrNotFound when the message is absent.
func (s *Store) DeleteMessage(messageID string) (string, error) {
	if err := s.notOpen(); err != nil {
		return "", err
	}
	v, closer, err := s.db.Get(locatorKey(messageID))
	if err == pebble.ErrNotFound {
		return "", boarderr.NotFound("message %s", messageID)
	}
	if err != nil {
		return "", boarderr.Transaction("locate message", err)
	}
	mk := append([]byte(nil), v...)
	closer.Close()

	threadID := threadIDFromMsgKey(mk)

	b := s.db.NewIndexedBatch()
	defer b.Close()
	_ = b.Delete(mk, nil)
	_ = b.Delete(locatorKey(messageID), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("delete_message_commit_failed", zap.String("msg", messageID), zap.Error(err))
		return "", boarderr.Transaction("delete message", err)
	}
	logger.Info("message_deleted", zap.String("msg", messageID), zap.String("thread", threadID))
	return threadID, nil
}

// threadIDFromMsgKey extracts the thread id out of a message key of the
// form thread:<id>:msg:<suffix>. Thread ids contain no colons.
func threadIDFromMsgKey(key []byte) string {
	parts := bytes.SplitN(key, []byte(":"), 3)
	if len(parts) < 3 {
		return ""
	}
	return string(parts[1])
}

// ThreadMessages returns all messages of a thread in key order, which is
// ascending CreatedAt (ties keep insertion order via the seq suffix). The
// scan runs over a snapshot so a concurrent cascade delete is observed
// either fully or not at all.
func (s *Store) ThreadMessages(threadID string) ([]models.Message, error) {
	if err := s.notOpen(); err != nil {
		return nil, err
	}
	snap := s.db.NewSnapshot()
	defer snap.Close()
	return scanMessages(snap, threadID)
}

type iterable interface {
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func scanMessages(r iterable, threadID string) ([]models.Message, error) {
	prefix := msgPrefix(threadID)
	iter, err := r.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, boarderr.Transaction("messages scan", err)
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("invalid_message_json", zap.ByteString("key", iter.Key()), zap.Error(err))
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, boarderr.Transaction("messages scan", err)
	}
	return out, nil
}

// CountMessages counts a thread's messages without decoding them.
func (s *Store) CountMessages(threadID string) (int, error) {
	if err := s.notOpen(); err != nil {
		return 0, err
	}
	prefix := msgPrefix(threadID)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, boarderr.Transaction("count messages", err)
	}
	defer iter.Close()
	n := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		n++
	}
	return n, iter.Error()
}

// ThreadsByRecency returns threads descending by LastUpdatedAt, walking
// the recency index backwards over a snapshot.
func (s *Store) ThreadsByRecency() ([]models.Thread, error) {
	if err := s.notOpen(); err != nil {
		return nil, err
	}
	snap := s.db.NewSnapshot()
	defer snap.Close()

	prefix := []byte("idx:updated:")
	upper := []byte("idx:updated;") // ';' is ':'+1
	iter, err := snap.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, boarderr.Transaction("recency scan", err)
	}
	defer iter.Close()

	var out []models.Thread
	for iter.Last(); iter.Valid(); iter.Prev() {
		threadID := string(iter.Value())
		v, closer, gerr := snap.Get(threadMetaKey(threadID))
		if gerr != nil {
			continue
		}
		var th models.Thread
		if json.Unmarshal(v, &th) == nil {
			out = append(out, th)
		}
		closer.Close()
	}
	return out, iter.Error()
}

// ThreadMessageCount pairs thread metadata with its message count.
type ThreadMessageCount struct {
	Thread models.Thread
	Count  int
}

// AllThreadsWithCounts returns every thread's metadata together with its
// message count in key (id) order. Both come from the same snapshot, so
// a concurrent cascade delete can never produce a thread whose count
// reads zero.
func (s *Store) AllThreadsWithCounts() ([]ThreadMessageCount, error) {
	if err := s.notOpen(); err != nil {
		return nil, err
	}
	snap := s.db.NewSnapshot()
	defer snap.Close()

	prefix := []byte("thread:")
	iter, err := snap.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, boarderr.Transaction("threads scan", err)
	}
	defer iter.Close()
	var out []ThreadMessageCount
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		switch {
		case bytes.HasSuffix(key, []byte(":meta")):
			var th models.Thread
			if err := json.Unmarshal(iter.Value(), &th); err != nil {
				logger.Warn("invalid_thread_json", zap.ByteString("key", key), zap.Error(err))
				continue
			}
			out = append(out, ThreadMessageCount{Thread: th})
		case bytes.Contains(key, []byte(":msg:")):
			// a thread's meta key sorts before its message keys, so the
			// owner is always the entry appended last
			id := threadIDFromMsgKey(key)
			if n := len(out); n > 0 && out[n-1].Thread.ID == id {
				out[n-1].Count++
			}
		}
	}
	return out, iter.Error()
}

// SumBlobSizes totals the byte length of every stored message blob.
func (s *Store) SumBlobSizes() (int64, error) {
	if err := s.notOpen(); err != nil {
		return 0, err
	}
	snap := s.db.NewSnapshot()
	defer snap.Close()

	prefix := []byte("thread:")
	iter, err := snap.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, boarderr.Transaction("capacity scan", err)
	}
	defer iter.Close()
	var total int64
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.Contains(iter.Key(), []byte(":msg:")) {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		total += m.Blob.Size()
	}
	return total, iter.Error()
}
