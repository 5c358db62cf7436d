package repo

import (
	"iter"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"voiceboard/pkg/logger"
	"voiceboard/pkg/models"
)

// ThreadCount pairs a thread with its message count for ranked listings.
type ThreadCount struct {
	Thread models.Thread
	Count  int
}

// oneShot wraps a fetch into a lazy, finite, one-shot sequence: the scan
// runs when iteration starts, and a second range over the same sequence
// yields nothing. Callers re-list by calling the repository again. The
// second return reports the fetch failure once iteration has run, so an
// aborted scan is distinguishable from an empty board.
func oneShot[T any](fetch func() ([]T, error), op string) (iter.Seq[T], func() error) {
	var consumed atomic.Bool
	var fetchErr error
	seq := func(yield func(T) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		items, err := fetch()
		if err != nil {
			fetchErr = err
			logger.Error("list_failed", zap.String("op", op), zap.Error(err))
			return
		}
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}
	return seq, func() error { return fetchErr }
}

// ListThreadsByRecency returns threads descending by LastUpdatedAt.
func (r *Repository) ListThreadsByRecency() (iter.Seq[models.Thread], func() error) {
	return oneShot(r.st.ThreadsByRecency, "threads_by_recency")
}

// ListMessages returns a thread's messages ascending by CreatedAt. The
// position of a message in this sequence defines its reply number (1..n).
func (r *Repository) ListMessages(threadID string) (iter.Seq[models.Message], func() error) {
	return oneShot(func() ([]models.Message, error) {
		return r.st.ThreadMessages(threadID)
	}, "messages")
}

// ListThreadsByReplyCount keeps the threads whose title contains filter
// (case-sensitive substring; empty keeps all) and ranks them descending
// by message count. Threads and counts are read from one store snapshot,
// so a concurrently deleted thread never shows up with a zero count. The
// sort is stable, so threads with equal counts keep the store's scan
// order; no further tie order is guaranteed.
func (r *Repository) ListThreadsByReplyCount(filter string) (iter.Seq[ThreadCount], func() error) {
	return oneShot(func() ([]ThreadCount, error) {
		rows, err := r.st.AllThreadsWithCounts()
		if err != nil {
			return nil, err
		}
		out := make([]ThreadCount, 0, len(rows))
		for _, row := range rows {
			if filter != "" && !strings.Contains(row.Thread.Title, filter) {
				continue
			}
			out = append(out, ThreadCount{Thread: row.Thread, Count: row.Count})
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
		return out, nil
	}, "threads_by_reply_count")
}
