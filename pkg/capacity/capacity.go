// Package capacity reports aggregate storage usage: the exact sum of all
// stored recording blob sizes.
package capacity

import (
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"voiceboard/pkg/logger"
	"voiceboard/pkg/store"
	"voiceboard/pkg/telemetry"
)

// Accountant computes aggregate storage usage by scanning message blob
// sizes. Read-only; its only side effect is refreshing the capacity
// gauge.
type Accountant struct {
	st *store.Store
}

func NewAccountant(st *store.Store) *Accountant {
	return &Accountant{st: st}
}

// ComputeUsage sums every message's blob byte length. Returns 0 when the
// store is empty or not yet opened.
func (a *Accountant) ComputeUsage() (int64, error) {
	if a == nil || !a.st.Ready() {
		return 0, nil
	}
	total, err := a.st.SumBlobSizes()
	if err != nil {
		return 0, err
	}
	telemetry.CapacityBytes.Set(float64(total))
	logger.Debug("capacity_computed", zap.Int64("bytes", total))
	return total, nil
}

// FormatUsage renders a byte total for display.
func FormatUsage(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.Bytes(uint64(bytes))
}
