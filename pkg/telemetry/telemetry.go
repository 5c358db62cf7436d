// Package telemetry keeps low-overhead in-process metrics for the board.
// There is no network exposition (the system is local-only); the registry
// is gatherable by callers and its totals are dumped to the log on
// shutdown.
package telemetry

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"voiceboard/pkg/logger"
)

var (
	registry = prometheus.NewRegistry()

	ThreadsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voiceboard_threads_created_total",
		Help: "Threads created since process start.",
	})
	ThreadsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voiceboard_threads_deleted_total",
		Help: "Threads deleted, including cascade deletions.",
	})
	MessagesSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voiceboard_messages_saved_total",
		Help: "Messages persisted (opening posts and replies).",
	})
	MessagesDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voiceboard_messages_deleted_total",
		Help: "Messages removed, including cascade deletions.",
	})
	PlaybackStarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voiceboard_playback_starts_total",
		Help: "Playback sessions started.",
	})
	PlaybackRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voiceboard_playback_retries_total",
		Help: "Resume-and-retry attempts after rejected playback.",
	})
	CapacityBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "voiceboard_capacity_bytes",
		Help: "Total bytes consumed by stored recordings.",
	})
)

func init() {
	registry.MustRegister(
		ThreadsCreated, ThreadsDeleted,
		MessagesSaved, MessagesDeleted,
		PlaybackStarts, PlaybackRetries,
		CapacityBytes,
	)
}

// Registry returns the board's metric registry.
func Registry() *prometheus.Registry { return registry }

// DumpToLog writes every metric's current value to the log. Called on
// shutdown so a local run leaves a usage trace behind.
func DumpToLog() {
	mfs, err := registry.Gather()
	if err != nil {
		logger.Warn("telemetry_gather_failed", zap.Error(err))
		return
	}
	sort.Slice(mfs, func(i, j int) bool { return mfs[i].GetName() < mfs[j].GetName() })
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var v float64
			switch {
			case m.GetCounter() != nil:
				v = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				v = m.GetGauge().GetValue()
			default:
				continue
			}
			name := strings.TrimPrefix(mf.GetName(), "voiceboard_")
			logger.Info("metric", zap.String("name", name), zap.Float64("value", v))
		}
	}
}
