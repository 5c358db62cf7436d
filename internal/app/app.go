// Package app wires the board together and owns its shared session
// state: the store, the repository, exactly one capture session, exactly
// one playback session, the sequential controller, and the currently
// open thread. Callers (the presentation layer) reach everything through
// an *App rather than package globals, which keeps the
// at-most-one-active invariants in one place.
package app

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"voiceboard/internal/maintenance"
	"voiceboard/pkg/audio"
	"voiceboard/pkg/boarderr"
	"voiceboard/pkg/capacity"
	"voiceboard/pkg/capture"
	"voiceboard/pkg/config"
	"voiceboard/pkg/logger"
	"voiceboard/pkg/models"
	"voiceboard/pkg/notify"
	"voiceboard/pkg/playback"
	"voiceboard/pkg/repo"
	"voiceboard/pkg/state"
	"voiceboard/pkg/store"
)

// Devices bundles the platform audio backends the app runs against.
type Devices struct {
	Capture  audio.CaptureDevice
	Playback audio.PlaybackDevice
	// CaptureTap and PlaybackTap feed the live and playback waveforms.
	// Optional.
	CaptureTap  audio.TapFunc
	PlaybackTap audio.TapFunc
}

type App struct {
	cfg config.Config

	st       *store.Store
	repo     *repo.Repository
	acct     *capacity.Accountant
	capture  *capture.Session
	session  *playback.Session
	ctl      *playback.Controller
	notifier notify.Notifier

	lock      *flock.Flock
	stopMaint context.CancelFunc

	mu          sync.Mutex
	openThread  string
	pendingBlob *models.Blob
}

// New opens the store, takes the single-instance lock on the data
// directory, and builds the session objects. Call Close when done.
func New(cfg config.Config, devs Devices, notifier notify.Notifier) (*App, error) {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	paths := state.Layout(cfg.Storage.DBPath)
	if err := paths.Ensure(); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// one process per board: the devices and the recording/playback
	// sessions cannot be shared
	lk := flock.New(paths.Lock)
	locked, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another voiceboard instance holds %s", lk.Path())
	}

	st, err := store.Open(paths.DB)
	if err != nil {
		_ = lk.Unlock()
		return nil, err
	}

	r := repo.New(st)
	acct := capacity.NewAccountant(st)
	session := playback.NewSession(devs.Playback, devs.PlaybackTap)
	ctl := playback.NewController(session, r)
	capSess := capture.NewSession(devs.Capture, capture.Options{
		CountdownTicks: cfg.Recording.CountdownSeconds,
		PlatformFamily: cfg.Recording.PlatformFamily,
		Tap:            devs.CaptureTap,
	})

	a := &App{
		cfg:      cfg,
		st:       st,
		repo:     r,
		acct:     acct,
		capture:  capSess,
		session:  session,
		ctl:      ctl,
		notifier: notifier,
		lock:     lk,
	}

	// successful mutations recompute capacity and refresh presentation;
	// a failed recompute skips the cycle and the next mutation catches up
	r.OnChange(func() {
		if _, err := acct.ComputeUsage(); err != nil {
			logger.Warn("capacity_recompute_skipped", zap.Error(err))
		}
		notifier.ListChanged()
	})

	stopMaint, err := maintenance.Start(context.Background(), st, acct, cfg.Maintenance.Schedule)
	if err != nil {
		_ = st.Close()
		_ = lk.Unlock()
		return nil, err
	}
	a.stopMaint = stopMaint
	return a, nil
}

// Close stops playback and maintenance, releases the devices, and closes
// the store last.
func (a *App) Close() error {
	a.ctl.StopAll()
	a.capture.Stop()
	if a.stopMaint != nil {
		a.stopMaint()
	}
	err := a.st.Close()
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
	return err
}

// Repo exposes the repository for read paths the presentation layer
// drives directly (listings, counts).
func (a *App) Repo() *repo.Repository { return a.repo }

// Search ranks threads by reply count, keeping those whose title
// contains filter (case-sensitive; empty ranks every thread). The error
// accessor is valid once the sequence has been iterated.
func (a *App) Search(filter string) (iter.Seq[repo.ThreadCount], func() error) {
	return a.repo.ListThreadsByReplyCount(filter)
}

// Capacity returns the current usage in bytes.
func (a *App) Capacity() (int64, error) { return a.acct.ComputeUsage() }

// OpenThread makes threadID the current thread and notifies presentation.
func (a *App) OpenThread(threadID string) (models.Thread, error) {
	th, err := a.repo.GetThread(threadID)
	if err != nil {
		return models.Thread{}, err
	}
	a.mu.Lock()
	a.openThread = threadID
	a.mu.Unlock()
	a.notifier.ThreadOpened(threadID)
	return th, nil
}

// CloseThread closes the current thread view. Sequential playback is
// stopped unconditionally.
func (a *App) CloseThread() {
	a.ctl.StopAll()
	a.mu.Lock()
	a.openThread = ""
	a.mu.Unlock()
	a.notifier.ThreadClosed()
	a.notifier.PlaybackStateChanged("stopped")
}

// OpenThreadID returns the currently open thread id, or "".
func (a *App) OpenThreadID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openThread
}

// StartThreadRecording records the opening post for a new thread. The
// finalized blob is held until SaveThread supplies the title.
func (a *App) StartThreadRecording(ctx context.Context) error {
	return a.capture.Start(ctx, func(blob models.Blob) {
		a.mu.Lock()
		a.pendingBlob = &blob
		a.mu.Unlock()
		logger.Info("thread_recording_ready", zap.Int64("bytes", blob.Size()))
	})
}

// SaveThread creates the thread from the pending opening recording.
func (a *App) SaveThread(title string) (models.Thread, error) {
	a.mu.Lock()
	blob := a.pendingBlob
	a.mu.Unlock()
	if blob == nil {
		return models.Thread{}, boarderr.Validation("no recording to save")
	}
	th, err := a.repo.CreateThread(title, *blob)
	if err != nil {
		return models.Thread{}, err
	}
	a.mu.Lock()
	a.pendingBlob = nil
	a.mu.Unlock()
	return th, nil
}

// StartReplyRecording records a reply to the currently open thread and
// persists it when the recording finalizes.
func (a *App) StartReplyRecording(ctx context.Context) error {
	threadID := a.OpenThreadID()
	if threadID == "" {
		return boarderr.Validation("no thread open")
	}
	return a.capture.Start(ctx, func(blob models.Blob) {
		if _, err := a.repo.AddReply(threadID, blob); err != nil {
			logger.Error("save_reply_failed", zap.String("thread", threadID), zap.Error(err))
		}
	})
}

// StopRecording stops an in-progress recording early. No-op when idle.
func (a *App) StopRecording() { a.capture.Stop() }

// PlayMessage plays one message directly, stopping any previous playback
// target and cancelling a sequential run.
func (a *App) PlayMessage(msg models.Message, from float64) error {
	err := a.ctl.PlayOne(msg, from)
	if err == nil {
		a.notifier.PlaybackStateChanged("playing")
	}
	return err
}

// StopPlayback is the user's stop action; it also clears the sequential
// run's active flag.
func (a *App) StopPlayback() {
	a.ctl.StopCurrent()
	a.notifier.PlaybackStateChanged("stopped")
}

// PlayAll plays the open thread's messages back to back.
func (a *App) PlayAll() {
	threadID := a.OpenThreadID()
	a.ctl.PlayAll(threadID)
	if a.ctl.Active() {
		a.notifier.PlaybackStateChanged("play_all")
	}
}

// DeleteThread deletes the currently addressed thread; closing the view
// if it was open.
func (a *App) DeleteThread(threadID string) error {
	if _, err := a.repo.DeleteThread(threadID); err != nil {
		return err
	}
	if a.OpenThreadID() == threadID {
		a.CloseThread()
	}
	return nil
}

// DeleteMessage removes one message; the repository handles the parent
// thread recompute. If the recompute removed the thread and it was open,
// the view closes.
func (a *App) DeleteMessage(messageID string) error {
	if err := a.repo.DeleteMessage(messageID); err != nil {
		return err
	}
	open := a.OpenThreadID()
	if open != "" {
		if _, err := a.repo.GetThread(open); boarderr.KindOf(err) == boarderr.KindNotFound {
			a.CloseThread()
		}
	}
	return nil
}
