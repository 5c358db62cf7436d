package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"voiceboard/internal/app"
	"voiceboard/pkg/audio"
	"voiceboard/pkg/banner"
	"voiceboard/pkg/capacity"
	"voiceboard/pkg/config"
	"voiceboard/pkg/logger"
	"voiceboard/pkg/notify"
	"voiceboard/pkg/shutdown"
	"voiceboard/pkg/state"
	"voiceboard/pkg/telemetry"
)

// build metadata - set via ldflags during build/release
var (
	version = "dev"
)

func main() {
	_ = godotenv.Load(".env")
	flags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	flags.Apply(&cfg)

	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	// No real device backend ships in this repository; the board runs
	// against the in-memory fakes until a platform backend is attached.
	devs := app.Devices{
		Capture:  &audio.FakeCaptureDevice{},
		Playback: &audio.FakePlaybackDevice{},
	}

	a, err := app.New(cfg, devs, notify.LogNotifier{})
	if err != nil {
		shutdown.Abort("failed to start", err, state.Layout(cfg.Storage.DBPath).Crash)
	}

	usage, _ := a.Capacity()
	banner.Print(cfg.Storage.DBPath, capacity.FormatUsage(usage), version)
	logger.Info("voiceboard_started",
		zap.String("db", cfg.Storage.DBPath),
		zap.String("version", version))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	logger.Info("shutting_down", zap.String("signal", s.String()))

	telemetry.DumpToLog()
	if err := a.Close(); err != nil {
		logger.Error("close_failed", zap.Error(err))
	}
}
