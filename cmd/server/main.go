// Package main implements the acquisition core's entry point.
//
// This service runs as a single child process talking newline-delimited
// JSON over stdin/stdout to a UI process: command dispatch and broadcast
// events share one stream, health pulses ride the same channel, and three
// shared-memory planes carry frame payloads too large for the JSON stream
// itself.
//
// Architecture follows the layered approach:
//   - Foundation: Configuration and logging
//   - Core Services: shared-memory planes, stimulus generator, camera driver
//   - Orchestration: acquisition sweep orchestrator, analysis worker
//   - API: IPC command dispatch, event bus, health pulse
//
// Startup order: config/logging -> shared-memory planes -> stimulus/sync
// tracker/state -> IPC transport -> camera -> orchestration -> mode
// controllers -> health pulse -> command registration. Shutdown stops the
// orchestration layer and then the camera, in reverse order.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/isi-macroscope/acquisition-core/internal/acqstate"
	"github.com/isi-macroscope/acquisition-core/internal/analysisrun"
	"github.com/isi-macroscope/acquisition-core/internal/bridge"
	"github.com/isi-macroscope/acquisition-core/internal/camera"
	"github.com/isi-macroscope/acquisition-core/internal/common"
	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ctstim"
	"github.com/isi-macroscope/acquisition-core/internal/handlers"
	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
	"github.com/isi-macroscope/acquisition-core/internal/modes"
	"github.com/isi-macroscope/acquisition-core/internal/orchestrator"
	"github.com/isi-macroscope/acquisition-core/internal/shmplane"
	"github.com/isi-macroscope/acquisition-core/internal/stimulus"
	"github.com/isi-macroscope/acquisition-core/internal/synctrack"
)

// stoppableFunc adapts a plain shutdown step to common.Stoppable so the
// composition root's reverse-order shutdown can drive heterogeneous
// services (orchestrator, analysis worker, camera driver) through one
// timeout-bounded interface.
type stoppableFunc func(ctx context.Context) error

func (f stoppableFunc) Stop(ctx context.Context) error { return f(ctx) }

func main() {
	// Layer 1: Foundation - load and validate configuration.
	configManager := config.NewConfigManager(nil)
	if err := configManager.LoadConfig("config/default.yaml"); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := configManager.GetConfig()

	if err := logging.ConfigureGlobalLogging(&logging.LoggingConfig{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		MaxFileSize:    cfg.Logging.MaxFileSize,
		BackupCount:    cfg.Logging.BackupCount,
		ConsoleEnabled: cfg.Logging.ConsoleEnabled,
	}); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	logger := logging.GetLogger("acquisition-core")
	logger.Info("Starting acquisition core")

	sessionsBaseDir := os.Getenv("ISI_MACROSCOPE_SESSIONS_DIR")
	if sessionsBaseDir == "" {
		sessionsBaseDir = "sessions"
	}
	if err := os.MkdirAll(sessionsBaseDir, 0755); err != nil {
		logger.WithError(err).Fatal("Failed to create sessions directory")
	}

	// Layer 2: Core Services - shared-memory frame planes.
	stimulusPlane, err := shmplane.New(shmplane.KindStimulus)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open stimulus shared-memory plane")
	}
	cameraPlane, err := shmplane.New(shmplane.KindCamera)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open camera shared-memory plane")
	}
	analysisPlane, err := shmplane.New(shmplane.KindAnalysis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open analysis shared-memory plane")
	}
	_ = analysisPlane // reserved for a future streamed-layer publication path

	// Stimulus generation, shared by the preview controller, the black
	// screen controller, and the camera-triggered controller.
	stimMgr := stimulus.NewManager(configManager)
	ctstimCtrl := ctstim.New(stimMgr)
	tracker := synctrack.New()
	tracker.Enable()

	state := acqstate.New()

	// IPC transport: dispatcher reads commands from stdin, writes responses
	// and events to stdout; the event bus shares the dispatcher's writer so
	// both interleave safely on one stream.
	dispatcher := ipc.NewDispatcher(os.Stdin, os.Stdout, logging.GetLogger("ipc-dispatcher"))
	eventBus := ipc.NewEventBus(dispatcher, logging.GetLogger("ipc-eventbus"))

	// Camera driver: runs independently of recording state, started and
	// stopped by the start_camera_acquisition/stop_camera_acquisition
	// commands, publishing every captured frame through FramePublisher.
	source, err := camera.OpenDevice(cfg.Camera)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open camera device")
	}
	framePublisher := bridge.NewFramePublisher(cameraPlane, stimulusPlane, eventBus)
	driver := camera.NewDriver(source, ctstimCtrl, tracker, framePublisher, logging.GetLogger("camera-driver"))
	cameraLifecycle := handlers.NewCameraLifecycle(driver)

	// Orchestration: acquisition sweep and analysis pipeline.
	sessionPathHolder := &bridge.SessionPathHolder{}
	recorderFactory := bridge.NewRecorderFactory(driver, driver, sessionPathHolder, configManager)
	blackScreen := modes.NewBlackScreenController(stimMgr, stimulusPlane)
	sweeper := orchestrator.New(ctstimCtrl, state, blackScreen, eventBus, recorderFactory, logging.GetLogger("orchestrator"))
	analysisWorker := analysisrun.New(eventBus, logging.GetLogger("analysisrun"))

	recordCtrl := modes.NewRecordController(state, sweeper)
	previewCtrl := modes.NewPreviewController(state, stimMgr, stimulusPlane)
	playbackCtrl := modes.NewPlaybackController(state)

	healthSource := &bridge.HealthSource{Acquisition: sweeper, Analysis: analysisWorker, Sync: tracker}
	healthInterval := time.Duration(cfg.Server.HealthIntervalSec * float64(time.Second))
	if healthInterval <= 0 {
		healthInterval = 2 * time.Second
	}
	healthPulse := ipc.NewHealthPulse(eventBus, healthSource, healthInterval, logging.GetLogger("ipc-health"))

	// Command table registration: one command family per file, all sharing
	// the components constructed above.
	handlers.RegisterAll(dispatcher, handlers.Deps{
		Acquisition: handlers.AcquisitionDeps{
			ConfigManager:   configManager,
			State:           state,
			Record:          recordCtrl,
			Preview:         previewCtrl,
			Playback:        playbackCtrl,
			Runner:          sweeper,
			SessionPath:     sessionPathHolder,
			SessionsBaseDir: sessionsBaseDir,
		},
		Camera: handlers.CameraDeps{
			ConfigManager: configManager,
			Lifecycle:     cameraLifecycle,
		},
		Stimulus: handlers.StimulusDeps{
			ConfigManager: configManager,
			StimMgr:       stimMgr,
			Display:       blackScreen,
		},
		Playback: handlers.PlaybackDeps{
			Playback:        playbackCtrl,
			SessionsBaseDir: sessionsBaseDir,
		},
		Analysis: handlers.AnalysisDeps{
			ConfigManager: configManager,
			Worker:        analysisWorker,
		},
		System: handlers.SystemDeps{
			Driver:      driver,
			LatestFrame: cameraPlane,
			HealthPulse: healthPulse,
		},
	}, logging.GetLogger("handlers"))

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		healthPulse.Run(ctx)
	}()

	logger.Info("Acquisition core ready, entering command dispatch loop")

	dispatchErr := make(chan error, 1)
	go func() {
		dispatchErr <- dispatcher.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithFields(logging.Fields{"signal": sig.String()}).Info("Received shutdown signal")
	case err := <-dispatchErr:
		if err != nil {
			logger.WithError(err).Warn("Command dispatch loop exited")
		} else {
			logger.Info("Command stream closed (EOF), shutting down")
		}
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSec * float64(time.Second))
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	logger.Info("Starting graceful shutdown")
	cancel()

	// Reverse construction order: orchestration before core services.
	shutdownSteps := []common.Stoppable{
		stoppableFunc(func(context.Context) error {
			if sweeper.IsRunning() {
				sweeper.StopAcquisition()
			}
			return nil
		}),
		stoppableFunc(func(context.Context) error {
			if analysisWorker.IsRunning() {
				analysisWorker.StopAnalysis()
			}
			return nil
		}),
		stoppableFunc(func(context.Context) error {
			cameraLifecycle.Stop()
			return driver.Close()
		}),
	}
	for _, step := range shutdownSteps {
		if err := common.StopWithTimeout(step, shutdownTimeout); err != nil {
			logger.WithError(err).Error("Error during shutdown step")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All services stopped cleanly")
	case <-time.After(shutdownTimeout):
		logger.Error("Shutdown timeout exceeded, forcing exit")
		os.Exit(1)
	}

	logger.Info("Acquisition core stopped")
}
