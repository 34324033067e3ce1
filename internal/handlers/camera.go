package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/isi-macroscope/acquisition-core/internal/camera"
	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
)

// CameraLifecycle starts and stops the camera driver's acquisition loop,
// independent of whether a recording session is active.
type CameraLifecycle struct {
	mu      sync.Mutex
	driver  *camera.Driver
	cancel  context.CancelFunc
	running bool
}

// NewCameraLifecycle creates a CameraLifecycle wrapping driver.
func NewCameraLifecycle(driver *camera.Driver) *CameraLifecycle {
	return &CameraLifecycle{driver: driver}
}

// Start launches the driver's Run loop on its own goroutine, returning an
// error if it is already running.
func (c *CameraLifecycle) Start(logger *logging.Logger) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("handlers: camera acquisition already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true
	go func() {
		if err := c.driver.Run(ctx); err != nil {
			logger.WithError(err).Error("camera driver loop exited with error")
		}
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()
	return nil
}

// Stop requests the driver loop to exit.
func (c *CameraLifecycle) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.driver.Stop()
	if c.cancel != nil {
		c.cancel()
	}
}

// IsRunning reports whether the driver loop is active.
func (c *CameraLifecycle) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// CameraDeps collects the components the camera command family delegates
// to.
type CameraDeps struct {
	ConfigManager *config.ConfigManager
	Lifecycle     *CameraLifecycle
}

// RegisterCamera registers detect_cameras, get_camera_capabilities,
// start_camera_acquisition, and stop_camera_acquisition.
func RegisterCamera(d *ipc.Dispatcher, deps CameraDeps, logger *logging.Logger) {
	logger = ensureLogger(logger)
	register(d, "detect_cameras", wrap(logger, "detect_cameras", func(raw json.RawMessage) (interface{}, error) {
		paths, err := filepath.Glob("/dev/video*")
		if err != nil {
			return nil, fmt.Errorf("handlers: device enumeration failed: %w", err)
		}
		return map[string]interface{}{"devices": paths}, nil
	}))

	register(d, "get_camera_capabilities", wrap(logger, "get_camera_capabilities", func(raw json.RawMessage) (interface{}, error) {
		cam := deps.ConfigManager.GetConfig().Camera
		return map[string]interface{}{
			"selected_camera": cam.SelectedCamera,
			"width_px":        cam.WidthPx,
			"height_px":       cam.HeightPx,
			"fps":             cam.FPS,
		}, nil
	}))

	register(d, "start_camera_acquisition", wrap(logger, "start_camera_acquisition", func(raw json.RawMessage) (interface{}, error) {
		if err := deps.Lifecycle.Start(logger); err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "started"}, nil
	}))

	register(d, "stop_camera_acquisition", wrap(logger, "stop_camera_acquisition", func(raw json.RawMessage) (interface{}, error) {
		deps.Lifecycle.Stop()
		return map[string]interface{}{"status": "stopped"}, nil
	}))
}
