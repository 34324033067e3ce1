package ipc

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"

	"github.com/isi-macroscope/acquisition-core/internal/logging"
)

// Source reports the live state HealthPulse samples each tick.
type Source interface {
	AcquisitionRunning() bool
	AnalysisRunning() bool
	CurrentFPS() float64
}

// HealthPulse periodically publishes a health record onto the sync
// channel, generalizing the teacher's HTTP /health endpoint into a
// publish-only model with no local listener.
type HealthPulse struct {
	bus      *EventBus
	source   Source
	interval time.Duration
	limiter  *rate.Limiter
	logger   *logging.Logger
}

// NewHealthPulse creates a HealthPulse that Run publishes from once per
// interval. Every publication, from Run or from a manual PublishNow call by
// a handler (e.g. the "ping" command), takes a token from a limiter holding
// at most two tokens and refilling one per half interval, so manual calls
// cannot saturate the output stream.
func NewHealthPulse(bus *EventBus, source Source, interval time.Duration, logger *logging.Logger) *HealthPulse {
	if logger == nil {
		logger = logging.NewLogger("ipc-health")
	}
	return &HealthPulse{
		bus:      bus,
		source:   source,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval/2), 2),
		logger:   logger,
	}
}

// Run publishes a health record every interval until ctx is cancelled.
func (h *HealthPulse) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.PublishNow()
		}
	}
}

// PublishNow samples CPU/memory via gopsutil and publishes immediately,
// subject to the rate limiter.
func (h *HealthPulse) PublishNow() {
	if !h.limiter.Allow() {
		return
	}

	cpuPercent := 0.0
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPercent = pcts[0]
	} else if err != nil {
		h.logger.WithError(err).Warn("Failed to sample CPU usage")
	}

	memPercent := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	} else {
		h.logger.WithError(err).Warn("Failed to sample memory usage")
	}

	h.bus.Publish("health", map[string]interface{}{
		"cpu_percent":         cpuPercent,
		"memory_percent":      memPercent,
		"acquisition_running": h.source.AcquisitionRunning(),
		"analysis_running":    h.source.AnalysisRunning(),
		"fps":                 h.source.CurrentFPS(),
	})
}
