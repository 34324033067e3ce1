package bridge

import "github.com/isi-macroscope/acquisition-core/internal/synctrack"

// AcquisitionRunner is the subset of *orchestrator.Orchestrator HealthSource
// samples.
type AcquisitionRunner interface {
	IsRunning() bool
}

// AnalysisRunner is the subset of *analysisrun.Worker HealthSource samples.
type AnalysisRunner interface {
	IsRunning() bool
}

// HealthSource satisfies ipc.Source, sampling the acquisition and analysis
// runners' IsRunning flags and deriving a current frame rate from the
// synchronization tracker's one-second trailing window.
type HealthSource struct {
	Acquisition AcquisitionRunner
	Analysis    AnalysisRunner
	Sync        *synctrack.Tracker
}

func (h *HealthSource) AcquisitionRunning() bool { return h.Acquisition.IsRunning() }
func (h *HealthSource) AnalysisRunning() bool    { return h.Analysis.IsRunning() }

// CurrentFPS counts synchronized frame pairs accepted in the one-second
// window ending at the latest accepted pair. The window is anchored on that
// pair, not on wall-clock time, so the count keeps its last value while the
// tracker is disabled or idle; it is zero only when the tracker holds no
// entries.
func (h *HealthSource) CurrentFPS() float64 {
	return float64(len(h.Sync.Recent(1.0)))
}
