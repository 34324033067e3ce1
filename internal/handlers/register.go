package handlers

import (
	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
)

// Deps collects every command family's dependencies, passed to RegisterAll
// from the composition root.
type Deps struct {
	Acquisition AcquisitionDeps
	Camera      CameraDeps
	Stimulus    StimulusDeps
	Playback    PlaybackDeps
	Analysis    AnalysisDeps
	System      SystemDeps
}

// RegisterAll registers every command family's handlers against d. Command
// names are unique across families; a duplicate anywhere is a startup
// error surfaced by the underlying Register call.
func RegisterAll(d *ipc.Dispatcher, deps Deps, logger *logging.Logger) {
	RegisterAcquisition(d, deps.Acquisition, logger)
	RegisterCamera(d, deps.Camera, logger)
	RegisterStimulus(d, deps.Stimulus, logger)
	RegisterPlayback(d, deps.Playback, logger)
	RegisterAnalysis(d, deps.Analysis, logger)
	RegisterSystem(d, deps.System, logger)
}
