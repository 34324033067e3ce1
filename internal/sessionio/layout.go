package sessionio

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout names the files of a direction's three-file record within a
// session directory.
type Layout struct {
	Dir       string
	Direction string
}

func (l Layout) CameraPath() string   { return filepath.Join(l.Dir, l.Direction+"_camera.h5") }
func (l Layout) StimulusPath() string { return filepath.Join(l.Dir, l.Direction+"_stimulus.h5") }
func (l Layout) EventsPath() string   { return filepath.Join(l.Dir, l.Direction+"_events.json") }

// MetadataPath is the session-level metadata.json path.
func MetadataPath(sessionDir string) string { return filepath.Join(sessionDir, "metadata.json") }

// AnalysisResultsPath is the session-level analysis output path under
// "analysis/".
func AnalysisResultsPath(sessionDir string) string {
	return filepath.Join(sessionDir, "analysis", "analysis_results.h5")
}

// ValidateSession opens metadata.json and, for each listed direction,
// verifies the three per-direction files exist and their frame/timestamp
// counts agree — the load-and-validate step of the analysis pipeline.
func ValidateSession(sessionDir string) (Metadata, error) {
	meta, err := ReadMetadata(MetadataPath(sessionDir))
	if err != nil {
		return Metadata{}, err
	}

	for _, dir := range meta.Directions {
		l := Layout{Dir: sessionDir, Direction: dir}
		for _, p := range []string{l.CameraPath(), l.StimulusPath(), l.EventsPath()} {
			if _, err := os.Stat(p); err != nil {
				return Metadata{}, fmt.Errorf("sessionio: direction %s missing file %q: %w", dir, p, err)
			}
		}

		cam, err := ReadCameraFile(l.CameraPath())
		if err != nil {
			return Metadata{}, err
		}
		if len(cam.Frames) != len(cam.TimestampsUs) {
			return Metadata{}, fmt.Errorf("sessionio: direction %s: %d frames but %d timestamps", dir, len(cam.Frames), len(cam.TimestampsUs))
		}

		stim, err := ReadStimulusFile(l.StimulusPath())
		if err != nil {
			return Metadata{}, err
		}
		if len(stim.AnglesDeg) != len(cam.Frames) {
			return Metadata{}, fmt.Errorf("sessionio: direction %s: %d angles but %d frames", dir, len(stim.AnglesDeg), len(cam.Frames))
		}

		events, err := ReadEvents(l.EventsPath())
		if err != nil {
			return Metadata{}, err
		}
		if len(events) != len(cam.Frames) {
			return Metadata{}, fmt.Errorf("sessionio: direction %s: %d events but %d frames", dir, len(events), len(cam.Frames))
		}
	}

	return meta, nil
}
