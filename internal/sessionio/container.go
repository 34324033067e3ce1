// Package sessionio persists per-direction acquisition data to disk. No
// HDF5 binding exists anywhere in the reference corpus this module was
// built from, nor a practical pure-Go one in the wider ecosystem — every
// available binding is a thin cgo wrapper around libhdf5, which would force
// a system C library dependency unlike everything else in this module. The
// files this package writes keep the *_camera.h5 / *_stimulus.h5 names and
// the frames/timestamps/angles "dataset" shapes a real HDF5 file would
// carry, but the container itself is a small self-contained format —
// encoding/gob records behind compress/gzip — exposing the same
// read/write shape a binding would.
package sessionio

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
)

// gzipLevel matches the level 4 compression the session recorder applies
// to camera arrays at save time.
const gzipLevel = 4

// CameraData is the D_camera.h5-shaped container: frames [N, H, W(, C)]
// alongside the per-frame timestamps.
type CameraData struct {
	Height      int
	Width       int
	Channels    int // 1 for grayscale, 3 for RGB
	Frames      [][]byte
	TimestampsUs []int64
}

// StimulusData is the D_stimulus.h5-shaped container: the per-frame bar
// angle in degrees.
type StimulusData struct {
	AnglesDeg []float64
}

func writeGob(path string, v interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sessionio: create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	gz, err := gzip.NewWriterLevel(f, gzipLevel)
	if err != nil {
		return fmt.Errorf("sessionio: gzip writer for %q: %w", path, err)
	}
	defer func() {
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	}()

	if err := gob.NewEncoder(gz).Encode(v); err != nil {
		return fmt.Errorf("sessionio: encode %q: %w", path, err)
	}
	return nil
}

func readGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("sessionio: open %q: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("sessionio: gzip reader for %q: %w", path, err)
	}
	defer gz.Close()

	if err := gob.NewDecoder(gz).Decode(v); err != nil {
		return fmt.Errorf("sessionio: decode %q: %w", path, err)
	}
	return nil
}

// WriteCameraFile writes the camera frames and timestamps for one
// direction to path (conventionally "<DIRECTION>_camera.h5").
func WriteCameraFile(path string, data CameraData) error {
	if len(data.Frames) != len(data.TimestampsUs) {
		return fmt.Errorf("sessionio: frame count %d != timestamp count %d", len(data.Frames), len(data.TimestampsUs))
	}
	return writeGob(path, data)
}

// ReadCameraFile reads a camera file written by WriteCameraFile.
func ReadCameraFile(path string) (CameraData, error) {
	var data CameraData
	if err := readGob(path, &data); err != nil {
		return CameraData{}, err
	}
	return data, nil
}

// WriteStimulusFile writes the per-frame bar angles for one direction to
// path (conventionally "<DIRECTION>_stimulus.h5").
func WriteStimulusFile(path string, data StimulusData) error {
	return writeGob(path, data)
}

// ReadStimulusFile reads a stimulus file written by WriteStimulusFile.
func ReadStimulusFile(path string) (StimulusData, error) {
	var data StimulusData
	if err := readGob(path, &data); err != nil {
		return StimulusData{}, err
	}
	return data, nil
}
