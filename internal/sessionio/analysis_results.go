package sessionio

// AnalysisResults is the analysis_results.h5-shaped container spec section
// 3 describes: five primary [H,W] float32 maps plus per-direction phase
// and magnitude maps.
type AnalysisResults struct {
	Height, Width int

	AzimuthMap   []float32
	ElevationMap []float32
	SignMap      []float32
	AreaMap      []float32
	BoundaryMap  []float32
	Anatomical   []float32 // absent when len==0

	PhaseMaps     map[string][]float32
	MagnitudeMaps map[string][]float32

	NumAreas int
}

// WriteAnalysisResults writes results to path (conventionally
// "analysis/analysis_results.h5").
func WriteAnalysisResults(path string, results AnalysisResults) error {
	return writeGob(path, results)
}

// ReadAnalysisResults reads a file written by WriteAnalysisResults.
func ReadAnalysisResults(path string) (AnalysisResults, error) {
	var r AnalysisResults
	if err := readGob(path, &r); err != nil {
		return AnalysisResults{}, err
	}
	return r, nil
}
