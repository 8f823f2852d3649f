// Package predictor invokes the external coffee-bean scoring process and
// turns its output into structured prediction results.
package predictor

import "context"

// Result holds the four attribute scores produced by the predictor plus the
// derived overall quality (mean of the four, rounded to two decimals).
type Result struct {
	Flavor         float64 `json:"flavor"`
	Aroma          float64 `json:"aroma"`
	Body           float64 `json:"body"`
	Acidity        float64 `json:"acidity"`
	OverallQuality float64 `json:"overall_quality"`
}

// Invoker runs the external predictor against an image on disk and returns
// its raw standard output. The submission flow parses that output separately
// so tests can exercise either half in isolation.
type Invoker interface {
	Invoke(ctx context.Context, imagePath string) (string, error)
}
