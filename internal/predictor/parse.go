package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// requiredFields are the four scores every predictor version must emit.
// Observed versions disagree on casing ("flavor" vs "Flavor"), so lookups are
// case-insensitive rather than normalized to one convention.
var requiredFields = [4]string{"flavor", "aroma", "body", "acidity"}

// Parse validates the predictor's raw standard output and derives the overall
// quality. Any missing or non-numeric score is a hard failure; it is never
// defaulted to zero.
func Parse(raw string) (*Result, error) {
	object := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &object); err != nil {
		return nil, &ValidationError{Kind: KindMalformedOutput, Message: err.Error(), Raw: raw}
	}

	if message, ok := errorField(object); ok {
		return nil, &ValidationError{Kind: KindPredictorReportedError, Message: message, Raw: raw}
	}

	scores := make(map[string]float64, len(requiredFields))
	for _, field := range requiredFields {
		value, err := numericField(object, field)
		if err != nil {
			return nil, &ValidationError{Kind: KindMissingField, Field: field, Message: err.Error(), Raw: raw}
		}
		scores[field] = value
	}

	result := &Result{
		Flavor:  scores["flavor"],
		Aroma:   scores["aroma"],
		Body:    scores["body"],
		Acidity: scores["acidity"],
	}
	result.OverallQuality = round2((result.Flavor + result.Aroma + result.Body + result.Acidity) / 4)
	return result, nil
}

// errorField reports an explicit error announced inside structurally valid
// output, which some predictor versions pair with a nonzero exit.
func errorField(object map[string]any) (string, bool) {
	for key, value := range object {
		if !strings.EqualFold(key, "error") {
			continue
		}
		if message, ok := value.(string); ok {
			return message, true
		}
		return fmt.Sprintf("%v", value), true
	}
	return "", false
}

func numericField(object map[string]any, field string) (float64, error) {
	for key, value := range object {
		if !strings.EqualFold(key, field) {
			continue
		}
		number, ok := value.(float64)
		if !ok {
			return 0, fmt.Errorf("field %q is not numeric", key)
		}
		return number, nil
	}
	return 0, fmt.Errorf("field %q not present", field)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
