package usecase

import "context"

// MetricsSummary represents aggregated scan insights.
type MetricsSummary struct {
	TotalScans            int64   `json:"total_scans"`
	AverageFlavor         float64 `json:"average_flavor"`
	AverageAroma          float64 `json:"average_aroma"`
	AverageBody           float64 `json:"average_body"`
	AverageAcidity        float64 `json:"average_acidity"`
	AverageOverallQuality float64 `json:"average_overall_quality"`
}

// GetMetricsSummary aggregates scan metrics from persisted records.
func (uc *ScanUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.records.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	return &MetricsSummary{
		TotalScans:            aggregation.TotalScans,
		AverageFlavor:         aggregation.AverageFlavor,
		AverageAroma:          aggregation.AverageAroma,
		AverageBody:           aggregation.AverageBody,
		AverageAcidity:        aggregation.AverageAcidity,
		AverageOverallQuality: aggregation.AverageOverallQuality,
	}, nil
}
