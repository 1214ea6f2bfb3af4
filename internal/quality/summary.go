// file: internal/quality/summary.go
// version: 1.0.0
// guid: 29988bff-8286-4fa4-8bae-6b7b7b4f19a4

package quality

import "gonum.org/v1/gonum/stat"

// Stats summarise the measured files of a collection.
type Stats struct {
	Files               int           `json:"files" yaml:"files"`
	AverageLoudness     float64       `json:"average_loudness" yaml:"average_loudness"`
	AverageDynamicRange float64       `json:"average_dynamic_range" yaml:"average_dynamic_range"`
	AverageScore        float64       `json:"average_score" yaml:"average_score"`
	Clipped             int           `json:"clipped" yaml:"clipped"`
	StreamingReady      int           `json:"streaming_ready" yaml:"streaming_ready"`
	Labels              map[Label]int `json:"labels" yaml:"labels"`
}

// Summarize aggregates a set of metrics. An empty set yields zero averages.
func Summarize(metrics []Metrics) Stats {
	s := Stats{Files: len(metrics), Labels: make(map[Label]int)}
	if len(metrics) == 0 {
		return s
	}
	lufs := make([]float64, len(metrics))
	dr := make([]float64, len(metrics))
	scores := make([]float64, len(metrics))
	for i, m := range metrics {
		score, lbl := Score(m)
		lufs[i], dr[i], scores[i] = m.IntegratedLoudness, m.DynamicRange, float64(score)
		s.Labels[lbl]++
		if clipped(m) {
			s.Clipped++
		}
	}
	s.StreamingReady = s.Labels[LabelStreamingReady]
	s.AverageLoudness = stat.Mean(lufs, nil)
	s.AverageDynamicRange = stat.Mean(dr, nil)
	s.AverageScore = stat.Mean(scores, nil)
	return s
}
