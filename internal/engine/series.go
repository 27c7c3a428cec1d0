package engine

import (
	"strings"
	"time"

	"github.com/dockwatch-io/dockwatch/internal/models"
	"github.com/dockwatch-io/dockwatch/internal/payload"
)

// DefaultSeriesPoints bounds a reconstructed series when the caller
// does not pick a window size.
const DefaultSeriesPoints = 30

// MetricPoint is one reconstructed time-series sample: gauge values
// extracted from a successful stats command, keyed by gauge name. A
// nil value is a gap — the agent reported the sample but this gauge
// was unparsable, and charts should show a hole, not a zero.
type MetricPoint struct {
	Time   time.Time           `json:"time"`
	Values map[string]*float64 `json:"values"`
}

// SeriesParams selects and shapes a reconstructed series.
type SeriesParams struct {
	// TargetID is the container the series is about. Samples match by
	// ID prefix: agents report full 64-char IDs while the dashboard
	// stores the short form.
	TargetID string

	// CommandType is the metric-producing command to scan, normally
	// docker.stats.
	CommandType string

	// Extract pulls named gauge values out of a matched sample. Nil
	// uses StatsValues.
	Extract func(models.StatsSample) map[string]*float64

	// MaxPoints bounds the result to the most recent N points. Zero or
	// negative uses DefaultSeriesPoints.
	MaxPoints int
}

// BuildSeries reconstructs a chronological metric series for one target
// from the historical stats commands in the window.
//
// The scan walks Success records of the command type in ascending
// CreatedAt order. A record targeted at a different container is
// skipped; untargeted (broadcast) records are scanned for the matching
// entry inside their decoded sample array. Records that fail to decode
// contribute nothing and abort nothing. The result holds at most
// MaxPoints of the most recent samples, still in ascending order.
func BuildSeries(ix *Index, p SeriesParams) []MetricPoint {
	maxPoints := p.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultSeriesPoints
	}
	extract := p.Extract
	if extract == nil {
		extract = StatsValues
	}

	var points []MetricPoint
	for _, rec := range ix.Successes(p.CommandType) {
		if target := rec.Target(); target != "" && target != p.TargetID {
			continue
		}
		samples, ok, err := payload.Decode[[]models.StatsSample](rec.OutputLog)
		if err != nil || !ok {
			continue
		}
		sample, found := matchSample(samples, p.TargetID)
		if !found {
			continue
		}
		points = append(points, MetricPoint{Time: rec.CreatedAt, Values: extract(sample)})
	}

	if len(points) > maxPoints {
		points = points[len(points)-maxPoints:]
	}
	return points
}

// StatsValues is the default gauge extractor: cpu and memory
// percentages parsed from the agent's display strings.
func StatsValues(s models.StatsSample) map[string]*float64 {
	return map[string]*float64{
		"cpu":    payload.ParsePercent(s.CPUPercent),
		"memory": payload.ParsePercent(s.MemPercent),
	}
}

// matchSample finds the entry reported for targetID. Remote IDs may be
// longer than the locally stored short ID, so the sample matches when
// its ID extends the target's.
func matchSample(samples []models.StatsSample, targetID string) (models.StatsSample, bool) {
	for _, s := range samples {
		if s.ContainerID != "" && strings.HasPrefix(s.ContainerID, targetID) {
			return s, true
		}
	}
	return models.StatsSample{}, false
}
