// Package rendermetrics exports render throughput through OpenCensus.
package rendermetrics

import (
	"context"
	"time"

	"github.com/golang/glog"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var sceneKey = tag.MustNewKey("scene")

// Recorder records one measurement per finished chunk.  A nil *Recorder
// records nothing.
type Recorder struct {
	sceneName string

	chunkCount   *stats.Int64Measure
	sampleCount  *stats.Int64Measure
	chunkLatency *stats.Float64Measure

	chunkCountView   *view.View
	sampleCountView  *view.View
	chunkLatencyView *view.View
}

func New(sceneName string) *Recorder {
	r := &Recorder{sceneName: sceneName}

	r.chunkCount = stats.Int64("glint/chunks", "Chunks rendered", stats.UnitDimensionless)
	r.chunkCountView = &view.View{
		Name:        "glint/chunks",
		Description: "Count of image chunks that have finished rendering",
		TagKeys:     []tag.Key{sceneKey},
		Measure:     r.chunkCount,
		Aggregation: view.Count(),
	}

	r.sampleCount = stats.Int64("glint/samples", "Camera rays traced", stats.UnitDimensionless)
	r.sampleCountView = &view.View{
		Name:        "glint/samples",
		Description: "Total camera samples traced",
		TagKeys:     []tag.Key{sceneKey},
		Measure:     r.sampleCount,
		Aggregation: view.Sum(),
	}

	r.chunkLatency = stats.Float64("glint/chunk_latency", "Time to render one chunk", stats.UnitMilliseconds)
	r.chunkLatencyView = &view.View{
		Name:        "glint/chunk_latency",
		Description: "Distribution of per-chunk render times",
		TagKeys:     []tag.Key{sceneKey},
		Measure:     r.chunkLatency,
		Aggregation: view.Distribution(10, 100, 1000, 10000, 100000),
	}

	return r
}

func (r *Recorder) RegisterMetrics() error {
	return view.Register(r.chunkCountView, r.sampleCountView, r.chunkLatencyView)
}

func (r *Recorder) UnregisterMetrics() {
	view.Unregister(r.chunkCountView, r.sampleCountView, r.chunkLatencyView)
}

func (r *Recorder) RecordChunk(ctx context.Context, rowSrc, rowLim int, samples int64, elapsed time.Duration) {
	if r == nil {
		return
	}

	glog.V(2).Infof("Rendered rows [%d, %d): samples=%d elapsed=%v", rowSrc, rowLim, samples, elapsed)

	stats.RecordWithOptions(
		ctx,
		stats.WithTags(tag.Insert(sceneKey, r.sceneName)),
		stats.WithMeasurements(
			r.chunkCount.M(1),
			r.sampleCount.M(samples),
			r.chunkLatency.M(float64(elapsed)/float64(time.Millisecond)),
		))
}
