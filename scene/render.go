package scene

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"row-major/glint/camera"
	"row-major/glint/rendermetrics"
	"row-major/glint/sampleimage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const DefaultChunkRows = 16

// Checkpointer persists finished chunks, so that an interrupted render can
// pick up where it left off.
type Checkpointer interface {
	// Load returns the stored chunk covering rows [rowSrc, rowLim), if any.
	Load(rowSrc, rowLim int) (*sampleimage.SampleImage, bool, error)
	Store(rowSrc int, chunk *sampleimage.SampleImage) error
}

type ChunkWorker struct {
	sampleDB         *sampleimage.SampleImage
	rng              *rand.Rand
	progressFunction func(int)

	maxDepth      int
	targetSamples int

	// These are the dimensions of the overall image, not just the chunk.
	imgRows int
	imgCols int

	rowSrc int
	rowLim int

	scene  *Scene
	camera camera.Camera
}

// Render tops up every pixel of the chunk to the target sample count, and
// returns the number of samples it took.
func (w *ChunkWorker) Render() int64 {
	var samplesCollected int64
	for cr := w.rowSrc; cr < w.rowLim; cr++ {
		r := cr - w.rowSrc
		for c := 0; c < w.imgCols; c++ {
			samp := w.sampleDB.ReadSample(r, c)
			if int(samp.Count) >= w.targetSamples {
				continue
			}
			samplesToAdd := w.targetSamples - int(samp.Count)

			for cs := 0; cs < samplesToAdd; cs++ {
				curQuery := w.camera.ImageToRay(cr, w.imgRows, c, w.imgCols, w.rng)
				w.sampleDB.RecordSample(r, c, w.scene.Trace(curQuery, w.maxDepth, w.rng))
			}
			samplesCollected += int64(samplesToAdd)
		}

		w.progressFunction(w.imgCols)
	}
	return samplesCollected
}

type RenderOptions struct {
	MaxDepth         int
	TargetSubsamples int

	// ChunkRows is the height of each unit of work.  Zero means
	// DefaultChunkRows.
	ChunkRows int

	// Workers bounds the number of chunks rendered at once.  Zero means one
	// per CPU.
	Workers int

	// Seed makes renders repeatable.  Each chunk draws from its own generator,
	// seeded from Seed, its position, and the samples it already holds.
	Seed int64

	Camera camera.Camera

	// Optional.
	Checkpoint Checkpointer
	Metrics    *rendermetrics.Recorder
}

// ProgressFunction receives the number of pixels finished so far, and the
// number in the image.
type ProgressFunction func(int, int)

// RenderScene adds samples to sampleDB until every pixel holds at least
// options.TargetSubsamples.  Pixels of a resumed image that already have
// samples only receive the difference.
func RenderScene(ctx context.Context, scene *Scene, options *RenderOptions, sampleDB *sampleimage.SampleImage, progressFunction ProgressFunction) (err error) {
	tracer := otel.Tracer("row-major/glint/scene")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "RenderScene")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if options.Camera == nil {
		return fmt.Errorf("no camera configured")
	}
	if options.TargetSubsamples < 0 {
		return fmt.Errorf("bad target subsamples %d", options.TargetSubsamples)
	}

	chunkRows := options.ChunkRows
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}
	workers := options.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	rows, cols := sampleDB.RowSize, sampleDB.ColSize
	span.SetAttributes(
		attribute.Int("rows", rows),
		attribute.Int("cols", cols),
		attribute.Int("target_subsamples", options.TargetSubsamples),
		attribute.Int("chunk_rows", chunkRows),
	)

	totalPixels := rows * cols
	curProgress := 0

	// progressMutex locks both curProgress and sampleDB.
	progressMutex := sync.Mutex{}

	// Use errgroup and semaphore to limit concurrency.
	eg, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(workers))

	for rowSrc := 0; rowSrc < rows; rowSrc += chunkRows {
		rowSrc := rowSrc
		rowLim := rowSrc + chunkRows
		if rowLim > rows {
			rowLim = rows
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// A failed chunk cancels ctx; report its error rather than ours.
			if waitErr := eg.Wait(); waitErr != nil {
				return waitErr
			}
			return fmt.Errorf("while acquiring concurrency limiter semaphore: %w", err)
		}

		eg.Go(func() error {
			defer sem.Release(1)
			return renderChunk(ctx, scene, options, sampleDB, &progressMutex, rowSrc, rowLim, func(pixels int) {
				progressMutex.Lock()
				defer progressMutex.Unlock()
				curProgress += pixels
				if progressFunction != nil {
					progressFunction(curProgress, totalPixels)
				}
			})
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	return nil
}

func renderChunk(ctx context.Context, scene *Scene, options *RenderOptions, sampleDB *sampleimage.SampleImage, sampleDBMutex *sync.Mutex, rowSrc, rowLim int, progress func(int)) error {
	start := time.Now()

	sampleDBMutex.Lock()
	chunk := sampleDB.Cut(rowSrc, rowLim, 0, sampleDB.ColSize)
	imgRows, imgCols := sampleDB.RowSize, sampleDB.ColSize
	sampleDBMutex.Unlock()

	if options.Checkpoint != nil {
		stored, ok, err := options.Checkpoint.Load(rowSrc, rowLim)
		if err != nil {
			return fmt.Errorf("while loading checkpoint for rows [%d, %d): %w", rowSrc, rowLim, err)
		}
		if ok && stored.RowSize == chunk.RowSize && stored.ColSize == chunk.ColSize && stored.TotalSamples() >= chunk.TotalSamples() {
			chunk = stored
		}
	}

	worker := &ChunkWorker{
		sampleDB:         chunk,
		rng:              rand.New(rand.NewSource(options.Seed + int64(rowSrc)*1000003 + chunk.TotalSamples())),
		progressFunction: progress,
		maxDepth:         options.MaxDepth,
		targetSamples:    options.TargetSubsamples,
		imgRows:          imgRows,
		imgCols:          imgCols,
		rowSrc:           rowSrc,
		rowLim:           rowLim,
		scene:            scene,
		camera:           options.Camera,
	}
	samples := worker.Render()

	if options.Checkpoint != nil && samples > 0 {
		if err := options.Checkpoint.Store(rowSrc, chunk); err != nil {
			return fmt.Errorf("while storing checkpoint for rows [%d, %d): %w", rowSrc, rowLim, err)
		}
	}

	sampleDBMutex.Lock()
	sampleDB.Paste(chunk, rowSrc, 0)
	sampleDBMutex.Unlock()

	options.Metrics.RecordChunk(ctx, rowSrc, rowLim, samples, time.Since(start))
	return nil
}
