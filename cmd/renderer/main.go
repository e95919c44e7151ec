// renderer path-traces a scene file into a sample db, and optionally exports
// the finished image.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"time"

	"row-major/glint/checkpoint"
	"row-major/glint/rendermetrics"
	"row-major/glint/sampleimage"
	"row-major/glint/scene"
	"row-major/glint/sceneconfig"

	"github.com/golang/glog"
	"golang.org/x/term"
	"golang.org/x/time/rate"
)

var (
	sceneFile  = flag.String("scene", "", "Scene description (YAML)")
	outputFile = flag.String("output-file", "output.samples", "Output sample db")
	imageFile  = flag.String("image-file", "", "If set, also export the mean image here (.ppm or .png)")
	outputCols = flag.Int("output-cols", 0, "Output image columns; rows follow from the camera aspect ratio.  Zero uses the scene's image_width.")

	renderTargetSubsamples = flag.Int("render-target-subsamples", 0, "Number of subsamples to collect from each pixel.  Zero uses the scene's samples_per_pixel.")
	renderMaxDepth         = flag.Int("render-max-depth", 0, "Maximum number of bounces to consider.  Zero uses the scene's max_depth.")

	chunkRows = flag.Int("chunk-rows", scene.DefaultChunkRows, "Rows per unit of work")
	workers   = flag.Int("workers", 0, "Chunks to render at once; zero means one per CPU")
	seed      = flag.Int64("seed", 1, "Seed for the sampler and the BVH build")
	noBVH     = flag.Bool("no-bvh", false, "Test every object against every ray instead of building a BVH")

	resume        = flag.Bool("resume", false, "Should we re-open the output file to add more samples?")
	checkpointDir = flag.String("checkpoint-dir", "", "If set, finished chunks are saved here and reused after a crash")

	cpuprofile = flag.String("cpu-profile", "", "write cpu profile to `file`")
	memprofile = flag.String("mem-profile", "", "write memory profile to `file`")
)

func main() {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			glog.Exitf("could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			glog.Exitf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	if err := do(context.Background()); err != nil {
		pprof.StopCPUProfile()
		glog.Exitf("Error: %v", err)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			glog.Exitf("could not create memory profile: %v", err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			glog.Exitf("could not write memory profile: %v", err)
		}
	}
}

func do(ctx context.Context) error {
	if *sceneFile == "" {
		return fmt.Errorf("-scene is required")
	}

	cfg, err := sceneconfig.Load(*sceneFile)
	if err != nil {
		return err
	}
	settings := cfg.RenderSettings()
	cols, rows := cfg.ImageSize(*outputCols)

	options := &scene.RenderOptions{
		MaxDepth:         settings.MaxDepth,
		TargetSubsamples: settings.SamplesPerPixel,
		ChunkRows:        *chunkRows,
		Workers:          *workers,
		Seed:             *seed,
	}
	if *renderMaxDepth > 0 {
		options.MaxDepth = *renderMaxDepth
	}
	if *renderTargetSubsamples > 0 {
		options.TargetSubsamples = *renderTargetSubsamples
	}
	if options.ChunkRows <= 0 {
		options.ChunkRows = scene.DefaultChunkRows
	}

	var sampleDB *sampleimage.SampleImage
	if *resume {
		sampleDB, err = sampleimage.ReadSampleImageFromFile(*outputFile)
		if err != nil {
			return fmt.Errorf("resumption requested, but encountered error loading existing file: %w", err)
		}

		if sampleDB.RowSize != rows {
			return fmt.Errorf("resumption requested, but the existing sample image doesn't have the right number of rows (got %d, want %d)", sampleDB.RowSize, rows)
		}

		if sampleDB.ColSize != cols {
			return fmt.Errorf("resumption requested, but the existing sample image doesn't have the right number of columns (got %d, want %d)", sampleDB.ColSize, cols)
		}
	} else {
		// Check that the output file doesn't exist, to avoid blowing away hours
		// of render time.
		if _, err := os.Stat(*outputFile); err == nil {
			return fmt.Errorf("resumption not requested, but output file exists")
		}

		sampleDB = sampleimage.New(rows, cols)
	}

	theScene, cam, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("while building scene: %w", err)
	}
	options.Camera = cam

	if !*noBVH {
		if err := theScene.Optimize(ctx, rand.New(rand.NewSource(*seed))); err != nil {
			return err
		}
	}

	if *checkpointDir != "" {
		store, err := checkpoint.Open(*checkpointDir, checkpoint.Meta{
			Rows:             rows,
			Cols:             cols,
			TargetSubsamples: options.TargetSubsamples,
			ChunkRows:        options.ChunkRows,
		})
		if err != nil {
			return fmt.Errorf("while opening checkpoint store: %w", err)
		}
		defer store.Close()
		options.Checkpoint = store
	}

	metrics := rendermetrics.New(*sceneFile)
	if err := metrics.RegisterMetrics(); err != nil {
		return fmt.Errorf("while registering metrics: %w", err)
	}
	defer metrics.UnregisterMetrics()
	options.Metrics = metrics

	glog.Infof("Rendering %s at %dx%d, %d samples per pixel, max depth %d", *sceneFile, cols, rows, options.TargetSubsamples, options.MaxDepth)
	start := time.Now()

	var progress scene.ProgressFunction
	if term.IsTerminal(int(os.Stderr.Fd())) {
		limiter := rate.NewLimiter(rate.Limit(4), 1)
		progress = func(cur, tot int) {
			if cur == tot || limiter.Allow() {
				fmt.Fprintf(os.Stderr, "\r%d/%d %d%%", cur, tot, 100*cur/tot)
			}
		}
	}

	if err := scene.RenderScene(ctx, theScene, options, sampleDB, progress); err != nil {
		return fmt.Errorf("while rendering: %w", err)
	}
	if progress != nil {
		fmt.Fprintf(os.Stderr, "\n")
	}
	glog.Infof("Rendered in %v", time.Since(start))

	if err := sampleimage.WriteSampleImageToFile(sampleDB, *outputFile); err != nil {
		return fmt.Errorf("while writing sample image: %w", err)
	}

	if *imageFile != "" {
		if err := sampleimage.ExportFile(sampleDB, *imageFile); err != nil {
			return fmt.Errorf("while exporting image: %w", err)
		}
	}

	return nil
}
