// glint-tool is a utility program for inspecting sample dbs, checkpoints and
// scene files.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"

	"row-major/glint/bvh"
	"row-major/glint/checkpoint"
	"row-major/glint/sampleimage"
	"row-major/glint/sceneconfig"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/prototext"
)

var cmdRoot = &cobra.Command{
	Use: "glint-tool",
}

var cmdInspect = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Print the header and sample statistics of a sample db",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("while opening sample db: %w", err)
		}
		defer f.Close()

		im, hdr, err := sampleimage.ReadSampleImageAndHeader(f)
		if err != nil {
			return fmt.Errorf("while reading sample db: %w", err)
		}
		fmt.Println(prototext.Format(hdr))

		minCount, maxCount := math.Inf(1), math.Inf(-1)
		for _, c := range im.Counts {
			minCount = math.Min(minCount, float64(c))
			maxCount = math.Max(maxCount, float64(c))
		}
		pixels := im.RowSize * im.ColSize
		fmt.Printf("pixels: %d\n", pixels)
		fmt.Printf("total samples: %d\n", im.TotalSamples())
		if pixels > 0 {
			fmt.Printf("samples per pixel: min %v, max %v, mean %.2f\n", minCount, maxCount, float64(im.TotalSamples())/float64(pixels))
		}
		return nil
	},
}

var cmdExport = &cobra.Command{
	Use:   "export FILE OUT",
	Short: "Write the mean image of a sample db as .ppm or .png",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		im, err := sampleimage.ReadSampleImageFromFile(args[0])
		if err != nil {
			return err
		}
		if err := sampleimage.ExportFile(im, args[1]); err != nil {
			return fmt.Errorf("while exporting image: %w", err)
		}
		glog.Infof("Wrote %dx%d image to %s", im.ColSize, im.RowSize, args[1])
		return nil
	},
}

var cmdCheckpoints = &cobra.Command{
	Use:   "checkpoints DIR",
	Short: "List the chunks saved in a renderer checkpoint directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := checkpoint.OpenExisting(args[0])
		if err != nil {
			return fmt.Errorf("while opening checkpoint store: %w", err)
		}
		defer store.Close()

		meta := store.Meta()
		fmt.Printf("image: %dx%d, %d samples per pixel, %d rows per chunk\n", meta.Cols, meta.Rows, meta.TargetSubsamples, meta.ChunkRows)

		rows, err := store.Chunks()
		if err != nil {
			return err
		}
		for _, rowSrc := range rows {
			rowLim := rowSrc + meta.ChunkRows
			if rowLim > meta.Rows {
				rowLim = meta.Rows
			}
			fmt.Printf("rows [%d, %d)\n", rowSrc, rowLim)
		}

		total := 0
		if meta.ChunkRows > 0 {
			total = (meta.Rows + meta.ChunkRows - 1) / meta.ChunkRows
		}
		fmt.Printf("chunks: %d of %d\n", len(rows), total)
		return nil
	},
}

var validateSeed int64

var cmdValidate = &cobra.Command{
	Use:   "validate SCENE",
	Short: "Load a scene file and build its BVH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := sceneconfig.Load(args[0])
		if err != nil {
			return err
		}

		s, _, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("while building scene: %w", err)
		}

		if err := s.Optimize(context.Background(), rand.New(rand.NewSource(validateSeed))); err != nil {
			return err
		}
		stats := s.World.(*bvh.Node).Stats()

		settings := cfg.RenderSettings()
		cols, rows := cfg.ImageSize(0)
		fmt.Printf("objects: %d\n", len(s.Objects.Elements))
		fmt.Printf("materials: %d\n", len(s.Materials))
		fmt.Printf("medium: %v\n", s.Medium != nil)
		fmt.Printf("bvh: nodes=%d leaves=%d depth=%d\n", stats.Nodes, stats.Leaves, stats.Depth)
		fmt.Printf("image: %dx%d, %d samples per pixel, max depth %d\n", cols, rows, settings.SamplesPerPixel, settings.MaxDepth)
		return nil
	},
}

func init() {
	cmdValidate.Flags().Int64Var(&validateSeed, "seed", 1, "Seed for the BVH build")
}

func main() {
	glog.CopyStandardLogTo("INFO")

	// Expose glog's flags (-v, -logtostderr) alongside ours.
	cmdRoot.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmdRoot.AddCommand(cmdInspect, cmdExport, cmdValidate, cmdCheckpoints)

	if err := cmdRoot.Execute(); err != nil {
		os.Exit(1)
	}
}
