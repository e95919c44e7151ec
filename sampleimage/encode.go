package sampleimage

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"row-major/glint/vmath/vec3"
)

// Quantize maps a linear channel value in [0, 1) onto [0, 255].
func Quantize(x float64) uint8 {
	if math.IsNaN(x) {
		return 0
	}
	return uint8(256 * math.Max(0.0, math.Min(0.999, x)))
}

func checkDims(width, height int, pixels []vec3.T) error {
	if width < 0 || height < 0 || len(pixels) != width*height {
		return fmt.Errorf("have %d pixels for a %dx%d image", len(pixels), width, height)
	}
	return nil
}

// EncodePPM writes pixels (row-major, top row first) as an ASCII P3 pixmap.
func EncodePPM(w io.Writer, width, height int, pixels []vec3.T) error {
	if err := checkDims(width, height, pixels); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P3\n%d %d\n255\n", width, height)
	for _, p := range pixels {
		fmt.Fprintf(bw, "%d %d %d\n", Quantize(p[0]), Quantize(p[1]), Quantize(p[2]))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("while writing ppm: %w", err)
	}
	return nil
}

func EncodePNG(w io.Writer, width, height int, pixels []vec3.T) error {
	if err := checkDims(width, height, pixels); err != nil {
		return err
	}

	im := image.NewRGBA(image.Rect(0, 0, width, height))
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			p := pixels[r*width+c]
			im.SetRGBA(c, r, color.RGBA{R: Quantize(p[0]), G: Quantize(p[1]), B: Quantize(p[2]), A: 255})
		}
	}

	if err := png.Encode(w, im); err != nil {
		return fmt.Errorf("while encoding png: %w", err)
	}
	return nil
}

// ExportFile writes the means of im to name, choosing the format from the
// extension (.ppm or .png).
func ExportFile(im *SampleImage, name string) error {
	var encode func(io.Writer, int, int, []vec3.T) error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ppm":
		encode = EncodePPM
	case ".png":
		encode = EncodePNG
	default:
		return fmt.Errorf("unknown image format for %q; want .ppm or .png", name)
	}

	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("while creating image file: %w", err)
	}

	if err := encode(f, im.ColSize, im.RowSize, im.Pixels()); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("while closing image file: %w", err)
	}
	return nil
}
