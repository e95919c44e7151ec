// Package sampleimage accumulates per-pixel color samples, and stores them in a
// resumable on-disk format.
package sampleimage

import (
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"row-major/glint/vmath/vec3"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ChannelSize = 3

	dataLayoutVersion = 1

	// Headers are a handful of numbers; anything longer is a corrupt file.
	maxHeaderLength = 1 << 20

	// Larger images are taken to be corrupt headers rather than allocated.
	maxImageFloats = 1 << 28
)

// SampleImage holds a running sum of RGB samples and a sample count for every
// pixel, in row-major order.
type SampleImage struct {
	RowSize, ColSize int
	Sums             []float32
	Counts           []float32
}

type Sample struct {
	Sum   vec3.T
	Count float32
}

func New(rowSize, colSize int) *SampleImage {
	s := &SampleImage{}
	s.Resize(rowSize, colSize)
	return s
}

// Resize discards all samples.
func (s *SampleImage) Resize(rowSize, colSize int) {
	s.RowSize = rowSize
	s.ColSize = colSize

	s.Sums = make([]float32, rowSize*colSize*ChannelSize)
	s.Counts = make([]float32, rowSize*colSize)
}

func (s *SampleImage) RecordSample(r, c int, color vec3.T) {
	idx := r*s.ColSize + c
	s.Sums[idx*ChannelSize+0] += float32(color[0])
	s.Sums[idx*ChannelSize+1] += float32(color[1])
	s.Sums[idx*ChannelSize+2] += float32(color[2])
	s.Counts[idx] += 1
}

func (s *SampleImage) ReadSample(r, c int) Sample {
	idx := r*s.ColSize + c
	return Sample{
		Sum: vec3.T{
			float64(s.Sums[idx*ChannelSize+0]),
			float64(s.Sums[idx*ChannelSize+1]),
			float64(s.Sums[idx*ChannelSize+2]),
		},
		Count: s.Counts[idx],
	}
}

// Mean is the average of the samples recorded at (r, c), or black if there
// are none.
func (s *SampleImage) Mean(r, c int) vec3.T {
	samp := s.ReadSample(r, c)
	if samp.Count == 0 {
		return vec3.T{}
	}
	return vec3.DivVS(samp.Sum, float64(samp.Count))
}

// Pixels returns the mean of every pixel, row by row.
func (s *SampleImage) Pixels() []vec3.T {
	pixels := make([]vec3.T, 0, s.RowSize*s.ColSize)
	for r := 0; r < s.RowSize; r++ {
		for c := 0; c < s.ColSize; c++ {
			pixels = append(pixels, s.Mean(r, c))
		}
	}
	return pixels
}

func (s *SampleImage) TotalSamples() int64 {
	var total int64
	for _, count := range s.Counts {
		total += int64(count)
	}
	return total
}

// Cut copies out the rectangle [rowSrc, rowLim) x [colSrc, colLim).
func (s *SampleImage) Cut(rowSrc, rowLim, colSrc, colLim int) *SampleImage {
	dst := New(rowLim-rowSrc, colLim-colSrc)

	for r := rowSrc; r < rowLim; r++ {
		srcIdx := r*s.ColSize + colSrc
		dstIdx := (r - rowSrc) * dst.ColSize
		copy(dst.Counts[dstIdx:dstIdx+dst.ColSize], s.Counts[srcIdx:srcIdx+dst.ColSize])
		copy(dst.Sums[dstIdx*ChannelSize:(dstIdx+dst.ColSize)*ChannelSize], s.Sums[srcIdx*ChannelSize:(srcIdx+dst.ColSize)*ChannelSize])
	}

	return dst
}

// Paste overwrites the rectangle of s starting at (rowSrc, colSrc) with src.
func (s *SampleImage) Paste(src *SampleImage, rowSrc, colSrc int) {
	for r := 0; r < src.RowSize; r++ {
		srcIdx := r * src.ColSize
		dstIdx := (r+rowSrc)*s.ColSize + colSrc
		copy(s.Counts[dstIdx:dstIdx+src.ColSize], src.Counts[srcIdx:srcIdx+src.ColSize])
		copy(s.Sums[dstIdx*ChannelSize:(dstIdx+src.ColSize)*ChannelSize], src.Sums[srcIdx*ChannelSize:(srcIdx+src.ColSize)*ChannelSize])
	}
}

func headerNumber(hdr *structpb.Struct, key string) (int, error) {
	v, ok := hdr.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("header is missing %q", key)
	}
	n := v.GetNumberValue()
	if n < 0 || n > maxImageFloats || n != float64(int(n)) {
		return 0, fmt.Errorf("header field %q has bad value %v", key, n)
	}
	return int(n), nil
}

func checkDimensions(rowSize, colSize int) error {
	if rowSize <= 0 || colSize <= 0 {
		return fmt.Errorf("bad header dimensions %dx%d", rowSize, colSize)
	}
	if rowSize > maxImageFloats/ChannelSize/colSize {
		return fmt.Errorf("header dimensions %dx%d are too large", rowSize, colSize)
	}
	return nil
}

// ReadHeader reads just the header of a sample image.
func ReadHeader(in io.Reader) (*structpb.Struct, error) {
	var headerLength uint64
	if err := binary.Read(in, binary.LittleEndian, &headerLength); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}
	if headerLength > maxHeaderLength {
		return nil, fmt.Errorf("header length %d is too large", headerLength)
	}

	headerBytes := make([]byte, int(headerLength))
	if _, err := io.ReadFull(in, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header bytes: %w", err)
	}

	hdr := &structpb.Struct{}
	if err := proto.Unmarshal(headerBytes, hdr); err != nil {
		return nil, fmt.Errorf("while unmarshaling header: %w", err)
	}

	version, err := headerNumber(hdr, "data_layout_version")
	if err != nil {
		return nil, err
	}
	if version != dataLayoutVersion {
		return nil, fmt.Errorf("bad data layout version: %v", version)
	}

	return hdr, nil
}

func ReadSampleImage(in io.Reader) (*SampleImage, error) {
	im, _, err := ReadSampleImageAndHeader(in)
	return im, err
}

// ReadSampleImageAndHeader is ReadSampleImage, also returning the header it
// read.
func ReadSampleImageAndHeader(in io.Reader) (*SampleImage, *structpb.Struct, error) {
	hdr, err := ReadHeader(in)
	if err != nil {
		return nil, nil, err
	}

	rowSize, err := headerNumber(hdr, "row_size")
	if err != nil {
		return nil, nil, err
	}
	colSize, err := headerNumber(hdr, "col_size")
	if err != nil {
		return nil, nil, err
	}
	channelSize, err := headerNumber(hdr, "channel_size")
	if err != nil {
		return nil, nil, err
	}
	if channelSize != ChannelSize {
		return nil, nil, fmt.Errorf("unsupported channel size %d", channelSize)
	}

	if err := checkDimensions(rowSize, colSize); err != nil {
		return nil, nil, err
	}

	im := New(rowSize, colSize)

	zipReader, err := zlib.NewReader(in)
	if err != nil {
		return nil, nil, fmt.Errorf("while opening zip reader: %w", err)
	}
	defer zipReader.Close()

	if err := binary.Read(zipReader, binary.LittleEndian, im.Sums); err != nil {
		return nil, nil, fmt.Errorf("while reading sample sums: %w", err)
	}

	if err := binary.Read(zipReader, binary.LittleEndian, im.Counts); err != nil {
		return nil, nil, fmt.Errorf("while reading sample counts: %w", err)
	}

	return im, hdr, nil
}

func ReadSampleImageFromFile(name string) (*SampleImage, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("while opening file: %w", err)
	}
	defer f.Close()

	return ReadSampleImage(f)
}

func WriteSampleImage(im *SampleImage, w io.Writer) error {
	hdr, err := structpb.NewStruct(map[string]interface{}{
		"row_size":            float64(im.RowSize),
		"col_size":            float64(im.ColSize),
		"channel_size":        float64(ChannelSize),
		"data_layout_version": float64(dataLayoutVersion),
	})
	if err != nil {
		return fmt.Errorf("while building header: %w", err)
	}

	hdrBytes, err := proto.MarshalOptions{Deterministic: true}.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	headerLengthBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(headerLengthBytes, uint64(len(hdrBytes)))
	if _, err := w.Write(headerLengthBytes); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(hdrBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	zipWriter := zlib.NewWriter(w)

	if err := binary.Write(zipWriter, binary.LittleEndian, im.Sums); err != nil {
		return fmt.Errorf("while writing sample sums: %w", err)
	}

	if err := binary.Write(zipWriter, binary.LittleEndian, im.Counts); err != nil {
		return fmt.Errorf("while writing sample counts: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("while closing zip writer: %w", err)
	}

	return nil
}

// WriteSampleImageToFile replaces name atomically, so an interrupted write
// never clobbers an earlier image.
func WriteSampleImageToFile(im *SampleImage, name string) error {
	tmpName := name + ".tmp"
	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("while creating file: %w", err)
	}

	if err := WriteSampleImage(im, f); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("while closing file: %w", err)
	}

	if err := os.Rename(tmpName, name); err != nil {
		return fmt.Errorf("while renaming %q to %q: %w", tmpName, name, err)
	}

	return nil
}
