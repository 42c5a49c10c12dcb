// Package tiffcodec decodes TIFF via golang.org/x/image/tiff and encodes
// a minimal uncompressed baseline TIFF: the x/image module ships a
// decoder but no encoder, so the write path here is hand-rolled (see
// DESIGN.md for why no pack library could serve this one concern).
package tiffcodec

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/tiff"

	"github.com/dasch-swiss/sipi-go/internal/imgcodec"
	"github.com/dasch-swiss/sipi-go/internal/imgops"
)

func init() {
	imgcodec.Register(Codec{})
}

type Codec struct{}

func (Codec) Name() string { return "tif" }

func (Codec) Probe(header []byte) bool {
	if len(header) < 4 {
		return false
	}
	return bytes.Equal(header[:4], []byte{'I', 'I', 42, 0}) ||
		bytes.Equal(header[:4], []byte{'M', 'M', 0, 42})
}

func (Codec) Levels(io.ReaderAt, int64) (int, error) { return 1, nil }

func (Codec) LevelSize(r io.ReaderAt, size int64, _ int) (int, int, error) {
	cfg, err := tiff.DecodeConfig(io.NewSectionReader(r, 0, size))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (c Codec) DecodeRegionAtLevel(r io.ReaderAt, size int64, _ int) (imgops.Buffer, error) {
	sr := io.NewSectionReader(r, 0, size)
	img, err := tiff.Decode(sr)
	if err != nil {
		return imgops.Buffer{}, err
	}
	return imgops.Buffer{Pix: img, OriginalFormat: "tiff"}, nil
}

// tag IDs used by the baseline writer below.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometricInter = 262
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
)

// Encode writes an uncompressed baseline TIFF: one strip, RGB or
// grayscale photometric interpretation depending on the buffer's color
// model, 8 bits per sample. This covers the round-trip contract the
// Renderer needs (decode-transform-re-encode) without attempting to
// replicate libtiff's compression schemes.
func (Codec) Encode(w io.Writer, buf imgops.Buffer, _ int) error {
	img := buf.Pix
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	_, isGray := img.(*image.Gray)

	samplesPerPixel := 3
	photometric := 2 // RGB
	if isGray {
		samplesPerPixel = 1
		photometric = 1 // BlackIsZero
	}

	pixels := make([]byte, 0, width*height*samplesPerPixel)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if isGray {
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				pixels = append(pixels, g.Y)
			} else {
				r, g, b, _ := img.At(x, y).RGBA()
				pixels = append(pixels, byte(r>>8), byte(g>>8), byte(b>>8))
			}
		}
	}

	return writeBaselineTIFF(w, width, height, samplesPerPixel, photometric, pixels)
}

type ifdEntry struct {
	tag, typ uint16
	count    uint32
	value    uint32
}

func writeBaselineTIFF(w io.Writer, width, height, samplesPerPixel, photometric int, pixels []byte) error {
	const headerSize = 8
	bitsPerSampleOffset := uint32(0) // filled in below when samplesPerPixel > 1

	entries := []ifdEntry{
		{tagImageWidth, 4, 1, uint32(width)},
		{tagImageLength, 4, 1, uint32(height)},
		{tagBitsPerSample, 3, uint32(samplesPerPixel), 8},
		{tagCompression, 3, 1, 1},
		{tagPhotometricInter, 3, 1, uint32(photometric)},
		{tagStripOffsets, 4, 1, 0}, // patched below
		{tagSamplesPerPixel, 3, 1, uint32(samplesPerPixel)},
		{tagRowsPerStrip, 4, 1, uint32(height)},
		{tagStripByteCounts, 4, 1, uint32(len(pixels))},
	}

	ifdEntryCount := len(entries)
	ifdSize := 2 + ifdEntryCount*12 + 4
	pixelOffset := uint32(headerSize + ifdSize)

	if samplesPerPixel > 1 {
		// BitsPerSample needs an external array when count > 1 (TIFF
		// "value fits in 4 bytes" inlining rule); we place it right
		// after the IFD and shift the pixel data accordingly.
		bitsPerSampleOffset = pixelOffset
		pixelOffset += uint32(samplesPerPixel * 2)
	}

	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			entries[i].value = pixelOffset
		}
		if entries[i].tag == tagBitsPerSample && samplesPerPixel > 1 {
			entries[i].value = bitsPerSampleOffset
		}
	}

	buf := &bytes.Buffer{}
	order := binary.LittleEndian

	buf.WriteString("II")
	binary.Write(buf, order, uint16(42))
	binary.Write(buf, order, uint32(headerSize))

	binary.Write(buf, order, uint16(ifdEntryCount))
	for _, e := range entries {
		binary.Write(buf, order, e.tag)
		binary.Write(buf, order, e.typ)
		binary.Write(buf, order, e.count)
		binary.Write(buf, order, e.value)
	}
	binary.Write(buf, order, uint32(0)) // next IFD offset: none

	if samplesPerPixel > 1 {
		for i := 0; i < samplesPerPixel; i++ {
			binary.Write(buf, order, uint16(8))
		}
	}

	buf.Write(pixels)

	_, err := w.Write(buf.Bytes())
	return err
}
