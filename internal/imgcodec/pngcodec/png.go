// Package pngcodec wraps the standard library PNG codec behind the
// imgcodec.Codec interface.
package pngcodec

import (
	"bytes"
	"image/png"
	"io"

	"github.com/dasch-swiss/sipi-go/internal/imgcodec"
	"github.com/dasch-swiss/sipi-go/internal/imgops"
)

func init() {
	imgcodec.Register(Codec{})
}

var magic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

type Codec struct{}

func (Codec) Name() string { return "png" }

func (Codec) Probe(header []byte) bool {
	return bytes.HasPrefix(header, magic)
}

func (Codec) Levels(io.ReaderAt, int64) (int, error) { return 1, nil }

func (Codec) LevelSize(r io.ReaderAt, size int64, _ int) (int, int, error) {
	cfg, err := png.DecodeConfig(io.NewSectionReader(r, 0, size))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (c Codec) DecodeRegionAtLevel(r io.ReaderAt, size int64, _ int) (imgops.Buffer, error) {
	sr := io.NewSectionReader(r, 0, size)
	img, err := png.Decode(sr)
	if err != nil {
		return imgops.Buffer{}, err
	}
	return imgops.Buffer{Pix: img, OriginalFormat: "png"}, nil
}

func (Codec) Encode(w io.Writer, buf imgops.Buffer, _ int) error {
	return png.Encode(w, buf.Pix)
}
