// Package gifcodec wraps the standard library GIF codec behind the
// imgcodec.Codec interface. GIF has no pack library alternative and, like
// JPEG/PNG, is simple enough that stdlib is the idiomatic choice rather
// than a gap (see DESIGN.md).
package gifcodec

import (
	"image/gif"
	"io"

	"github.com/dasch-swiss/sipi-go/internal/imgcodec"
	"github.com/dasch-swiss/sipi-go/internal/imgops"
)

func init() {
	imgcodec.Register(Codec{})
}

type Codec struct{}

func (Codec) Name() string { return "gif" }

func (Codec) Probe(header []byte) bool {
	return len(header) >= 6 && (string(header[:6]) == "GIF87a" || string(header[:6]) == "GIF89a")
}

func (Codec) Levels(io.ReaderAt, int64) (int, error) { return 1, nil }

func (Codec) LevelSize(r io.ReaderAt, size int64, _ int) (int, int, error) {
	cfg, err := gif.DecodeConfig(io.NewSectionReader(r, 0, size))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (Codec) DecodeRegionAtLevel(r io.ReaderAt, size int64, _ int) (imgops.Buffer, error) {
	sr := io.NewSectionReader(r, 0, size)
	img, err := gif.Decode(sr)
	if err != nil {
		return imgops.Buffer{}, err
	}
	return imgops.Buffer{Pix: img, OriginalFormat: "gif"}, nil
}

func (Codec) Encode(w io.Writer, buf imgops.Buffer, _ int) error {
	return gif.Encode(w, buf.Pix, nil)
}
