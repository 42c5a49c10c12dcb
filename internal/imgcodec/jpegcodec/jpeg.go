// Package jpegcodec wraps the standard library JPEG codec behind the
// imgcodec.Codec interface.
package jpegcodec

import (
	"image/jpeg"
	"io"

	"github.com/dasch-swiss/sipi-go/internal/imgcodec"
	"github.com/dasch-swiss/sipi-go/internal/imgops"
)

func init() {
	imgcodec.Register(Codec{})
}

type Codec struct{}

func (Codec) Name() string { return "jpg" }

func (Codec) Probe(header []byte) bool {
	return len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF
}

func (Codec) Levels(io.ReaderAt, int64) (int, error) { return 1, nil }

func (Codec) LevelSize(r io.ReaderAt, size int64, _ int) (int, int, error) {
	cfg, err := jpeg.DecodeConfig(io.NewSectionReader(r, 0, size))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (c Codec) DecodeRegionAtLevel(r io.ReaderAt, size int64, _ int) (imgops.Buffer, error) {
	sr := io.NewSectionReader(r, 0, size)
	img, err := jpeg.Decode(sr)
	if err != nil {
		return imgops.Buffer{}, err
	}
	return imgops.Buffer{Pix: img, OriginalFormat: "jpeg"}, nil
}

func (Codec) Encode(w io.Writer, buf imgops.Buffer, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return jpeg.Encode(w, buf.Pix, &jpeg.Options{Quality: quality})
}
