package imgcodec_test

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/dasch-swiss/sipi-go/internal/imgcodec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/jp2codec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/jpegcodec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/pngcodec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/tiffcodec"
	"github.com/dasch-swiss/sipi-go/internal/imgops"
)

func checkerboard(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/16+y/16)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestSniffPNG(t *testing.T) {
	var buf bytes.Buffer
	c, ok := imgcodec.ByName("png")
	if !ok {
		t.Fatal("png codec not registered")
	}
	if err := c.Encode(&buf, imgops.Buffer{Pix: checkerboard(64, 64)}, 0); err != nil {
		t.Fatal(err)
	}

	header := buf.Bytes()
	if len(header) > 32 {
		header = header[:32]
	}

	sniffed, err := imgcodec.Sniff(header)
	if err != nil {
		t.Fatal(err)
	}
	if sniffed.Name() != "png" {
		t.Fatalf("expected png, got %v", sniffed.Name())
	}
}

func TestJP2PyramidReduceLevel(t *testing.T) {
	c, ok := imgcodec.ByName("jp2")
	if !ok {
		t.Fatal("jp2 codec not registered")
	}

	var buf bytes.Buffer
	original := checkerboard(512, 512)
	if err := c.Encode(&buf, imgops.Buffer{Pix: original}, 0); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	r, size := imgcodec.NewReaderAt(data)

	levels, err := c.Levels(r, size)
	if err != nil {
		t.Fatal(err)
	}
	if levels < 2 {
		t.Fatalf("expected a multi-level pyramid for a 512x512 source, got %d levels", levels)
	}

	full, err := c.DecodeRegionAtLevel(r, size, 0)
	if err != nil {
		t.Fatal(err)
	}
	fw, fh := full.Bounds()
	if fw != 512 || fh != 512 {
		t.Fatalf("level 0 should be full resolution, got %dx%d", fw, fh)
	}

	reduced, err := c.DecodeRegionAtLevel(r, size, 1)
	if err != nil {
		t.Fatal(err)
	}
	rw, rh := reduced.Bounds()
	if rw >= fw || rh >= fh {
		t.Fatalf("level 1 should be smaller than level 0, got %dx%d vs %dx%d", rw, rh, fw, fh)
	}
}

func TestJPEGRoundTrip(t *testing.T) {
	c, ok := imgcodec.ByName("jpg")
	if !ok {
		t.Fatal("jpg codec not registered")
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, imgops.Buffer{Pix: checkerboard(32, 32)}, 85); err != nil {
		t.Fatal(err)
	}

	r, size := imgcodec.NewReaderAt(buf.Bytes())
	decoded, err := c.DecodeRegionAtLevel(r, size, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := decoded.Bounds(); w != 32 || h != 32 {
		t.Fatalf("expected 32x32, got %dx%d", w, h)
	}
}

func TestTIFFRoundTrip(t *testing.T) {
	c, ok := imgcodec.ByName("tif")
	if !ok {
		t.Fatal("tif codec not registered")
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, imgops.Buffer{Pix: checkerboard(16, 16)}, 0); err != nil {
		t.Fatal(err)
	}

	r, size := imgcodec.NewReaderAt(buf.Bytes())
	decoded, err := c.DecodeRegionAtLevel(r, size, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := decoded.Bounds(); w != 16 || h != 16 {
		t.Fatalf("expected 16x16, got %dx%d", w, h)
	}
}
