package metadata

import (
	"image"
	"image/color"
	"testing"

	"github.com/dasch-swiss/sipi-go/internal/imgops"
)

func TestNormalizeTopRightFlipsHorizontally(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.White)

	buf := imgops.Buffer{Pix: img}
	out := Normalize(buf, TopRight)

	w, h := out.Bounds()
	if w != 4 || h != 2 {
		t.Fatalf("mirror must not change dimensions, got %dx%d", w, h)
	}
}

func TestBridgeAttachDropsEXIFOnGeometryChange(t *testing.T) {
	b := Bridge{EXIF: []byte("exif"), ICC: []byte("icc")}
	buf := imgops.Buffer{Pix: image.NewRGBA(image.Rect(0, 0, 1, 1))}

	out := b.Attach(buf, true)
	if out.EXIF != nil {
		t.Fatal("expected EXIF to be dropped when geometry changed")
	}
	if string(out.ICC) != "icc" {
		t.Fatal("expected ICC to be carried through regardless of geometry change")
	}
}

func TestEssentialsVerifyDetectsMismatch(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	e, err := Compute(img, "scan.tif", "tiff")
	if err != nil {
		t.Fatal(err)
	}

	ok, err := e.Verify(img)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected matching pixel hash to verify")
	}

	img.Set(0, 0, color.White)
	ok, err = e.Verify(img)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected modified pixels to fail verification")
	}
}
