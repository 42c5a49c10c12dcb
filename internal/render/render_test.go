package render_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/dasch-swiss/sipi-go/internal/authz"
	"github.com/dasch-swiss/sipi-go/internal/iiif"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/jpegcodec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/jp2codec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/pngcodec"
	_ "github.com/dasch-swiss/sipi-go/internal/imgcodec/tiffcodec"
	"github.com/dasch-swiss/sipi-go/internal/render"
)

func sourcePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRenderFullRequestProducesJPEG(t *testing.T) {
	src := sourcePNG(t, 400, 300)

	req, err := iiif.Parse("id1/full/full/0/default.jpg")
	if err != nil {
		t.Fatal(err)
	}

	result, err := render.Render(src, "source.png", req, authz.Result{Decision: authz.Allow}, render.DefaultOptions())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if result.ContentType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", result.ContentType)
	}
	if len(result.Data) == 0 {
		t.Fatal("expected non-empty output")
	}
}

func TestRenderAppliesRegionAndSize(t *testing.T) {
	src := sourcePNG(t, 400, 300)

	req, err := iiif.Parse("id1/0,0,200,150/100,/0/default.png")
	if err != nil {
		t.Fatal(err)
	}

	result, err := render.Render(src, "source.png", req, authz.Result{Decision: authz.Allow}, render.DefaultOptions())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 100 {
		t.Fatalf("expected width 100, got %d", b.Dx())
	}
}

func TestRenderAllowAppliesWatermark(t *testing.T) {
	src := sourcePNG(t, 200, 200)

	req, err := iiif.Parse("id1/full/full/0/default.png")
	if err != nil {
		t.Fatal(err)
	}

	authzResult := authz.Result{Decision: authz.Allow, WatermarkText: "RESTRICTED"}

	result, err := render.Render(src, "source.png", req, authzResult, render.DefaultOptions())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(result.Data) == 0 {
		t.Fatal("expected non-empty watermarked output")
	}
}

func TestRenderRestrictedSizeCapsFullMaxRequest(t *testing.T) {
	src := sourcePNG(t, 400, 300)

	req, err := iiif.Parse("id1/full/max/0/default.png")
	if err != nil {
		t.Fatal(err)
	}

	authzResult := authz.Result{
		Decision:       authz.Allow,
		RestrictedSize: &iiif.Size{Kind: iiif.SizeWidth, Width: 128},
	}

	result, err := render.Render(src, "source.png", req, authzResult, render.DefaultOptions())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !result.RestrictedApplied {
		t.Fatal("expected RestrictedApplied for a full/max request under a restricted_size ceiling")
	}
	if result.EffectiveWidth != 128 || result.EffectiveHeight != 96 {
		t.Fatalf("expected 128x96, got %dx%d", result.EffectiveWidth, result.EffectiveHeight)
	}

	img, err := png.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 96 {
		t.Fatalf("expected decoded image 128x96, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderRejectsRegionClippingToZero(t *testing.T) {
	src := sourcePNG(t, 400, 300)

	req, err := iiif.Parse("id1/400,0,10,10/full/0/default.png")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := render.Render(src, "source.png", req, authz.Result{Decision: authz.Allow}, render.DefaultOptions()); err == nil {
		t.Fatal("expected an error for a region whose origin lies at the canvas edge")
	}
}

func TestRenderUnregisteredFormatFails(t *testing.T) {
	src := sourcePNG(t, 50, 50)

	req, err := iiif.Parse("id1/full/full/0/default.webp")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := render.Render(src, "source.png", req, authz.Result{Decision: authz.Allow}, render.DefaultOptions()); err == nil {
		t.Fatal("expected an error for a format with no registered codec")
	}
}
