package imgops

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Watermark stamps text in the bottom-right corner of the image, used
// whenever the AuthorizationHook's decision carries a watermark
// directive.
func Watermark(b Buffer, text string) Buffer {
	if text == "" {
		return b
	}

	bounds := b.Pix.Bounds()
	dst := image.NewRGBA(bounds)
	copyInto(dst, b.Pix)

	const margin = 8
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Height

	x := bounds.Max.X - width - margin
	y := bounds.Max.Y - margin
	if x < bounds.Min.X {
		x = bounds.Min.X
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 220}),
		Face: face,
		Dot:  fixed.P(x, y-height/2),
	}
	d.DrawString(text)

	out := b
	out.Pix = dst
	return out
}

func copyInto(dst *image.RGBA, src image.Image) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
}
