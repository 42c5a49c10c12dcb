// Package imgops implements the pixel-level transform primitives that
// the Renderer composes: crop, scale, rotate, color reduction and
// watermarking. It operates on decoded Go image.Image values, leaving
// bitstream decode/encode to the internal/imgcodec package.
package imgops

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Buffer is the in-memory pixel payload carried through the render
// pipeline, plus the opaque metadata blobs that ride alongside it so the
// MetadataBridge can re-attach them to whatever container format the
// request asks for.
type Buffer struct {
	Pix image.Image

	EXIF []byte
	IPTC []byte
	XMP  []byte
	ICC  []byte

	// OriginalFormat and OriginalFilename feed the "essentials" envelope.
	OriginalFormat   string
	OriginalFilename string
}

// Bounds returns the pixel dimensions of the carried image.
func (b Buffer) Bounds() (w, h int) {
	r := b.Pix.Bounds()
	return r.Dx(), r.Dy()
}

// Crop returns a new Buffer restricted to the pixel rectangle (x, y, w, h),
// preserving all metadata blobs unchanged (cropping never invalidates
// EXIF/IPTC/XMP text, only pixel dimensions which the bridge rewrites
// separately).
func Crop(b Buffer, x, y, w, h int) Buffer {
	rect := image.Rect(x, y, x+w, y+h)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), b.Pix, rect.Min, draw.Src)

	out := b
	out.Pix = dst
	return out
}

// Quality selects the resampling kernel used by Scale. The three levels
// mirror the three quality/speed tradeoffs a production image server
// exposes to its configuration.
type Quality int

const (
	QualityFast Quality = iota
	QualityBalanced
	QualityBest
)

// Scale resizes the image to (w, h) using the resampling kernel implied
// by q.
func Scale(b Buffer, w, h int, q Quality) Buffer {
	src := b.Pix
	if sw, sh := src.Bounds().Dx(), src.Bounds().Dy(); sw == w && sh == h {
		return b
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	var scaler draw.Scaler
	switch q {
	case QualityFast:
		scaler = draw.NearestNeighbor
	case QualityBest:
		scaler = draw.CatmullRom
	default:
		scaler = draw.BiLinear
	}

	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	out := b
	out.Pix = dst
	return out
}

// Rotate applies a clockwise rotation, optionally preceded by a
// horizontal mirror. Multiples of 90 degrees are implemented as exact
// pixel transposes; other angles fall back to a rotating resample
// around the image center with a transparent background.
func Rotate(b Buffer, degrees float64, mirror bool) Buffer {
	src := b.Pix
	if mirror {
		src = flipHorizontal(src)
	}

	switch normalize(degrees) {
	case 0:
		// no-op
	case 90:
		src = rotate90(src)
	case 180:
		src = rotate180(src)
	case 270:
		src = rotate270(src)
	default:
		src = rotateArbitrary(src, degrees)
	}

	out := b
	out.Pix = src
	return out
}

func normalize(d float64) float64 {
	for d >= 360 {
		d -= 360
	}
	for d < 0 {
		d += 360
	}
	return d
}

func flipHorizontal(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-(x-b.Min.X), y, src.At(x, y))
		}
	}
	return dst
}

func rotate90(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-(y-b.Min.Y), x-b.Min.X, src.At(x, y))
		}
	}
	return dst
}

func rotate180(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-(x-b.Min.X), b.Max.Y-1-(y-b.Min.Y), src.At(x, y))
		}
	}
	return dst
}

func rotate270(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y-b.Min.Y, b.Max.X-1-(x-b.Min.X), src.At(x, y))
		}
	}
	return dst
}

// rotateArbitrary handles non-axis-aligned rotations. These are rare in
// practice (IIIF clients mostly request 0/90/180/270) so a direct
// nearest-neighbor inverse-mapping rotation is adequate; it is not on
// the hot path that the resampling quality knob governs.
func rotateArbitrary(src image.Image, degrees float64) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	theta := degrees * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)

	cx, cy := float64(w)/2, float64(h)/2

	corners := [][2]float64{{-cx, -cy}, {cx, -cy}, {-cx, cy}, {cx, cy}}
	var maxX, maxY float64
	for _, c := range corners {
		nx := c[0]*cos - c[1]*sin
		ny := c[0]*sin + c[1]*cos
		if math.Abs(nx) > maxX {
			maxX = math.Abs(nx)
		}
		if math.Abs(ny) > maxY {
			maxY = math.Abs(ny)
		}
	}

	nw, nh := int(maxX*2), int(maxY*2)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))

	ncx, ncy := float64(nw)/2, float64(nh)/2

	for y := 0; y < nh; y++ {
		for x := 0; x < nw; x++ {
			dx := float64(x) - ncx
			dy := float64(y) - ncy
			// inverse rotation to find the source pixel
			sx := dx*cos + dy*sin + cx
			sy := -dx*sin + dy*cos + cy
			if sx >= 0 && sx < float64(w) && sy >= 0 && sy < float64(h) {
				dst.Set(x, y, src.At(b.Min.X+int(sx), b.Min.Y+int(sy)))
			}
		}
	}

	return dst
}

// ApplyQuality reduces the color space per the IIIF quality parameter.
func ApplyQuality(b Buffer, gray, bitonal bool) Buffer {
	if !gray && !bitonal {
		return b
	}

	src := b.Pix
	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	out := b
	if !bitonal {
		out.Pix = dst
		return out
	}

	bw := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := dst.GrayAt(x, y).Y
			if g >= 128 {
				bw.Set(x, y, color.White)
			} else {
				bw.Set(x, y, color.Black)
			}
		}
	}
	out.Pix = bw
	return out
}
