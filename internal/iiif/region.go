// Package iiif parses and canonicalizes IIIF Image API request components:
// region, size, rotation, quality, format and identifier.
package iiif

import (
	"fmt"
	"strconv"
	"strings"
)

// RegionKind tags the shape of a Region value.
type RegionKind int

const (
	RegionFull RegionKind = iota
	RegionSquare
	RegionAbsolute
	RegionPercent
)

// Region selects the rectangle of the source image to render.
// For RegionFull and RegionSquare the numeric fields are unused.
type Region struct {
	Kind          RegionKind
	X, Y          float64
	Width, Height float64
}

// ParseRegion parses the "region" path segment, e.g. "full", "square",
// "125,15,120,140" or "pct:41.6,7.5,40,70".
func ParseRegion(s string) (Region, error) {
	switch s {
	case "full":
		return Region{Kind: RegionFull}, nil
	case "square":
		return Region{Kind: RegionSquare}, nil
	}

	kind := RegionAbsolute
	rest := s

	if strings.HasPrefix(s, "pct:") {
		kind = RegionPercent
		rest = s[len("pct:"):]
	}

	parts := strings.Split(rest, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("iiif: invalid region %q", s)
	}

	values := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return Region{}, fmt.Errorf("iiif: invalid region component %q in %q", p, s)
		}
		values[i] = v
	}

	if values[2] <= 0 || values[3] <= 0 {
		return Region{}, fmt.Errorf("iiif: region width/height must be positive in %q", s)
	}

	if kind == RegionPercent && (values[0] > 100 || values[1] > 100) {
		return Region{}, fmt.Errorf("iiif: pct region origin out of range in %q", s)
	}

	return Region{Kind: kind, X: values[0], Y: values[1], Width: values[2], Height: values[3]}, nil
}

// String renders the canonical form of the Region, matching the form
// produced by ParseRegion's reverse mapping used for CanonicalUrl.
func (r Region) String() string {
	switch r.Kind {
	case RegionFull:
		return "full"
	case RegionSquare:
		return "square"
	case RegionPercent:
		return fmt.Sprintf("pct:%v,%v,%v,%v", trim(r.X), trim(r.Y), trim(r.Width), trim(r.Height))
	default:
		return fmt.Sprintf("%v,%v,%v,%v", trim(r.X), trim(r.Y), trim(r.Width), trim(r.Height))
	}
}

// trim drops a trailing ".0" so integral float values print like integers,
// the way the canonical IIIF examples in the wild are written.
func trim(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Resolve clips the Region against the source image's pixel dimensions
// and returns absolute pixel bounds (x, y, w, h). A region that overhangs
// the canvas is clipped to what's available; a region whose origin lies
// at or past the canvas edge, or that clips down to zero width or
// height, has no pixels to render and is rejected instead.
func (r Region) Resolve(srcW, srcH int) (x, y, w, h int, err error) {
	switch r.Kind {
	case RegionFull:
		return 0, 0, srcW, srcH, nil

	case RegionSquare:
		side := srcW
		if srcH < side {
			side = srcH
		}
		x = (srcW - side) / 2
		y = (srcH - side) / 2
		return x, y, side, side, nil

	case RegionPercent:
		x = int(r.X / 100 * float64(srcW))
		y = int(r.Y / 100 * float64(srcH))
		w = int(r.Width / 100 * float64(srcW))
		h = int(r.Height / 100 * float64(srcH))

	default:
		x = int(r.X)
		y = int(r.Y)
		w = int(r.Width)
		h = int(r.Height)
	}

	if x >= srcW || y >= srcH {
		return 0, 0, 0, 0, fmt.Errorf("iiif: region origin (%d,%d) lies at or past the image edge (%dx%d)", x, y, srcW, srcH)
	}
	if x+w > srcW {
		w = srcW - x
	}
	if y+h > srcH {
		h = srcH - y
	}
	if w < 1 || h < 1 {
		return 0, 0, 0, 0, fmt.Errorf("iiif: region %s clips to zero size against %dx%d", r, srcW, srcH)
	}

	return x, y, w, h, nil
}
