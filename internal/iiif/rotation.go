package iiif

import (
	"fmt"
	"strconv"
	"strings"
)

// Rotation is the clockwise rotation in degrees, optionally mirrored
// first (IIIF prefixes the degrees with "!" to request a horizontal flip
// before rotating).
type Rotation struct {
	Degrees float64
	Mirror  bool
}

// ParseRotation parses the "rotation" path segment, e.g. "0", "90", "!270"
// or "22.5".
func ParseRotation(s string) (Rotation, error) {
	mirror := strings.HasPrefix(s, "!")
	rest := strings.TrimPrefix(s, "!")

	v, err := strconv.ParseFloat(rest, 64)
	if err != nil || v < 0 || v > 360 {
		return Rotation{}, fmt.Errorf("iiif: invalid rotation %q", s)
	}

	return Rotation{Degrees: v, Mirror: mirror}, nil
}

func (r Rotation) String() string {
	prefix := ""
	if r.Mirror {
		prefix = "!"
	}
	return prefix + trim(r.Degrees)
}

// Normalized reduces the rotation to [0, 360).
func (r Rotation) Normalized() Rotation {
	d := r.Degrees
	for d >= 360 {
		d -= 360
	}
	for d < 0 {
		d += 360
	}
	return Rotation{Degrees: d, Mirror: r.Mirror}
}

// IsIdentity reports whether applying this rotation is a no-op.
func (r Rotation) IsIdentity() bool {
	n := r.Normalized()
	return n.Degrees == 0 && !n.Mirror
}

// IsAxisAligned reports whether the rotation is a multiple of 90 degrees,
// so it can be implemented as a pixel transpose instead of a resampling
// affine transform.
func (r Rotation) IsAxisAligned() bool {
	n := r.Normalized().Degrees
	return n == 0 || n == 90 || n == 180 || n == 270
}
