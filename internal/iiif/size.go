package iiif

import (
	"fmt"
	"strconv"
	"strings"
)

// SizeKind tags the shape of a Size value.
type SizeKind int

const (
	SizeFull SizeKind = iota
	SizeMax
	SizeWidth       // "w,"
	SizeHeight      // ",h"
	SizeExact       // "w,h"
	SizePercent     // "pct:n"
	SizeBestFit     // "!w,h"
)

// Size selects the output dimensions, possibly derived from the region's
// pixel size at render time (SizeWidth, SizeHeight, SizePercent, SizeBestFit).
type Size struct {
	Kind          SizeKind
	Width, Height int
	Percent       float64
}

// ParseSize parses the "size" path segment, e.g. "full", "max", "150,",
// ",150", "pct:50", "!150,150" or "150,150".
func ParseSize(s string) (Size, error) {
	switch s {
	case "full":
		return Size{Kind: SizeFull}, nil
	case "max":
		return Size{Kind: SizeMax}, nil
	}

	if strings.HasPrefix(s, "pct:") {
		v, err := strconv.ParseFloat(s[len("pct:"):], 64)
		if err != nil || v <= 0 {
			return Size{}, fmt.Errorf("iiif: invalid size percent %q", s)
		}
		return Size{Kind: SizePercent, Percent: v}, nil
	}

	bestFit := strings.HasPrefix(s, "!")
	rest := strings.TrimPrefix(s, "!")

	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return Size{}, fmt.Errorf("iiif: invalid size %q", s)
	}

	wStr, hStr := parts[0], parts[1]

	switch {
	case wStr != "" && hStr == "":
		w, err := strconv.Atoi(wStr)
		if err != nil || w <= 0 {
			return Size{}, fmt.Errorf("iiif: invalid size width %q", s)
		}
		return Size{Kind: SizeWidth, Width: w}, nil

	case wStr == "" && hStr != "":
		h, err := strconv.Atoi(hStr)
		if err != nil || h <= 0 {
			return Size{}, fmt.Errorf("iiif: invalid size height %q", s)
		}
		return Size{Kind: SizeHeight, Height: h}, nil

	case wStr != "" && hStr != "":
		w, err1 := strconv.Atoi(wStr)
		h, err2 := strconv.Atoi(hStr)
		if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
			return Size{}, fmt.Errorf("iiif: invalid size %q", s)
		}
		kind := SizeExact
		if bestFit {
			kind = SizeBestFit
		}
		return Size{Kind: kind, Width: w, Height: h}, nil
	}

	return Size{}, fmt.Errorf("iiif: invalid size %q", s)
}

func (sz Size) String() string {
	switch sz.Kind {
	case SizeFull:
		return "full"
	case SizeMax:
		return "max"
	case SizePercent:
		return "pct:" + trim(sz.Percent)
	case SizeWidth:
		return fmt.Sprintf("%d,", sz.Width)
	case SizeHeight:
		return fmt.Sprintf(",%d", sz.Height)
	case SizeBestFit:
		return fmt.Sprintf("!%d,%d", sz.Width, sz.Height)
	default:
		return fmt.Sprintf("%d,%d", sz.Width, sz.Height)
	}
}

// Resolve computes the output pixel dimensions given the region's
// resolved pixel size (regionW, regionH). The IIIF spec forbids upscaling
// unless the server explicitly allows it; allowUpscale mirrors that flag.
func (sz Size) Resolve(regionW, regionH int, allowUpscale bool) (w, h int) {
	switch sz.Kind {
	case SizeFull, SizeMax:
		w, h = regionW, regionH

	case SizePercent:
		w = int(float64(regionW) * sz.Percent / 100)
		h = int(float64(regionH) * sz.Percent / 100)

	case SizeWidth:
		w = sz.Width
		h = int(float64(regionH) * float64(w) / float64(regionW))

	case SizeHeight:
		h = sz.Height
		w = int(float64(regionW) * float64(h) / float64(regionH))

	case SizeBestFit:
		ratioW := float64(sz.Width) / float64(regionW)
		ratioH := float64(sz.Height) / float64(regionH)
		ratio := ratioW
		if ratioH < ratioW {
			ratio = ratioH
		}
		w = int(float64(regionW) * ratio)
		h = int(float64(regionH) * ratio)

	default: // SizeExact
		w, h = sz.Width, sz.Height
	}

	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	if !allowUpscale {
		if w > regionW {
			w = regionW
		}
		if h > regionH {
			h = regionH
		}
	}

	return w, h
}
