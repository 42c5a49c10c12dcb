package iiif

import (
	"fmt"
	"strings"
)

// Request is the fully parsed IIIF Image API request: which image, and
// which region/size/rotation/quality/format transform to apply to it.
type Request struct {
	ID       Identifier
	Region   Region
	Size     Size
	Rotation Rotation
	Quality  Quality
	Format   Format
}

// Parse splits an IIIF path of the form
// "{identifier}/{region}/{size}/{rotation}/{quality}.{format}"
// into a Request. The identifier segment may itself contain encoded
// slashes, so parsing works from the end of the path backwards.
func Parse(path string) (Request, error) {
	path = strings.Trim(path, "/")
	segments := strings.Split(path, "/")
	if len(segments) < 5 {
		return Request{}, fmt.Errorf("iiif: request path has too few segments: %q", path)
	}

	n := len(segments)
	qualityFormat := segments[n-1]
	rotationSeg := segments[n-2]
	sizeSeg := segments[n-3]
	regionSeg := segments[n-4]
	idSeg := strings.Join(segments[:n-4], "/")

	dot := strings.LastIndexByte(qualityFormat, '.')
	if dot < 0 {
		return Request{}, fmt.Errorf("iiif: missing format suffix in %q", qualityFormat)
	}

	id, err := ParseIdentifier(idSeg)
	if err != nil {
		return Request{}, err
	}

	region, err := ParseRegion(regionSeg)
	if err != nil {
		return Request{}, err
	}

	size, err := ParseSize(sizeSeg)
	if err != nil {
		return Request{}, err
	}

	rotation, err := ParseRotation(rotationSeg)
	if err != nil {
		return Request{}, err
	}

	quality, err := ParseQuality(qualityFormat[:dot])
	if err != nil {
		return Request{}, err
	}

	format, err := ParseFormat(qualityFormat[dot+1:])
	if err != nil {
		return Request{}, err
	}

	return Request{
		ID:       id,
		Region:   region,
		Size:     size,
		Rotation: rotation,
		Quality:  quality,
		Format:   format,
	}, nil
}

// IsInfoRequest reports whether path names the "info.json" resource
// instead of a transformed image.
func IsInfoRequest(path string) bool {
	path = strings.Trim(path, "/")
	return strings.HasSuffix(path, "/info.json") || path == "info.json"
}
