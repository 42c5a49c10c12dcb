package iiif

import "fmt"

// Quality controls the color reduction applied to the rendered pixels.
type Quality string

const (
	QualityDefault Quality = "default"
	QualityColor   Quality = "color"
	QualityGray    Quality = "gray"
	QualityBitonal Quality = "bitonal"
)

// ParseQuality validates the "quality" path segment.
func ParseQuality(s string) (Quality, error) {
	switch Quality(s) {
	case QualityDefault, QualityColor, QualityGray, QualityBitonal:
		return Quality(s), nil
	}
	return "", fmt.Errorf("iiif: invalid quality %q", s)
}

// Format is the requested output container, taken from the suffix of
// the last path segment, e.g. "jpg" in ".../default.jpg".
type Format string

const (
	FormatJPG  Format = "jpg"
	FormatPNG  Format = "png"
	FormatTIF  Format = "tif"
	FormatJP2  Format = "jp2"
	FormatGIF  Format = "gif"
	FormatPDF  Format = "pdf"
	FormatWebP Format = "webp"
)

var knownFormats = map[Format]string{
	FormatJPG:  "image/jpeg",
	FormatPNG:  "image/png",
	FormatTIF:  "image/tiff",
	FormatJP2:  "image/jp2",
	FormatGIF:  "image/gif",
	FormatPDF:  "application/pdf",
	FormatWebP: "image/webp",
}

// ParseFormat validates the "format" path suffix.
func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if _, ok := knownFormats[f]; ok {
		return f, nil
	}
	return "", fmt.Errorf("iiif: unsupported format %q", s)
}

// MIME returns the IANA media type for the format.
func (f Format) MIME() string {
	return knownFormats[f]
}
