// Package metadata implements the MetadataBridge: carrying EXIF, IPTC,
// XMP and ICC blobs across a format transform, and deciding which tags
// get rewritten when the pixel dimensions or orientation change.
package metadata

import (
	"encoding/binary"

	"github.com/dasch-swiss/sipi-go/internal/imgops"
)

// Orientation mirrors the small subset of EXIF/TIFF orientation values
// the bridge normalizes to "TopLeft" before handing pixels to the
// Renderer, per the design note: TIFF orientation wins for untouched
// TIFFs, EXIF orientation wins for JPEGs.
type Orientation int

const (
	TopLeft Orientation = 1
	// the remaining seven EXIF orientation values are accepted on input
	// but always normalized to TopLeft; named here for documentation of
	// the input domain rather than as values this package emits.
	TopRight    Orientation = 2
	BottomRight Orientation = 3
	BottomLeft  Orientation = 4
	LeftTop     Orientation = 5
	RightTop    Orientation = 6
	RightBottom Orientation = 7
	LeftBottom  Orientation = 8
)

// Normalize applies the rotation/mirror implied by the source
// orientation tag so downstream pixels are always stored top-left. It
// returns only the transformed buffer; the Renderer then marks the
// geometry as changed, so Bridge.Attach drops the EXIF blob (and the
// stale orientation tag inside it) from the re-encoded output.
func Normalize(buf imgops.Buffer, o Orientation) imgops.Buffer {
	switch o {
	case TopRight:
		return imgops.Rotate(buf, 0, true)
	case BottomRight:
		return imgops.Rotate(buf, 180, false)
	case BottomLeft:
		return imgops.Rotate(buf, 180, true)
	case LeftTop:
		return imgops.Rotate(buf, 270, true)
	case RightTop:
		return imgops.Rotate(buf, 90, false)
	case RightBottom:
		return imgops.Rotate(buf, 90, true)
	case LeftBottom:
		return imgops.Rotate(buf, 270, false)
	default:
		return buf
	}
}

// orientationTag is the EXIF/TIFF tag ID (0x0112) carrying the
// orientation value inside a TIFF IFD, used both by a bare TIFF IFD and
// by the TIFF-structured IFD embedded in a JPEG's EXIF APP1 segment.
const orientationTag = 0x0112

// ExtractOrientation scans buf's EXIF blob for the orientation tag,
// per the design note that TIFF orientation wins for untouched TIFFs and
// EXIF orientation wins for JPEGs — in both cases the tag lives in a
// TIFF-style IFD, so one scanner serves both container kinds. Returns
// TopLeft if the blob is absent, too short, or carries no orientation
// entry, which is the safe default (no normalization applied).
func ExtractOrientation(buf imgops.Buffer) Orientation {
	blob := buf.EXIF
	if len(blob) < 8 {
		return TopLeft
	}

	var order binary.ByteOrder
	switch {
	case blob[0] == 'I' && blob[1] == 'I':
		order = binary.LittleEndian
	case blob[0] == 'M' && blob[1] == 'M':
		order = binary.BigEndian
	default:
		return TopLeft
	}

	ifdOffset := order.Uint32(blob[4:8])
	if int(ifdOffset)+2 > len(blob) {
		return TopLeft
	}

	count := int(order.Uint16(blob[ifdOffset : ifdOffset+2]))
	entriesStart := int(ifdOffset) + 2

	for i := 0; i < count; i++ {
		off := entriesStart + i*12
		if off+12 > len(blob) {
			break
		}
		tag := order.Uint16(blob[off : off+2])
		if tag == orientationTag {
			value := order.Uint16(blob[off+8 : off+10])
			if value >= 1 && value <= 8 {
				return Orientation(value)
			}
		}
	}

	return TopLeft
}

// Bridge carries metadata blobs from a decoded source through to the
// re-encoded output. ICC, IPTC and XMP blobs are round-tripped opaquely;
// the EXIF blob is kept only when the pixel geometry is unchanged. No
// field inside any blob is rewritten.
type Bridge struct {
	EXIF []byte
	IPTC []byte
	XMP  []byte
	ICC  []byte
}

// FromBuffer extracts the metadata blobs carried on a decoded Buffer.
func FromBuffer(buf imgops.Buffer) Bridge {
	return Bridge{EXIF: buf.EXIF, IPTC: buf.IPTC, XMP: buf.XMP, ICC: buf.ICC}
}

// Attach writes the bridge's blobs back onto a Buffer ahead of encoding.
// ICC, XMP and IPTC are always carried over. EXIF is carried over only
// when geometryChanged is false; otherwise the whole EXIF blob is dropped
// (no tag inside it is patched), since a stale orientation or size tag
// would misdescribe the re-encoded image.
func (b Bridge) Attach(buf imgops.Buffer, geometryChanged bool) imgops.Buffer {
	out := buf
	out.ICC = b.ICC
	out.XMP = b.XMP
	out.IPTC = b.IPTC

	if !geometryChanged {
		out.EXIF = b.EXIF
	}

	return out
}
