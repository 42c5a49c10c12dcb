// Package imgcodec adapts the standard library and golang.org/x/image
// format packages behind a single Codec interface, dispatched by
// magic-byte sniffing the way a production image server probes an
// unknown upload before trusting its extension.
package imgcodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/h2non/filetype"

	"github.com/dasch-swiss/sipi-go/internal/imgops"
)

// Codec decodes and encodes one image container format. DecodeRegionAtLevel
// lets formats with a native resolution pyramid (JPEG 2000) avoid
// materializing the full-resolution buffer when a reduced level covers
// the request; formats without a pyramid simply ignore the level hint
// and decode at full resolution.
type Codec interface {
	// Name is the format's canonical identifier, e.g. "jpg", "jp2".
	Name() string

	// Probe reports whether the byte header matches this codec's magic.
	Probe(header []byte) bool

	// Levels returns the number of resolution-reduction levels available
	// for this specific bitstream (1 if the format has no pyramid).
	Levels(r io.ReaderAt, size int64) (int, error)

	// LevelSize reports the pixel dimensions the given level decodes to,
	// without necessarily decoding pixel data (a pyramid codec reads it
	// from its level table; a single-level codec reads an image header).
	// Used by the renderer to plan which level covers a requested size.
	LevelSize(r io.ReaderAt, size int64, level int) (w, h int, err error)

	// DecodeRegionAtLevel decodes the image, or as much of it as the
	// codec can produce when asked to favor a reduced resolution level.
	// level 0 always means full resolution.
	DecodeRegionAtLevel(r io.ReaderAt, size int64, level int) (imgops.Buffer, error)

	// Encode serializes buf into w.
	Encode(w io.Writer, buf imgops.Buffer, quality int) error
}

var registry []Codec

// Register adds a codec to the package-wide registry. Format packages
// call this from an init() func so importing them for side effect
// (blank import in cmd/sipid/main.go) is enough to wire them in.
func Register(c Codec) {
	registry = append(registry, c)
}

// ByName looks up a codec by its format name.
func ByName(name string) (Codec, bool) {
	for _, c := range registry {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Sniff identifies the codec that matches the data's magic bytes,
// preferring h2non/filetype's magic-number table over any extension
// claimed by the caller, then falling back to each registered codec's
// own Probe for formats filetype does not recognize (e.g. JPEG 2000's
// bespoke pyramid container).
func Sniff(header []byte) (Codec, error) {
	if kind, err := filetype.Match(header); err == nil && kind != filetype.Unknown {
		if c, ok := ByName(kind.Extension); ok {
			return c, nil
		}
		// filetype's extension didn't match one of our registered names
		// (e.g. "webp", which no codec here registers); fall through to
		// the per-codec Probe pass below.
	}

	for _, c := range registry {
		if c.Probe(header) {
			return c, nil
		}
	}

	return nil, fmt.Errorf("imgcodec: unrecognized image format")
}

// NewReaderAt adapts an in-memory byte slice to io.ReaderAt, used by
// callers that have already buffered the whole source (the common case
// for everything except JPEG 2000 region decoding).
func NewReaderAt(b []byte) (io.ReaderAt, int64) {
	r := bytes.NewReader(b)
	return r, int64(len(b))
}

// DecodeFull is a convenience wrapper for codecs/callers that always
// want the full-resolution image, ignoring the pyramid mechanism.
func DecodeFull(c Codec, data []byte) (imgops.Buffer, error) {
	r, size := NewReaderAt(data)
	return c.DecodeRegionAtLevel(r, size, 0)
}
