package metadata

import (
	"encoding/base64"
	"fmt"
	"image"

	"github.com/minio/highwayhash"
)

// essentialsHashKey is distinct from the cache fingerprint key: the two
// digests answer different questions (identity of a request vs. identity
// of a pixel payload) and must not collide.
var essentialsHashKey = []byte("SIPI-GO-ESSENTIALS-PIXELHASH-KEY")

// Essentials is the small provenance envelope carried alongside a cached
// derivative: enough to notice, on a later read, that the stored bytes
// no longer match what was written (bit rot, a truncated write that
// slipped past the atomic-rename guard, or manual tampering).
type Essentials struct {
	OriginalFilename string
	OriginalFormat   string
	HashAlgorithm    string
	PixelHash        string
}

// Compute hashes the pixel payload of img with HighwayHash, the same
// primitive used for the cache Fingerprint, keeping one hashing
// primitive for both content-addressing concerns in this repository.
func Compute(img image.Image, originalFilename, originalFormat string) (Essentials, error) {
	h, err := highwayhash.New128(essentialsHashKey)
	if err != nil {
		return Essentials{}, fmt.Errorf("metadata: init highwayhash: %w", err)
	}

	b := img.Bounds()
	row := make([]byte, 0, b.Dx()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row = row[:0]
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			row = append(row, byte(r>>8), byte(g>>8), byte(bl>>8), byte(a>>8))
		}
		if _, err := h.Write(row); err != nil {
			return Essentials{}, fmt.Errorf("metadata: hash pixel row: %w", err)
		}
	}

	sum := h.Sum(nil)

	return Essentials{
		OriginalFilename: originalFilename,
		OriginalFormat:   originalFormat,
		HashAlgorithm:    "highwayhash128",
		PixelHash:        base64.RawURLEncoding.EncodeToString(sum),
	}, nil
}

// Verify recomputes the pixel hash and reports whether it still matches
// the recorded one. A mismatch is logged by the caller as a warning,
// never treated as fatal: per the essentials contract, the cached
// derivative is still served, just flagged.
func (e Essentials) Verify(img image.Image) (bool, error) {
	recomputed, err := Compute(img, e.OriginalFilename, e.OriginalFormat)
	if err != nil {
		return false, err
	}
	return recomputed.PixelHash == e.PixelHash, nil
}
