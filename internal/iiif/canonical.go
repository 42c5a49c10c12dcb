package iiif

import (
	"encoding/base64"
	"fmt"

	"github.com/minio/highwayhash"
)

// CanonicalURL renders the request in the single canonical form used as
// the cache key's input: "default"/"full" collapse to their explicit
// spellings, numeric region/size components drop trailing zeroes, and
// rotation is normalized to [0, 360). baseURL is the "{scheme}://{host}/{prefix}"
// portion preceding the identifier, matching the IIIF canonical URI
// recommendation.
func CanonicalURL(baseURL string, req Request) string {
	r := req
	r.Rotation = r.Rotation.Normalized()

	return fmt.Sprintf("%s/%s/%s/%s/%s/%s.%s",
		baseURL, r.ID.String(), r.Region.String(), r.Size.String(),
		r.Rotation.String(), string(r.Quality), string(r.Format))
}

// highwayHashKey is fixed so fingerprints are stable across server restarts
// and across a multi-instance deployment sharing a cache directory;
// the cache key only needs collision resistance, not secrecy, so a
// published constant key is appropriate here (mirrors the obfuscation
// key used for log sanitization).
var highwayHashKey = []byte("SIPI-GO-CACHE-FINGERPRINT-KEY!!!")

// Fingerprint is the content-addressed cache key for a canonical URL: a
// URL-safe base64 HighwayHash digest, short enough to use as a filename.
func Fingerprint(canonicalURL string) (string, error) {
	h, err := highwayhash.New128(highwayHashKey)
	if err != nil {
		return "", fmt.Errorf("iiif: init highwayhash: %w", err)
	}

	if _, err := h.Write([]byte(canonicalURL)); err != nil {
		return "", fmt.Errorf("iiif: hash canonical url: %w", err)
	}

	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
