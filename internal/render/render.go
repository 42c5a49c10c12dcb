package render

import (
	"bytes"
	"fmt"

	"github.com/dasch-swiss/sipi-go/internal/authz"
	"github.com/dasch-swiss/sipi-go/internal/iiif"
	"github.com/dasch-swiss/sipi-go/internal/imgcodec"
	"github.com/dasch-swiss/sipi-go/internal/imgops"
	"github.com/dasch-swiss/sipi-go/internal/metadata"
)

// FailedPhase names the Renderer step that failed, so callers can report
// RenderFailed{phase, cause} instead of a bare error.
type FailedPhase string

const (
	PhaseCodecSelection FailedPhase = "codec_selection"
	PhaseProbe          FailedPhase = "probe"
	PhaseRegion         FailedPhase = "region"
	PhaseDecode         FailedPhase = "decode"
	PhaseScale          FailedPhase = "scale"
	PhaseOrientation    FailedPhase = "orientation"
	PhaseRotation       FailedPhase = "rotation"
	PhaseColor          FailedPhase = "color"
	PhaseWatermark      FailedPhase = "watermark"
	PhaseEncode         FailedPhase = "encode"
)

// Error wraps a Renderer failure with the phase it occurred in, matching
// spec.md's RenderFailed{phase, cause} contract.
type Error struct {
	Phase FailedPhase
	Cause error
}

func (e *Error) Error() string { return fmt.Sprintf("render: %s: %v", e.Phase, e.Cause) }
func (e *Error) Unwrap() error { return e.Cause }

func fail(phase FailedPhase, cause error) error { return &Error{Phase: phase, Cause: cause} }

// Options configures deployment-wide render knobs not carried on the
// request itself.
type Options struct {
	AllowUpscale    bool
	ScaleQuality    imgops.Quality
	EncodeQuality   int // JPEG quality 1-100; ignored by formats without a quality knob
	SkipMetadata    bool
	BackgroundAlpha bool // not read by Render: dropped alpha is never painted gray
}

// DefaultOptions mirrors the teacher's habit of giving every configurable
// knob a sane zero-friction default (dev.-mode-equivalent behaviour).
func DefaultOptions() Options {
	return Options{
		AllowUpscale:  false,
		ScaleQuality:  imgops.QualityBalanced,
		EncodeQuality: 90,
	}
}

// Result is the rendered artifact plus what the Dispatcher/CacheWriter
// need to know about it. RestrictedApplied/EffectiveWidth/EffectiveHeight
// are set whenever the AuthorizationHook's restricted_size ceiling
// actually shrank the output below what the request asked for, so the
// Dispatcher can cite the reduced-size canonical URL in a policy header.
type Result struct {
	Data        []byte
	ContentType string

	RestrictedApplied bool
	EffectiveWidth    int
	EffectiveHeight   int
}

// Render runs the 11-step pipeline (spec.md §4.6) against master, the raw
// bytes of the source image, producing the derivative req describes.
// authzResult carries any directive (restricted size, watermark text)
// the AuthorizationHook attached to this request.
func Render(master []byte, filename string, req iiif.Request, authzResult authz.Result, opts Options) (Result, error) {
	// Step 1: codec selection by magic sniffing.
	codec, err := imgcodec.Sniff(master)
	if err != nil {
		return Result{}, fail(PhaseCodecSelection, err)
	}

	r, size := imgcodec.NewReaderAt(master)

	// Step 2: metadata-only probe — master dimensions and pyramid depth,
	// without decoding pixels yet.
	levelCount, err := codec.Levels(r, size)
	if err != nil {
		return Result{}, fail(PhaseProbe, err)
	}
	srcW, srcH, err := codec.LevelSize(r, size, 0)
	if err != nil {
		return Result{}, fail(PhaseProbe, err)
	}

	region := req.Region
	regionX, regionY, regionW, regionH, rerr := region.Resolve(srcW, srcH)
	if rerr != nil {
		return Result{}, fail(PhaseRegion, rerr)
	}

	outW, outH := req.Size.Resolve(regionW, regionH, opts.AllowUpscale)

	// restricted_size is a ceiling independent of what was requested: it
	// applies even to a "full/max" request, where the requested size
	// would otherwise always win.
	restrictedApplied := false
	if authzResult.RestrictedSize != nil {
		restW, restH := authzResult.RestrictedSize.Resolve(regionW, regionH, opts.AllowUpscale)
		if restW < outW {
			outW = restW
			restrictedApplied = true
		}
		if restH < outH {
			outH = restH
			restrictedApplied = true
		}
	}

	// Step 3: reduce planning — translate the final output size into the
	// coarsest pyramid level that still covers it.
	level := 0
	if levelCount > 1 {
		dims := make([]levelDim, levelCount)
		for i := 0; i < levelCount; i++ {
			w, h, err := codec.LevelSize(r, size, i)
			if err != nil {
				return Result{}, fail(PhaseProbe, err)
			}
			dims[i] = levelDim{Level: i, Width: w, Height: h}
		}
		level = planReduceLevel(outW, outH, dims)
	}

	// Step 4: decode at the chosen level. The region is re-expressed in
	// that level's coordinate space before cropping below.
	buf, err := codec.DecodeRegionAtLevel(r, size, level)
	if err != nil {
		return Result{}, fail(PhaseDecode, err)
	}
	buf.OriginalFilename = filename

	lvlW, lvlH, _ := codec.LevelSize(r, size, level)
	decW, decH := buf.Bounds()
	if decW == 0 || decH == 0 {
		decW, decH = lvlW, lvlH
	}

	scaleX := float64(decW) / float64(srcW)
	scaleY := float64(decH) / float64(srcH)
	cropX := int(float64(regionX) * scaleX)
	cropY := int(float64(regionY) * scaleY)
	cropW := int(float64(regionW) * scaleX)
	cropH := int(float64(regionH) * scaleY)
	if cropW < 1 || cropH < 1 {
		return Result{}, fail(PhaseRegion, fmt.Errorf("region crops to zero size (%dx%d) at the chosen reduce level", cropW, cropH))
	}
	buf = imgops.Crop(buf, cropX, cropY, cropW, cropH)

	// Step 5: scale to the exact target, unless the reduce level already
	// landed on it exactly.
	curW, curH := buf.Bounds()
	if curW != outW || curH != outH {
		buf = imgops.Scale(buf, outW, outH, opts.ScaleQuality)
	}

	// Step 6: orientation normalization.
	bridge := metadata.FromBuffer(buf)
	orientation := metadata.ExtractOrientation(buf)
	geometryChanged := regionW != srcW || regionH != srcH || outW != decW || outH != decH
	if orientation != metadata.TopLeft {
		buf = metadata.Normalize(buf, orientation)
		geometryChanged = true
	}

	// Step 7: rotation / mirror.
	if !req.Rotation.IsIdentity() {
		buf = imgops.Rotate(buf, req.Rotation.Degrees, req.Rotation.Mirror)
		geometryChanged = true
	}

	// Step 8: color processing (quality knob: color/gray/bitonal).
	gray := req.Quality == iiif.QualityGray || req.Quality == iiif.QualityBitonal
	bitonal := req.Quality == iiif.QualityBitonal
	buf = imgops.ApplyQuality(buf, gray, bitonal)

	// Step 9: alpha handling is delegated to each codec's Encode (JPEG
	// flattens automatically via its RGBA->YCbCr conversion; formats that
	// support alpha carry it through unchanged).

	// Step 10: watermark, whenever the AuthorizationHook named one.
	if authzResult.WatermarkText != "" {
		buf = imgops.Watermark(buf, authzResult.WatermarkText)
	}

	if !opts.SkipMetadata {
		buf = bridge.Attach(buf, geometryChanged)
	}

	// Step 11: encode into the requested target format.
	targetCodec, ok := imgcodec.ByName(string(req.Format))
	if !ok {
		return Result{}, fail(PhaseEncode, fmt.Errorf("render: no codec registered for format %q", req.Format))
	}

	out, err := encode(targetCodec, buf, opts.EncodeQuality)
	if err != nil {
		return Result{}, fail(PhaseEncode, err)
	}

	return Result{
		Data:              out,
		ContentType:       req.Format.MIME(),
		RestrictedApplied: restrictedApplied,
		EffectiveWidth:    outW,
		EffectiveHeight:   outH,
	}, nil
}

func encode(c imgcodec.Codec, buf imgops.Buffer, quality int) ([]byte, error) {
	var out bytes.Buffer
	if err := c.Encode(&out, buf, quality); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
