package media

import (
	"bytes"
	"fmt"
	"image"

	"github.com/nva0070/flicks-backend/internal/logging"
	"github.com/nva0070/flicks-backend/internal/mediatypes"
	"github.com/nva0070/flicks-backend/internal/metrics"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decode support
)

const (
	// EncodeQuality is the fixed JPEG/WebP re-encode quality. Fixed so the
	// transforms stay deterministic across runs.
	EncodeQuality = 90

	// BannerWidth and BannerHeight are the promotional banner box.
	BannerWidth  = 1280
	BannerHeight = 720

	// MaxImagePixels bounds the decoded size. A 20MP image uses ~80MB in
	// RGBA; anything larger gets downscaled before transforming to keep
	// memory in check.
	MaxImagePixels = 20_000_000
)

// SquareCrop crops a centered s×s window out of the image where
// s = min(width, height), then re-encodes in the input's format (JPEG,
// PNG, GIF, and WebP kept; anything else becomes JPEG). A decode or
// encode fault degrades to the original bytes, logged, never an error.
func SquareCrop(data []byte, ext string) Result {
	img, err := decodeConstrained(data)
	if err != nil {
		logging.Warn("Square crop decode failed (%s): %v", ext, err)
		metrics.ImageNormalizationsTotal.WithLabelValues("square_crop", "degraded").Inc()
		return degraded(data, fmt.Sprintf("decode failed: %v", err))
	}

	bounds := img.Bounds()
	s := bounds.Dx()
	if bounds.Dy() < s {
		s = bounds.Dy()
	}

	cropped := imaging.CropCenter(img, s, s)

	out, err := encode(cropped, ext)
	if err != nil {
		logging.Warn("Square crop encode failed (%s): %v", ext, err)
		metrics.ImageNormalizationsTotal.WithLabelValues("square_crop", "degraded").Inc()
		return degraded(data, fmt.Sprintf("encode failed: %v", err))
	}

	metrics.ImageNormalizationsTotal.WithLabelValues("square_crop", "ok").Inc()
	return ok(out)
}

// FitAndCropToBox scales the image so it covers targetW×targetH, then
// center-crops the overflow. Output dimensions are always exactly
// targetW×targetH. Same format and failure policy as SquareCrop.
func FitAndCropToBox(data []byte, ext string, targetW, targetH int) Result {
	img, err := decodeConstrained(data)
	if err != nil {
		logging.Warn("Box fit decode failed (%s): %v", ext, err)
		metrics.ImageNormalizationsTotal.WithLabelValues("fit_crop", "degraded").Inc()
		return degraded(data, fmt.Sprintf("decode failed: %v", err))
	}

	bounds := img.Bounds()
	imgRatio := float64(bounds.Dx()) / float64(bounds.Dy())
	targetRatio := float64(targetW) / float64(targetH)

	var scaled image.Image
	if imgRatio > targetRatio {
		// Relatively wider: pin height, crop width
		scaled = imaging.Resize(img, 0, targetH, imaging.Lanczos)
	} else {
		// Relatively taller or equal: pin width, crop height
		scaled = imaging.Resize(img, targetW, 0, imaging.Lanczos)
	}

	cropped := imaging.CropCenter(scaled, targetW, targetH)

	out, err := encode(cropped, ext)
	if err != nil {
		logging.Warn("Box fit encode failed (%s): %v", ext, err)
		metrics.ImageNormalizationsTotal.WithLabelValues("fit_crop", "degraded").Inc()
		return degraded(data, fmt.Sprintf("encode failed: %v", err))
	}

	metrics.ImageNormalizationsTotal.WithLabelValues("fit_crop", "ok").Inc()
	return ok(out)
}

// NormalizeBanner fits the image to the standard promotional banner box.
func NormalizeBanner(data []byte, ext string) Result {
	return FitAndCropToBox(data, ext, BannerWidth, BannerHeight)
}

// PixelCount reads the decoded pixel count from the image header alone,
// without decoding pixel data. ok is false when no registered decoder
// recognizes the bytes.
func PixelCount(data []byte) (px int, ok bool) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}
	return config.Width * config.Height, true
}

// decodeConstrained decodes image bytes, downscaling oversized inputs so
// a single pathological upload cannot exhaust memory. Ingest rejects
// images over MaxImagePixels up front; this guards direct callers.
func decodeConstrained(data []byte) (image.Image, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil && config.Width*config.Height > MaxImagePixels {
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, err
		}
		scale := float64(MaxImagePixels) / float64(config.Width*config.Height)
		targetWidth := int(float64(config.Width) * scale)
		logging.Info("Constraining large image from %dx%d to width %d", config.Width, config.Height, targetWidth)
		return imaging.Resize(img, targetWidth, 0, imaging.Lanczos), nil
	}

	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// encode re-encodes img in the format implied by ext. WebP goes through
// libvips; when vips is unavailable the error propagates and the caller
// degrades to the original bytes.
func encode(img image.Image, ext string) ([]byte, error) {
	format := mediatypes.EncodeFormat(ext)

	if format == "webp" {
		return encodeWebp(img)
	}

	var imagingFormat imaging.Format
	switch format {
	case "png":
		imagingFormat = imaging.PNG
	case "gif":
		imagingFormat = imaging.GIF
	default:
		imagingFormat = imaging.JPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imagingFormat, imaging.JPEGQuality(EncodeQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
