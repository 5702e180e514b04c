package imaging

import (
	"image"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// BaseDPI is the resolution at which an image is passed to the engine
// unscaled.
const BaseDPI = 300

// DarkBackgroundLightness is the CIE L* value (0-100) below which a
// background is treated as dark.
const DarkBackgroundLightness = 50.0

// PreprocessOptions controls Preprocess.
type PreprocessOptions struct {
	// DPI is the target resolution. Values <= 0 or equal to BaseDPI leave
	// the image size unchanged.
	DPI int

	// AutoInvert inverts images with a dark background so that text ends
	// up dark on light.
	AutoInvert bool
}

// Preprocess normalizes img for recognition: single-channel 8-bit gray,
// rescaled by DPI/BaseDPI with Lanczos resampling, and optionally inverted.
//
// The input is never modified; a new image is always returned.
func Preprocess(img image.Image, opts PreprocessOptions) *image.Gray {
	gray := toGray(img)

	if opts.DPI > 0 && opts.DPI != BaseDPI {
		scale := float64(opts.DPI) / BaseDPI
		b := gray.Bounds()
		w := max(1, int(math.Round(float64(b.Dx())*scale)))
		h := max(1, int(math.Round(float64(b.Dy())*scale)))
		gray = toGray(imaging.Resize(gray, w, h, imaging.Lanczos))
	}

	if opts.AutoInvert && IsDarkBackground(gray) {
		gray = toGray(effect.Invert(gray))
	}
	return gray
}

// IsDarkBackground reports whether the dominant border color of img is
// darker than DarkBackgroundLightness.
func IsDarkBackground(img image.Image) bool {
	return BackgroundColor(img).Lightness < DarkBackgroundLightness
}

// toGray returns a fresh *image.Gray with origin (0, 0). Gray inputs are
// copied rather than converted again.
func toGray(img image.Image) *image.Gray {
	src := img
	if _, ok := img.(*image.Gray); !ok {
		// bild weights the channels but keeps an RGBA layout.
		src = effect.Grayscale(img)
	}
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}
