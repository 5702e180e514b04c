package imaging

import (
	"fmt"
	"image"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Region represents a rectangular region within an image.
//
// (X1, Y1) is the top-left corner (inclusive), (X2, Y2) the bottom-right
// corner (exclusive).
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r Region) rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// ColorFrequency represents a quantized color and how much of the sampled
// area it covers.
type ColorFrequency struct {
	Hex        string   `json:"hex"`
	Percentage float64  `json:"percentage"`
	RGB        RGBColor `json:"rgb"`

	// Lightness is the CIE L* value scaled to 0-100.
	Lightness float64 `json:"lightness"`
}

// DominantColorsResult contains colors sorted by frequency (most common first).
type DominantColorsResult struct {
	Colors []ColorFrequency `json:"colors"`
}

// DominantColors extracts the count most common colors from an image or a
// region of it.
//
// Colors are quantized by dropping the low four bits of each 8-bit
// component, so #F0F0F0 and #FAFAFA count as the same color.
func DominantColors(img image.Image, count int, region *Region) (*DominantColorsResult, error) {
	rect := img.Bounds()
	if region != nil {
		rect = region.rect().Intersect(rect)
	}
	if rect.Empty() {
		return nil, fmt.Errorf("region %v does not intersect image bounds %v", rect, img.Bounds())
	}
	return &DominantColorsResult{Colors: rankColors(img, count, rect)}, nil
}

// BackgroundColor estimates the page background as the dominant color of a
// frame along the image border, where text rarely reaches.
func BackgroundColor(img image.Image) ColorFrequency {
	b := img.Bounds()
	band := max(1, min(b.Dx(), b.Dy())/20)
	frames := []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+band),
		image.Rect(b.Min.X, b.Max.Y-band, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+band, b.Max.Y),
		image.Rect(b.Max.X-band, b.Min.Y, b.Max.X, b.Max.Y),
	}
	colors := rankColors(img, 1, frames...)
	if len(colors) == 0 {
		return ColorFrequency{Hex: "#FFFFFF", RGB: RGBColor{255, 255, 255}, Lightness: 100}
	}
	return colors[0]
}

func rankColors(img image.Image, count int, rects ...image.Rectangle) []ColorFrequency {
	counts := make(map[RGBColor]int)
	total := 0
	for _, rect := range rects {
		rect = rect.Intersect(img.Bounds())
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				key := RGBColor{
					R: uint8(r>>8) &^ 0x0F,
					G: uint8(g>>8) &^ 0x0F,
					B: uint8(b>>8) &^ 0x0F,
				}
				counts[key]++
				total++
			}
		}
	}
	if total == 0 {
		return nil
	}

	colors := make([]ColorFrequency, 0, len(counts))
	for rgb, n := range counts {
		c := colorful.Color{R: float64(rgb.R) / 255, G: float64(rgb.G) / 255, B: float64(rgb.B) / 255}
		l, _, _ := c.Lab()
		colors = append(colors, ColorFrequency{
			Hex:        fmt.Sprintf("#%02X%02X%02X", rgb.R, rgb.G, rgb.B),
			Percentage: float64(n) / float64(total) * 100,
			RGB:        rgb,
			Lightness:  math.Max(0, math.Min(100, l*100)),
		})
	}

	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})

	if count > 0 && len(colors) > count {
		colors = colors[:count]
	}
	return colors
}
