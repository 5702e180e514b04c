package imaging

import (
	"fmt"
	"image"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// namedAreas maps an area name to a function of the image size returning
// the area in image-relative coordinates.
var namedAreas = map[string]func(w, h int) Region{
	"top-left":     func(w, h int) Region { return Region{0, 0, w / 2, h / 2} },
	"top-right":    func(w, h int) Region { return Region{w / 2, 0, w, h / 2} },
	"bottom-left":  func(w, h int) Region { return Region{0, h / 2, w / 2, h} },
	"bottom-right": func(w, h int) Region { return Region{w / 2, h / 2, w, h} },
	"top-half":     func(w, h int) Region { return Region{0, 0, w, h / 2} },
	"bottom-half":  func(w, h int) Region { return Region{0, h / 2, w, h} },
	"left-half":    func(w, h int) Region { return Region{0, 0, w / 2, h} },
	"right-half":   func(w, h int) Region { return Region{w / 2, 0, w, h} },
	// center 50% of the image
	"center": func(w, h int) Region { return Region{w / 4, h / 4, w - w/4, h - h/4} },
}

// AreaNames returns the names accepted by NamedArea, sorted.
func AreaNames() []string {
	names := make([]string, 0, len(namedAreas))
	for name := range namedAreas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NamedArea returns the region called name (for example "top-half") of an
// image with bounds b.
func NamedArea(b image.Rectangle, name string) (Region, error) {
	area, ok := namedAreas[strings.ToLower(name)]
	if !ok {
		return Region{}, fmt.Errorf("unknown area %q (want one of %s)", name, strings.Join(AreaNames(), ", "))
	}
	r := area(b.Dx(), b.Dy())
	return Region{r.X1 + b.Min.X, r.Y1 + b.Min.Y, r.X2 + b.Min.X, r.Y2 + b.Min.Y}, nil
}

// ParseRegion parses "x1,y1,x2,y2".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q: want x1,y1,x2,y2", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	return Region{v[0], v[1], v[2], v[3]}, nil
}

// Crop extracts r from img. The region must lie within the image bounds and
// have a positive area. The result has its origin at (0, 0).
func Crop(img image.Image, r Region) (*image.NRGBA, error) {
	bounds := img.Bounds()

	if r.X1 < bounds.Min.X || r.Y1 < bounds.Min.Y || r.X2 > bounds.Max.X || r.Y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.X1, r.Y1, r.X2, r.Y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	return imaging.Crop(img, r.rect()), nil
}

// Select crops img to region when it is set, otherwise to the named area.
// With neither it returns img unchanged.
func Select(img image.Image, region *Region, area string) (image.Image, error) {
	switch {
	case region != nil:
		return Crop(img, *region)
	case area != "":
		r, err := NamedArea(img.Bounds(), area)
		if err != nil {
			return nil, err
		}
		return Crop(img, r)
	default:
		return img, nil
	}
}
