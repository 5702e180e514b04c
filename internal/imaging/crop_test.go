package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestCrop(t *testing.T) {
	img := createPatternImage(100, 100)

	cropped, err := Crop(img, Region{50, 0, 100, 50})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if b := cropped.Bounds(); b != image.Rect(0, 0, 50, 50) {
		t.Errorf("bounds: got %v, want (0,0)-(50,50)", b)
	}
	r, g, b, _ := cropped.At(10, 10).RGBA()
	if r != 0 || g>>8 != 255 || b != 0 {
		t.Errorf("top-right quadrant should be green, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestCrop_Invalid(t *testing.T) {
	img := createInMemoryImage(100, 100, color.White)

	tests := []struct {
		name string
		r    Region
	}{
		{"outside", Region{50, 50, 150, 150}},
		{"negative", Region{-1, 0, 10, 10}},
		{"inverted", Region{60, 60, 40, 40}},
		{"empty", Region{10, 10, 10, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(img, tt.r); err == nil {
				t.Errorf("expected error for %+v", tt.r)
			}
		})
	}
}

func TestNamedArea(t *testing.T) {
	b := image.Rect(0, 0, 200, 100)
	tests := []struct {
		name string
		want Region
	}{
		{"top-left", Region{0, 0, 100, 50}},
		{"bottom-right", Region{100, 50, 200, 100}},
		{"top-half", Region{0, 0, 200, 50}},
		{"right-half", Region{100, 0, 200, 100}},
		{"Center", Region{50, 25, 150, 75}},
	}
	for _, tt := range tests {
		got, err := NamedArea(b, tt.name)
		if err != nil {
			t.Fatalf("NamedArea(%q) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("NamedArea(%q) = %+v, want %+v", tt.name, got, tt.want)
		}
	}

	// Offset bounds shift the area.
	got, _ := NamedArea(image.Rect(10, 20, 110, 120), "top-left")
	if got != (Region{10, 20, 60, 70}) {
		t.Errorf("offset top-left: got %+v", got)
	}

	if _, err := NamedArea(b, "middle"); err == nil {
		t.Error("expected error for unknown area")
	}
	if len(AreaNames()) != 9 {
		t.Errorf("AreaNames: got %v", AreaNames())
	}
}

func TestParseRegion(t *testing.T) {
	got, err := ParseRegion("10, 20,30,40")
	if err != nil {
		t.Fatalf("ParseRegion failed: %v", err)
	}
	if got != (Region{10, 20, 30, 40}) {
		t.Errorf("got %+v", got)
	}
	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "1,2,3,4,5"} {
		if _, err := ParseRegion(bad); err == nil {
			t.Errorf("ParseRegion(%q) should fail", bad)
		}
	}
}

func TestSelect(t *testing.T) {
	img := createPatternImage(100, 60)

	same, err := Select(img, nil, "")
	if err != nil || same != image.Image(img) {
		t.Errorf("Select without region should return the input, got %v, %v", same, err)
	}

	byArea, err := Select(img, nil, "bottom-half")
	if err != nil {
		t.Fatalf("Select area failed: %v", err)
	}
	if SizeOf(byArea) != (Size{Width: 100, Height: 30}) {
		t.Errorf("area size: got %+v", SizeOf(byArea))
	}

	byRegion, err := Select(img, &Region{0, 0, 20, 10}, "bottom-half")
	if err != nil {
		t.Fatalf("Select region failed: %v", err)
	}
	if SizeOf(byRegion) != (Size{Width: 20, Height: 10}) {
		t.Errorf("region should win over area, got %+v", SizeOf(byRegion))
	}

	if _, err := Select(img, nil, "nowhere"); err == nil {
		t.Error("expected error for unknown area")
	}
}
