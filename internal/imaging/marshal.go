package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// PixelFormat identifies the byte layout of a Buffer.
type PixelFormat string

// PixelFormatRGBA is 8 bits per channel in R, G, B, A order.
const PixelFormatRGBA PixelFormat = "RGBA"

// ErrEmptyImage is returned by Marshal for nil or zero-area images.
var ErrEmptyImage = errors.New("image has no pixels")

// Buffer is a contiguous pixel buffer handed to the recognition engine.
//
// Rows are stored top to bottom with no padding: len(Data) == Height*Stride
// and Stride == Width*BytesPerPixel.
type Buffer struct {
	Data          []byte
	Width         int
	Height        int
	BytesPerPixel int
	Stride        int
	Format        PixelFormat
}

// Marshal converts img into a 4-byte-per-pixel RGBA buffer. Transparent
// pixels are composited over white so that the engine never sees them as
// black.
func Marshal(img image.Image) (*Buffer, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Over)

	return &Buffer{
		Data:          rgba.Pix,
		Width:         b.Dx(),
		Height:        b.Dy(),
		BytesPerPixel: 4,
		Stride:        rgba.Stride,
		Format:        PixelFormatRGBA,
	}, nil
}

// Size returns the buffer dimensions.
func (b *Buffer) Size() Size {
	return Size{Width: b.Width, Height: b.Height}
}

// Image returns an *image.RGBA sharing the buffer's memory.
func (b *Buffer) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Data,
		Stride: b.Stride,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}
