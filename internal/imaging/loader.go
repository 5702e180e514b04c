package imaging

import (
	"container/list"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// Size is the pixel size of an image.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SizeOf returns the size of img, or a zero Size for a nil image.
func SizeOf(img image.Image) Size {
	if img == nil {
		return Size{}
	}
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// IsEmpty reports whether the size has no pixels.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Load decodes the image file at path.
//
// Decoding goes through disintegration/imaging so that EXIF orientation of
// JPEG and TIFF files is applied. Any format registered with the image
// package (PNG, JPEG, GIF, BMP, TIFF, WebP) is accepted; extension checks are
// the job of ValidateImage.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// DefaultCacheSize is the number of decoded images kept by NewImageCache.
const DefaultCacheSize = 16

type cacheEntry struct {
	key     string
	modTime time.Time
	size    int64
	img     image.Image
}

// ImageCache keeps recently decoded images keyed by absolute path.
//
// An entry is reused only while the file's size and modification time are
// unchanged, so a rescanned page is decoded again. When the cache is full the
// least recently used image is dropped. ImageCache is safe for concurrent use.
type ImageCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List // front is most recently used
	entries map[string]*list.Element
}

// NewImageCache returns a cache holding up to DefaultCacheSize images.
func NewImageCache() *ImageCache {
	return NewImageCacheSize(DefaultCacheSize)
}

// NewImageCacheSize returns a cache holding up to n images. Values below one
// mean one.
func NewImageCacheSize(n int) *ImageCache {
	return &ImageCache{
		max:     max(n, 1),
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Load returns the decoded image at path, from the cache when the file is
// unchanged.
func (c *ImageCache) Load(path string) (image.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	key := cacheKey(path)

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry)
		if e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
			c.order.MoveToFront(el)
			c.mu.Unlock()
			return e.img, nil
		}
		c.remove(el)
	}
	c.mu.Unlock()

	img, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{
		key:     key,
		modTime: info.ModTime(),
		size:    info.Size(),
		img:     img,
	})
	for c.order.Len() > c.max {
		c.remove(c.order.Back())
	}
	return img, nil
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.mu.Unlock()
}

// Evict removes the image loaded from path, if cached.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	if el, ok := c.entries[cacheKey(path)]; ok {
		c.remove(el)
	}
	c.mu.Unlock()
}

// remove must be called with c.mu held.
func (c *ImageCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*cacheEntry).key)
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// ImageInfo contains metadata about an image file as seen by the OCR pipeline.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the format derived from the file extension ("png", "jpeg",
	// "tiff", ...) or "unknown".
	Format string `json:"format"`

	// Grayscale is true when the decoded image is already single-channel,
	// in which case preprocessing skips the grayscale conversion.
	Grayscale bool `json:"grayscale"`

	// HasAlpha indicates whether the decoded image carries an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// Supported reports whether ValidateImage accepts the file.
	Supported bool `json:"supported"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and returns its metadata.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	size := SizeOf(img)
	info := &ImageInfo{
		Width:         size.Width,
		Height:        size.Height,
		Format:        FormatFromPath(path),
		Supported:     ValidateImage(path),
		FileSizeBytes: stat.Size(),
	}
	if info.Format == "" {
		info.Format = "unknown"
	}
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		info.HasAlpha = true
	case *image.Gray, *image.Gray16:
		info.Grayscale = true
	}
	return info, nil
}
