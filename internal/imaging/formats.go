package imaging

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// ocrFormats are the file extensions considered suitable for OCR input.
var ocrFormats = []string{"png", "jpg", "jpeg", "tiff", "tif", "bmp", "gif", "webp"}

// extraDecoders lists extensions decoded through a format registered in this
// package rather than by disintegration/imaging itself.
var extraDecoders = map[string]string{
	"webp": "webp",
}

var (
	supportedOnce    sync.Once
	supportedFormats []string
	supportedSet     map[string]struct{}
)

// SupportedFormats returns the lower-case extensions (without dot) accepted
// by ValidateImage: the OCR allowlist intersected with the formats the decoder
// stack can read. The set is computed once per process.
//
// The returned slice is a copy and may be modified by the caller.
func SupportedFormats() []string {
	initSupportedFormats()
	out := make([]string, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

func initSupportedFormats() {
	supportedOnce.Do(func() {
		supportedSet = make(map[string]struct{}, len(ocrFormats))
		for _, ext := range ocrFormats {
			if decoderFormat(ext) == "" {
				continue
			}
			supportedSet[ext] = struct{}{}
			supportedFormats = append(supportedFormats, ext)
		}
		sort.Strings(supportedFormats)
	})
}

// IsSupportedFormat reports whether ext (with or without leading dot, any
// case) is a supported OCR input format.
func IsSupportedFormat(ext string) bool {
	initSupportedFormats()
	_, ok := supportedSet[normalizeExt(ext)]
	return ok
}

// ValidateImage reports whether path names an existing regular file whose
// extension is a supported format. File contents are not inspected.
func ValidateImage(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return IsSupportedFormat(filepath.Ext(path))
}

// FormatFromPath returns the decoder format name ("png", "jpeg", "tiff",
// "bmp", "gif", "webp") for the extension of path, or "" when unknown.
func FormatFromPath(path string) string {
	return decoderFormat(normalizeExt(filepath.Ext(path)))
}

func decoderFormat(ext string) string {
	if f, err := imaging.FormatFromExtension(ext); err == nil {
		return strings.ToLower(f.String())
	}
	return extraDecoders[ext]
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
