//go:build cgo

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/mathscan/mathscan/internal/imaging"
)

// tesseractEngine drives libtesseract through gosseract.
type tesseractEngine struct {
	client   *gosseract.Client
	dataPath string
}

// NewTesseractEngine returns the native Tesseract engine.
func NewTesseractEngine() Engine {
	return &tesseractEngine{}
}

func (e *tesseractEngine) Init(dataPath, language string) error {
	client := gosseract.NewClient()

	if dataPath != "" {
		if err := client.SetTessdataPrefix(dataPath); err != nil {
			client.Close()
			return fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(Languages(language)...); err != nil {
		client.Close()
		return fmt.Errorf("failed to set language: %w", err)
	}

	// gosseract initializes lazily; run once on a blank image so missing
	// language data fails here instead of on the first real image.
	if err := client.SetImageFromBytes(blankPNG()); err != nil {
		client.Close()
		return fmt.Errorf("failed to initialize tesseract: %w", err)
	}
	if _, err := client.Text(); err != nil {
		client.Close()
		return fmt.Errorf("failed to initialize tesseract: %w", err)
	}

	e.client = client
	e.dataPath = dataPath
	return nil
}

func (e *tesseractEngine) SetLanguage(language string) error {
	if e.client == nil {
		return ErrNotInitialized
	}
	return e.client.SetLanguage(Languages(language)...)
}

func (e *tesseractEngine) SetPageSegMode(mode PageSegMode) error {
	if e.client == nil {
		return ErrNotInitialized
	}
	return e.client.SetPageSegMode(gosseract.PageSegMode(mode))
}

func (e *tesseractEngine) SetVariable(name, value string) error {
	if e.client == nil {
		return ErrNotInitialized
	}
	return e.client.SetVariable(gosseract.SettableVariable(name), value)
}

// SetImage hands the buffer to Tesseract as a lossless PNG, since gosseract
// accepts encoded images only.
func (e *tesseractEngine) SetImage(buf *imaging.Buffer) error {
	if e.client == nil {
		return ErrNotInitialized
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, buf.Image()); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return e.client.SetImageFromBytes(encoded.Bytes())
}

func (e *tesseractEngine) Text() (string, error) {
	if e.client == nil {
		return "", ErrNotInitialized
	}
	return e.client.Text()
}

// MeanConfidence averages the confidence of every non-empty word box.
func (e *tesseractEngine) MeanConfidence() (float64, error) {
	if e.client == nil {
		return 0, ErrNotInitialized
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return 0, fmt.Errorf("failed to get word boxes: %w", err)
	}

	var sum float64
	var n int
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		sum += float64(box.Confidence)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// AvailableLanguages lists the .traineddata files of the tessdata directory
// in use, falling back to the engine's default directory.
func (e *tesseractEngine) AvailableLanguages() ([]string, error) {
	if e.dataPath == "" {
		return gosseract.GetAvailableLanguages()
	}
	matches, err := filepath.Glob(filepath.Join(e.dataPath, "*.traineddata"))
	if err != nil {
		return nil, err
	}
	langs := make([]string, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() {
			continue
		}
		langs = append(langs, strings.TrimSuffix(filepath.Base(m), ".traineddata"))
	}
	sort.Strings(langs)
	return langs, nil
}

func (e *tesseractEngine) Version() string {
	if e.client != nil {
		return e.client.Version()
	}
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}

func (e *tesseractEngine) Close() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func blankPNG() []byte {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: 255})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
