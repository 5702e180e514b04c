//go:build !cgo

package ocr

import "github.com/mathscan/mathscan/internal/imaging"

// stubEngine stands in for Tesseract when the binary is built without cgo.
// Every call fails with ErrEngineUnavailable.
type stubEngine struct{}

// NewTesseractEngine returns an engine that cannot be initialized, because
// Tesseract bindings require cgo.
func NewTesseractEngine() Engine {
	return stubEngine{}
}

func (stubEngine) Init(string, string) error { return ErrEngineUnavailable }
func (stubEngine) SetLanguage(string) error { return ErrEngineUnavailable }
func (stubEngine) SetPageSegMode(PageSegMode) error { return ErrEngineUnavailable }
func (stubEngine) SetVariable(string, string) error { return ErrEngineUnavailable }
func (stubEngine) SetImage(*imaging.Buffer) error { return ErrEngineUnavailable }
func (stubEngine) Text() (string, error) { return "", ErrEngineUnavailable }
func (stubEngine) MeanConfidence() (float64, error) { return 0, ErrEngineUnavailable }
func (stubEngine) AvailableLanguages() ([]string, error) { return nil, ErrEngineUnavailable }
func (stubEngine) Version() string { return "unavailable (built without cgo)" }
func (stubEngine) Close() error { return nil }
