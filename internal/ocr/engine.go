package ocr

import (
	"os"
	"path/filepath"

	"github.com/mathscan/mathscan/internal/imaging"
)

// PageSegMode is a Tesseract page segmentation mode.
type PageSegMode int

const (
	// PSMAuto is fully automatic page segmentation without OSD.
	PSMAuto PageSegMode = 3
	// PSMSingleBlock assumes a single uniform block of text.
	PSMSingleBlock PageSegMode = 6
)

// Engine is the native recognition engine driven by an Adapter.
//
// Implementations are not safe for concurrent use; the Adapter and Session
// guarantee that only one call is in flight at a time.
type Engine interface {
	// Init loads language data. dataPath may be empty, in which case the
	// engine falls back to its own default search.
	Init(dataPath, language string) error
	SetLanguage(language string) error
	SetPageSegMode(mode PageSegMode) error
	SetVariable(name, value string) error
	SetImage(buf *imaging.Buffer) error

	// Text runs recognition on the current image and returns UTF-8 text.
	Text() (string, error)

	// MeanConfidence returns the mean word confidence (0-100) of the last
	// recognition.
	MeanConfidence() (float64, error)

	AvailableLanguages() ([]string, error)
	Version() string
	Close() error
}

// Tesseract variables set by ApplyConfig.
const (
	varEngineMode = "tessedit_ocr_engine_mode"
	varDPI        = "user_defined_dpi"
	varWhitelist  = "tessedit_char_whitelist"

	// engineModeLSTM selects the neural network recognizer.
	engineModeLSTM = "1"
)

// EquationWhitelist is the set of characters recognized in ModeEquations and
// ModeMixed.
const EquationWhitelist = "0123456789+-*/=()[]{}^_abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ .,"

// systemTessdataDirs are probed after the per-user locations.
var systemTessdataDirs = []string{
	"/usr/share/tesseract-ocr/5/tessdata",
	"/usr/share/tesseract-ocr/4.00/tessdata",
	"/usr/share/tesseract-ocr/tessdata",
	"/usr/share/tessdata",
	"/usr/local/share/tessdata",
	"/opt/homebrew/share/tessdata",
	"C:/Program Files/Tesseract-OCR/tessdata",
	"C:/tools/tesseract/tessdata",
}

// DefaultSearchPaths returns the tessdata directories probed when no
// explicit path is given: next to the executable, the working directory,
// the user config directory, then system locations.
func DefaultSearchPaths() []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		if real, err := filepath.EvalSymlinks(exe); err == nil {
			exe = real
		}
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "tessdata"))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(wd, "tessdata"))
	}
	if cfg, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(cfg, "mathscan", "tessdata"))
	}
	return append(dirs, systemTessdataDirs...)
}

// FindTessdata returns the first directory, explicit first and then each of
// candidates, that holds a .traineddata file for every component of
// language. It returns "" when none does.
func FindTessdata(explicit string, candidates []string, language string) string {
	dirs := candidates
	if explicit != "" {
		dirs = append([]string{explicit}, candidates...)
	}
	langs := Languages(language)
	if len(langs) == 0 {
		return ""
	}
	for _, dir := range dirs {
		if hasTraineddata(dir, langs) {
			return dir
		}
	}
	return ""
}

func hasTraineddata(dir string, langs []string) bool {
	for _, lang := range langs {
		info, err := os.Stat(filepath.Join(dir, lang+".traineddata"))
		if err != nil || !info.Mode().IsRegular() {
			return false
		}
	}
	return true
}
