package ocr

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode selects how the engine segments the page and which characters it
// may recognize.
type Mode int

const (
	// ModeAuto lets the engine pick the layout.
	ModeAuto Mode = iota
	// ModeText is tuned for prose.
	ModeText
	// ModeEquations treats the image as a single block and restricts
	// recognition to digits, operators, brackets and letters.
	ModeEquations
	// ModeMixed keeps automatic layout but applies the equation character set.
	ModeMixed
)

var modeNames = map[Mode]string{
	ModeAuto:      "auto",
	ModeText:      "text",
	ModeEquations: "equations",
	ModeMixed:     "mixed",
}

// String returns the lower-case mode name.
func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode converts a mode name (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return ModeAuto, fmt.Errorf("unknown OCR mode %q (want auto, text, equations or mixed)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid OCR mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MaxDPI is the largest DPI accepted by Config.Validate.
const MaxDPI = 2400

var languagePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\+[A-Za-z0-9_]+)*$`)

// Config holds the recognition settings of a Session.
//
// Config is a plain value; a Session keeps its own copy and changes only take
// effect through Session.SetConfig.
type Config struct {
	Mode Mode `json:"mode"`

	// Language is a Tesseract language code, or several joined with "+"
	// (for example "eng+deu").
	Language string `json:"language"`

	// DPI is passed to the engine as a resolution hint and drives rescaling
	// during preprocessing. Zero disables both.
	DPI int `json:"dpi"`

	PreprocessImage         bool `json:"preprocess_image"`
	EnableConfidenceScoring bool `json:"enable_confidence_scoring"`

	// MinimumConfidence is the pass mark (0-100) applied when confidence
	// scoring is enabled. A result exactly at the threshold passes.
	MinimumConfidence int `json:"minimum_confidence"`

	// AutoInvert flips light-on-dark images before recognition. Only
	// consulted when PreprocessImage is set.
	AutoInvert bool `json:"auto_invert"`
}

// DefaultConfig returns the settings used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeAuto,
		Language:                "eng",
		DPI:                     300,
		PreprocessImage:         true,
		EnableConfidenceScoring: true,
		MinimumConfidence:       60,
	}
}

// Validate checks that every field is within range.
func (c Config) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid OCR mode %d", int(c.Mode))
	}
	if !languagePattern.MatchString(c.Language) {
		return fmt.Errorf("invalid language %q", c.Language)
	}
	if c.DPI < 0 || c.DPI > MaxDPI {
		return fmt.Errorf("dpi %d out of range [0, %d]", c.DPI, MaxDPI)
	}
	if c.MinimumConfidence < 0 || c.MinimumConfidence > 100 {
		return fmt.Errorf("minimum confidence %d out of range [0, 100]", c.MinimumConfidence)
	}
	return nil
}

// Languages splits a "+"-joined language string into its components.
func Languages(language string) []string {
	parts := strings.Split(language, "+")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
