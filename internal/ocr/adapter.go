package ocr

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mathscan/mathscan/internal/imaging"
)

type engineState int

const (
	stateUninitialized engineState = iota
	stateInitializing
	stateReady
	stateFailed
)

func (s engineState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInitializing:
		return "initializing"
	case stateReady:
		return "ready"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Adapter owns one Engine and translates Config values into engine
// parameters.
//
// An Adapter is not safe for concurrent use. It must not be copied after
// first use.
type Adapter struct {
	_ noCopy

	engine      Engine
	state       engineState
	searchPaths []string
	dataPath    string
	language    string
	applied     Config
	log         zerolog.Logger
}

// NewAdapter wraps engine. searchPaths are the candidate tessdata directories
// probed by Init after any explicit path.
func NewAdapter(engine Engine, searchPaths []string, log zerolog.Logger) *Adapter {
	return &Adapter{
		engine:      engine,
		searchPaths: searchPaths,
		log:         log,
	}
}

// Init locates language data and starts the engine. If no candidate
// directory holds the data, the engine is started without a path and left
// to its own defaults.
func (a *Adapter) Init(dataPath, language string) error {
	if a.engine == nil {
		a.state = stateFailed
		return ErrNotInitialized
	}
	a.state = stateInitializing

	found := FindTessdata(dataPath, a.searchPaths, language)
	if found == "" {
		a.log.Warn().Str("language", language).Msg("no tessdata directory found, using engine default search path")
	} else {
		a.log.Debug().Str("path", found).Msg("using tessdata directory")
	}

	if err := a.engine.Init(found, language); err != nil {
		a.state = stateFailed
		return fmt.Errorf("failed to initialize tesseract (language %q): %w", language, err)
	}

	a.dataPath = found
	a.language = language
	a.applied = Config{}
	a.state = stateReady
	a.log.Info().Str("language", language).Str("tessdata", found).Msg("tesseract initialized")
	return nil
}

// Ready reports whether Init succeeded and Close has not been called.
func (a *Adapter) Ready() bool {
	return a.state == stateReady
}

// DataPath returns the tessdata directory chosen by Init, or "" when the
// engine default is used.
func (a *Adapter) DataPath() string {
	return a.dataPath
}

// Applied returns the configuration most recently applied to the engine.
func (a *Adapter) Applied() Config {
	return a.applied
}

// ApplyConfig pushes cfg into the engine.
func (a *Adapter) ApplyConfig(cfg Config) error {
	if !a.Ready() {
		return ErrNotInitialized
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Language != a.language {
		// With the engine default directory there is nothing to check here.
		if a.dataPath != "" && !hasTraineddata(a.dataPath, Languages(cfg.Language)) {
			return fmt.Errorf("%w: no language data for %q in %s", ErrConfiguration, cfg.Language, a.dataPath)
		}
		if err := a.engine.SetLanguage(cfg.Language); err != nil {
			return fmt.Errorf("failed to set language %q: %w", cfg.Language, err)
		}
		a.language = cfg.Language
	}

	if err := a.engine.SetPageSegMode(pageSegModeFor(cfg.Mode)); err != nil {
		return fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	vars := [][2]string{{varEngineMode, engineModeLSTM}}
	if cfg.DPI > 0 {
		vars = append(vars, [2]string{varDPI, strconv.Itoa(cfg.DPI)})
	}
	vars = append(vars, [2]string{varWhitelist, whitelistFor(cfg.Mode)})
	for _, v := range vars {
		if err := a.engine.SetVariable(v[0], v[1]); err != nil {
			return fmt.Errorf("failed to set %s: %w", v[0], err)
		}
	}

	a.applied = cfg
	a.log.Debug().
		Str("mode", cfg.Mode.String()).
		Str("language", cfg.Language).
		Int("dpi", cfg.DPI).
		Msg("configuration applied")
	return nil
}

// Recognize feeds buf to the engine and returns the recognized text. The
// mean confidence is only queried when confidence scoring is enabled in the
// applied configuration; otherwise it is zero.
func (a *Adapter) Recognize(buf *imaging.Buffer) (string, float64, error) {
	if !a.Ready() {
		return "", 0, ErrNotInitialized
	}
	if err := a.engine.SetImage(buf); err != nil {
		return "", 0, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := a.engine.Text()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrEngineFailure, err)
	}

	var confidence float64
	if a.applied.EnableConfidenceScoring {
		confidence, err = a.engine.MeanConfidence()
		if err != nil {
			return text, 0, fmt.Errorf("failed to read confidence: %w", err)
		}
	}
	return text, confidence, nil
}

// AvailableLanguages returns the installed language packs, or nil when the
// engine is not ready or cannot enumerate them.
func (a *Adapter) AvailableLanguages() []string {
	if !a.Ready() {
		return nil
	}
	langs, err := a.engine.AvailableLanguages()
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to list languages")
		return nil
	}
	return langs
}

// Version returns the engine version string.
func (a *Adapter) Version() string {
	if a.engine == nil {
		return ""
	}
	return a.engine.Version()
}

// Close releases the engine. The adapter is unusable afterwards.
func (a *Adapter) Close() error {
	if a.engine == nil {
		return nil
	}
	err := a.engine.Close()
	a.engine = nil
	a.state = stateUninitialized
	return err
}

func pageSegModeFor(m Mode) PageSegMode {
	switch m {
	case ModeEquations:
		return PSMSingleBlock
	default:
		return PSMAuto
	}
}

func whitelistFor(m Mode) string {
	switch m {
	case ModeEquations, ModeMixed:
		return EquationWhitelist
	default:
		return ""
	}
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

var _ sync.Locker = (*noCopy)(nil)
