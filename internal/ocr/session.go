package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathscan/mathscan/internal/imaging"
	"github.com/mathscan/mathscan/internal/logger"
)

// Stage identifies a step of the recognition pipeline for progress
// reporting.
type Stage string

const (
	StageQueued        Stage = "queued"
	StageLoading       Stage = "loading"
	StagePreprocessing Stage = "preprocessing"
	StageRecognizing   Stage = "recognizing"
	StageDone          Stage = "done"
)

var stagePercent = map[Stage]int{
	StageQueued:        0,
	StageLoading:       10,
	StagePreprocessing: 30,
	StageRecognizing:   60,
	StageDone:          100,
}

// Percent returns the overall completion (0-100) reached at the start of s.
func (s Stage) Percent() int {
	return stagePercent[s]
}

// ProgressFunc receives pipeline progress. It is called with the session
// lock held and must not call back into the session.
type ProgressFunc func(stage Stage, percent int)

// Request describes one recognition call. Exactly one of Path and Image
// should be set; Image wins when both are.
type Request struct {
	Path  string
	Image image.Image

	// Mode, when non-nil, overrides the configured mode for this call only.
	Mode *Mode

	Progress ProgressFunc
}

// Session is the entry point for text recognition. It owns one engine and
// serializes every operation on it through a single mutex.
//
// A Session must be created with NewSession and must not be copied.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	adapter *Adapter
	log     zerolog.Logger
}

type sessionOptions struct {
	engine      Engine
	dataPath    string
	searchPaths []string
	log         *zerolog.Logger
}

// Option configures NewSession.
type Option func(*sessionOptions)

// WithEngine uses engine instead of the default Tesseract engine.
func WithEngine(engine Engine) Option {
	return func(o *sessionOptions) { o.engine = engine }
}

// WithDataPath probes path for language data before the default locations.
func WithDataPath(path string) Option {
	return func(o *sessionOptions) { o.dataPath = path }
}

// WithSearchPaths replaces the default tessdata search locations.
func WithSearchPaths(paths []string) Option {
	return func(o *sessionOptions) { o.searchPaths = paths }
}

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *sessionOptions) { o.log = &l }
}

// NewSession starts the engine and applies cfg. It fails if cfg is invalid
// or the engine cannot be initialized; there is no usable session without
// an engine.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	o := sessionOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.searchPaths == nil {
		o.searchPaths = DefaultSearchPaths()
	}
	log := logger.WithComponent("ocr.session")
	if o.log != nil {
		log = *o.log
	}

	if err := cfg.Validate(); err != nil {
		return nil, newError("NewSession", KindConfigurationFailure, err, "")
	}

	engine := o.engine
	if engine == nil {
		engine = NewTesseractEngine()
	}

	adapter := NewAdapter(engine, o.searchPaths, log)
	if err := adapter.Init(o.dataPath, cfg.Language); err != nil {
		adapter.Close()
		return nil, newError("NewSession", KindNotInitialized, err, "")
	}
	if err := adapter.ApplyConfig(cfg); err != nil {
		adapter.Close()
		return nil, newError("NewSession", KindConfigurationFailure, err, "")
	}

	log.Info().Str("version", adapter.Version()).Msg("OCR session ready")
	return &Session{cfg: cfg, adapter: adapter, log: log}, nil
}

// PerformOCR recognizes the image file at path.
func (s *Session) PerformOCR(path string) Result {
	return s.Recognize(context.Background(), Request{Path: path})
}

// PerformOCRImage recognizes an already decoded image.
func (s *Session) PerformOCRImage(img image.Image) Result {
	return s.Recognize(context.Background(), Request{Image: img})
}

// PerformOCRWithMode recognizes the file at path using mode instead of the
// configured mode. The configured mode is restored before returning,
// whatever the outcome.
func (s *Session) PerformOCRWithMode(path string, mode Mode) Result {
	return s.Recognize(context.Background(), Request{Path: path, Mode: &mode})
}

// Recognize runs the full pipeline for req.
//
// ctx is checked before each pipeline stage up to the engine call. Once the
// engine has started, recognition runs to completion.
func (s *Session) Recognize(ctx context.Context, req Request) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res := s.recognizeLocked(ctx, req)
	res.ProcessingTime = time.Since(start)
	s.logResult(req, res)
	return res
}

func (s *Session) recognizeLocked(ctx context.Context, req Request) Result {
	if s.adapter == nil || !s.adapter.Ready() {
		return failure(KindNotInitialized, ErrNotInitialized.Error())
	}

	cfg := s.cfg
	if req.Mode != nil && *req.Mode != cfg.Mode {
		cfg.Mode = *req.Mode
		if err := s.adapter.ApplyConfig(cfg); err != nil {
			s.restoreConfig()
			return failure(KindConfigurationFailure, fmt.Sprintf("Failed to apply OCR mode %s: %v", *req.Mode, err))
		}
		defer s.restoreConfig()
	}

	progress := func(stage Stage) {
		if req.Progress != nil {
			req.Progress(stage, stage.Percent())
		}
	}

	if req.Image != nil {
		return s.recognizeImage(ctx, req.Image, cfg, progress)
	}
	if err := ctx.Err(); err != nil {
		return canceled(err)
	}
	progress(StageLoading)
	if !imaging.ValidateImage(req.Path) {
		return failure(KindInvalidImage, fmt.Sprintf("Invalid or unsupported image file: %s", req.Path))
	}
	img, err := imaging.Load(req.Path)
	if err != nil {
		s.log.Debug().Err(err).Str("path", req.Path).Msg("decode failed")
		return failure(KindLoadFailure, fmt.Sprintf("Failed to load image: %s", req.Path))
	}

	res := s.recognizeImage(ctx, img, cfg, progress)
	res.ImageSize = imaging.SizeOf(img)
	return res
}

// recognizeImage runs preprocess, marshal and recognize. Panics raised below
// this point are turned into failed results.
func (s *Session) recognizeImage(ctx context.Context, img image.Image, cfg Config, progress func(Stage)) (res Result) {
	var size imaging.Size
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("recovered from panic in OCR pipeline")
			res = failure(KindEngineFailure, fmt.Sprintf("OCR processing failed: %v", r))
			res.ImageSize = size
		}
	}()

	if isNilImage(img) || img.Bounds().Empty() {
		return failure(KindInvalidImage, "Invalid image provided")
	}
	size = imaging.SizeOf(img)

	src := img
	if cfg.PreprocessImage {
		if err := ctx.Err(); err != nil {
			return canceled(err)
		}
		progress(StagePreprocessing)
		src = imaging.Preprocess(img, imaging.PreprocessOptions{DPI: cfg.DPI, AutoInvert: cfg.AutoInvert})
	}

	buf, err := imaging.Marshal(src)
	if err != nil {
		res = failure(KindEngineFailure, fmt.Sprintf("OCR processing failed: %v", err))
		res.ImageSize = size
		return res
	}

	if err := ctx.Err(); err != nil {
		return canceled(err)
	}
	progress(StageRecognizing)
	text, confidence, err := s.adapter.Recognize(buf)
	if err != nil {
		msg := fmt.Sprintf("OCR processing failed: %v", err)
		if errors.Is(err, ErrEngineFailure) {
			msg = ErrEngineFailure.Error()
		}
		s.log.Warn().Err(err).Msg("engine error")
		res = failure(KindEngineFailure, msg)
		res.ImageSize = size
		return res
	}

	res = Result{Text: text, Confidence: confidence, ImageSize: size}
	switch {
	case !cfg.EnableConfidenceScoring:
		res.Success = true
	case confidence >= float64(cfg.MinimumConfidence):
		res.Success = true
	default:
		res.Kind = KindLowConfidence
		res.ErrorMessage = fmt.Sprintf("OCR confidence (%s%%) below threshold (%d%%)",
			formatPercent(confidence), cfg.MinimumConfidence)
	}
	progress(StageDone)
	return res
}

// restoreConfig reapplies the stored configuration after a temporary
// override.
func (s *Session) restoreConfig() {
	if err := s.adapter.ApplyConfig(s.cfg); err != nil {
		s.log.Error().Err(err).Msg("failed to restore OCR configuration")
	}
}

// Config returns a copy of the current configuration.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig validates cfg and applies it to the engine. On failure the
// previous configuration stays in effect and an *Error of kind
// KindConfigurationFailure is returned.
func (s *Session) SetConfig(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.adapter == nil || !s.adapter.Ready() {
		return newError("SetConfig", KindNotInitialized, ErrNotInitialized, "")
	}
	if err := s.adapter.ApplyConfig(cfg); err != nil {
		s.restoreConfig()
		s.log.Warn().Err(err).Msg("configuration rejected")
		return newError("SetConfig", KindConfigurationFailure, err, "")
	}
	s.cfg = cfg
	s.log.Info().
		Str("mode", cfg.Mode.String()).
		Str("language", cfg.Language).
		Int("dpi", cfg.DPI).
		Int("min_confidence", cfg.MinimumConfidence).
		Msg("OCR configuration updated")
	return nil
}

// IsInitialized reports whether the engine is running.
func (s *Session) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter != nil && s.adapter.Ready()
}

// AvailableLanguages returns the installed language packs. The result is
// empty, never nil, when the session is not initialized.
func (s *Session) AvailableLanguages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return []string{}
	}
	langs := s.adapter.AvailableLanguages()
	if langs == nil {
		return []string{}
	}
	return langs
}

// Version returns the engine version string.
func (s *Session) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return ""
	}
	return s.adapter.Version()
}

// DataPath returns the tessdata directory in use, or "" for the engine
// default.
func (s *Session) DataPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return ""
	}
	return s.adapter.DataPath()
}

// Close releases the engine. Later calls fail with KindNotInitialized.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return nil
	}
	err := s.adapter.Close()
	s.adapter = nil
	return err
}

func (s *Session) logResult(req Request, res Result) {
	op := "image"
	if req.Image == nil {
		op = req.Path
	}
	if res.Success {
		s.log.Info().
			Str("source", op).
			Int("text_length", len(res.Text)).
			Float64("confidence", res.Confidence).
			Int64("duration_ms", res.ProcessingTimeMs()).
			Msg("OCR SUCCESS")
		return
	}
	s.log.Warn().
		Str("source", op).
		Str("kind", string(res.Kind)).
		Str("error", res.ErrorMessage).
		Int64("duration_ms", res.ProcessingTimeMs()).
		Msg("OCR FAILED")
}

// ValidateImage reports whether path is an existing regular file with a
// supported image extension.
func ValidateImage(path string) bool {
	return imaging.ValidateImage(path)
}

// SupportedFormats returns the image extensions accepted by ValidateImage.
func SupportedFormats() []string {
	return imaging.SupportedFormats()
}

// isNilImage also catches a nil pointer stored in the interface, such as
// (*image.RGBA)(nil).
func isNilImage(img image.Image) bool {
	if img == nil {
		return true
	}
	v := reflect.ValueOf(img)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func canceled(err error) Result {
	return failure(KindCanceled, fmt.Sprintf("OCR canceled: %v", err))
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
