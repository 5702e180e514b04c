package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathscan/mathscan/internal/imaging"
)

// fakeEngine is a scripted Engine that records every call and detects
// overlapping calls.
type fakeEngine struct {
	inFlight atomic.Int32
	overlaps atomic.Int32

	mu sync.Mutex

	// Script.
	initErr     error
	text        string
	textErr     error
	confidence  float64
	delay       time.Duration
	panicOnText bool
	failVar     string
	langs       []string

	// Record.
	initPath  string
	initLang  string
	language  string
	psm       PageSegMode
	vars      map[string]string
	images    []*imaging.Buffer
	textCalls int
	confCalls int
	langCalls int
	psmAtText []PageSegMode
	closed    bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{vars: make(map[string]string)}
}

func (f *fakeEngine) enter() func() {
	if f.inFlight.Add(1) > 1 {
		f.overlaps.Add(1)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeEngine) Init(dataPath, language string) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initPath, f.initLang = dataPath, language
	if f.initErr != nil {
		return f.initErr
	}
	f.language = language
	return nil
}

func (f *fakeEngine) SetLanguage(language string) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.langCalls++
	f.language = language
	return nil
}

func (f *fakeEngine) SetPageSegMode(mode PageSegMode) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.psm = mode
	return nil
}

func (f *fakeEngine) SetVariable(name, value string) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == f.failVar && value != "" {
		return errors.New("variable rejected")
	}
	f.vars[name] = value
	return nil
}

func (f *fakeEngine) SetImage(buf *imaging.Buffer) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, buf)
	return nil
}

func (f *fakeEngine) Text() (string, error) {
	defer f.enter()()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	f.psmAtText = append(f.psmAtText, f.psm)
	if f.panicOnText {
		panic("engine exploded")
	}
	return f.text, f.textErr
}

func (f *fakeEngine) MeanConfidence() (float64, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confCalls++
	return f.confidence, nil
}

func (f *fakeEngine) AvailableLanguages() ([]string, error) {
	defer f.enter()()
	return f.langs, nil
}

func (f *fakeEngine) Version() string { return "fake 1.0" }

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) imageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}

func (f *fakeEngine) variable(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vars[name]
}

// newTestSession creates a session over engine with no tessdata probing.
func newTestSession(t *testing.T, engine Engine, cfg Config) *Session {
	t.Helper()
	s, err := NewSession(cfg,
		WithEngine(engine),
		WithSearchPaths([]string{}),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// writePNG writes a solid-color PNG into dir and returns its path.
func writePNG(t *testing.T, dir, name string, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func noScoring() Config {
	cfg := DefaultConfig()
	cfg.EnableConfidenceScoring = false
	return cfg
}

func TestNewSession_InitFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.initErr = errors.New("no language data")

	s, err := NewSession(DefaultConfig(), WithEngine(engine), WithSearchPaths([]string{}), WithLogger(zerolog.Nop()))
	if err == nil {
		s.Close()
		t.Fatal("NewSession should fail when the engine cannot initialize")
	}
	if KindOf(err) != KindNotInitialized {
		t.Errorf("KindOf: got %q, want %q", KindOf(err), KindNotInitialized)
	}
	if !errors.Is(err, ErrNotInitialized) {
		t.Error("error should match ErrNotInitialized")
	}
	if !engine.closed {
		t.Error("engine should be closed after failed initialization")
	}
}

func TestNewSession_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinimumConfidence = 150

	_, err := NewSession(cfg, WithEngine(newFakeEngine()), WithSearchPaths([]string{}), WithLogger(zerolog.Nop()))
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestNewSession_UsesDataPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "eng.traineddata"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write traineddata: %v", err)
	}
	engine := newFakeEngine()
	s, err := NewSession(DefaultConfig(),
		WithEngine(engine),
		WithDataPath(dir),
		WithSearchPaths([]string{}),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer s.Close()

	if engine.initPath != dir {
		t.Errorf("engine init path: got %q, want %q", engine.initPath, dir)
	}
	if s.DataPath() != dir {
		t.Errorf("DataPath: got %q, want %q", s.DataPath(), dir)
	}

	cfg := s.Config()
	cfg.Language = "fra"
	if err := s.SetConfig(cfg); KindOf(err) != KindConfigurationFailure {
		t.Errorf("SetConfig to uninstalled language: got %v, want configuration failure", err)
	}
	if s.Config().Language != "eng" {
		t.Errorf("language after rejected SetConfig: got %q", s.Config().Language)
	}
}

func TestPerformOCR_InvalidImage(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hello"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"missing file", "missing.png"},
		{"unsupported extension", txt},
		{"directory", dir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			s := newTestSession(t, engine, DefaultConfig())

			res := s.PerformOCR(tt.path)
			if res.Success {
				t.Fatal("PerformOCR should fail")
			}
			if res.Kind != KindInvalidImage {
				t.Errorf("Kind: got %q, want %q", res.Kind, KindInvalidImage)
			}
			if !strings.Contains(res.ErrorMessage, "Invalid or unsupported image file") {
				t.Errorf("ErrorMessage: got %q", res.ErrorMessage)
			}
			if engine.imageCount() != 0 {
				t.Error("engine should not be invoked for invalid images")
			}
		})
	}
}

func TestPerformOCR_LoadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	engine := newFakeEngine()
	s := newTestSession(t, engine, DefaultConfig())

	res := s.PerformOCR(path)
	if res.Success || res.Kind != KindLoadFailure {
		t.Fatalf("got success=%v kind=%q, want load failure", res.Success, res.Kind)
	}
	if res.ErrorMessage != "Failed to load image: "+path {
		t.Errorf("ErrorMessage: got %q", res.ErrorMessage)
	}
	if engine.imageCount() != 0 {
		t.Error("engine should not be invoked when decoding fails")
	}
}

func TestPerformOCR_SolidImageWithoutScoring(t *testing.T) {
	path := writePNG(t, t.TempDir(), "solid.png", 100, 50, color.RGBA{200, 30, 30, 255})

	engine := newFakeEngine()
	engine.text = "  \n"
	s := newTestSession(t, engine, noScoring())

	res := s.PerformOCR(path)
	if !res.Success {
		t.Fatalf("PerformOCR failed: %s", res.ErrorMessage)
	}
	if res.ErrorMessage != "" || res.Kind != "" {
		t.Errorf("successful result carries error: %q (%q)", res.ErrorMessage, res.Kind)
	}
	if strings.TrimSpace(res.Text) != "" {
		t.Errorf("Text: got %q, want empty", res.Text)
	}
	if res.ImageSize != (imaging.Size{Width: 100, Height: 50}) {
		t.Errorf("ImageSize: got %+v, want {100 50}", res.ImageSize)
	}
	if engine.confCalls != 0 {
		t.Error("confidence should not be queried when scoring is disabled")
	}
}

func TestPerformOCR_ConfidenceThreshold(t *testing.T) {
	path := writePNG(t, t.TempDir(), "page.png", 40, 20, color.White)

	tests := []struct {
		name       string
		confidence float64
		minimum    int
		success    bool
		message    string
	}{
		{"above", 91.5, 60, true, ""},
		{"exactly at threshold", 60, 60, true, ""},
		{"below", 59.94, 60, false, "OCR confidence (59.9%) below threshold (60%)"},
		{"zero threshold", 0, 0, true, ""},
		{"low", 12, 80, false, "OCR confidence (12%) below threshold (80%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			engine.text = "x = 1"
			engine.confidence = tt.confidence

			cfg := DefaultConfig()
			cfg.MinimumConfidence = tt.minimum
			s := newTestSession(t, engine, cfg)

			res := s.PerformOCR(path)
			if res.Success != tt.success {
				t.Fatalf("Success: got %v, want %v (%s)", res.Success, tt.success, res.ErrorMessage)
			}
			if res.Confidence != tt.confidence {
				t.Errorf("Confidence: got %v, want %v", res.Confidence, tt.confidence)
			}
			if res.Text != "x = 1" {
				t.Errorf("Text: got %q, want %q", res.Text, "x = 1")
			}
			if !tt.success {
				if res.Kind != KindLowConfidence {
					t.Errorf("Kind: got %q, want %q", res.Kind, KindLowConfidence)
				}
				if res.ErrorMessage != tt.message {
					t.Errorf("ErrorMessage: got %q, want %q", res.ErrorMessage, tt.message)
				}
			}
		})
	}
}

func TestPerformOCRImage_Invalid(t *testing.T) {
	s := newTestSession(t, newFakeEngine(), DefaultConfig())

	tests := []struct {
		name string
		img  image.Image
	}{
		{"nil", nil},
		{"zero area", image.NewRGBA(image.Rect(0, 0, 0, 0))},
		{"typed nil", (*image.RGBA)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.PerformOCRImage(tt.img)
			if res.Success {
				t.Fatal("PerformOCRImage should fail")
			}
			if res.Kind != KindInvalidImage {
				t.Errorf("Kind: got %q (%q), want %q", res.Kind, res.ErrorMessage, KindInvalidImage)
			}
			if res.ErrorMessage == "" {
				t.Error("failed result has no ErrorMessage")
			}
		})
	}

	res := s.PerformOCRImage(nil)
	if res.Kind != KindInvalidImage || res.ErrorMessage != "Invalid image provided" {
		t.Errorf("nil image: got %q (%q)", res.ErrorMessage, res.Kind)
	}
}

func TestPerformOCRImage_EngineError(t *testing.T) {
	engine := newFakeEngine()
	engine.textErr = errors.New("no output buffer")
	s := newTestSession(t, engine, DefaultConfig())

	res := s.PerformOCRImage(image.NewGray(image.Rect(0, 0, 10, 10)))
	if res.Success {
		t.Fatal("PerformOCRImage should fail")
	}
	if res.Kind != KindEngineFailure {
		t.Errorf("Kind: got %q, want %q", res.Kind, KindEngineFailure)
	}
	if res.ErrorMessage != "Tesseract failed to extract text" {
		t.Errorf("ErrorMessage: got %q", res.ErrorMessage)
	}
	if res.ImageSize != (imaging.Size{Width: 10, Height: 10}) {
		t.Errorf("ImageSize: got %+v", res.ImageSize)
	}
}

func TestPerformOCRImage_PanicBecomesResult(t *testing.T) {
	engine := newFakeEngine()
	engine.panicOnText = true
	s := newTestSession(t, engine, DefaultConfig())

	res := s.PerformOCRImage(image.NewGray(image.Rect(0, 0, 10, 10)))
	if res.Success {
		t.Fatal("PerformOCRImage should fail after an engine panic")
	}
	if !strings.HasPrefix(res.ErrorMessage, "OCR processing failed:") {
		t.Errorf("ErrorMessage: got %q", res.ErrorMessage)
	}

	// The session lock must have been released.
	done := make(chan struct{})
	go func() {
		s.Config()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session lock not released after panic")
	}
}

func TestPerformOCRImage_Preprocessing(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 30, 20))

	tests := []struct {
		name       string
		preprocess bool
		dpi        int
		want       imaging.Size
	}{
		{"disabled", false, 600, imaging.Size{Width: 30, Height: 20}},
		{"base dpi", true, 300, imaging.Size{Width: 30, Height: 20}},
		{"double dpi", true, 600, imaging.Size{Width: 60, Height: 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			cfg := noScoring()
			cfg.PreprocessImage = tt.preprocess
			cfg.DPI = tt.dpi
			s := newTestSession(t, engine, cfg)

			res := s.PerformOCRImage(src)
			if !res.Success {
				t.Fatalf("PerformOCRImage failed: %s", res.ErrorMessage)
			}
			if engine.imageCount() != 1 {
				t.Fatalf("engine received %d images, want 1", engine.imageCount())
			}
			if got := engine.images[0].Size(); got != tt.want {
				t.Errorf("engine buffer size: got %+v, want %+v", got, tt.want)
			}
			// ImageSize reports the input, not the rescaled buffer.
			if res.ImageSize != (imaging.Size{Width: 30, Height: 20}) {
				t.Errorf("ImageSize: got %+v", res.ImageSize)
			}
		})
	}
}

func TestSetConfig_RoundTrip(t *testing.T) {
	s := newTestSession(t, newFakeEngine(), DefaultConfig())

	cfg := Config{
		Mode:                    ModeMixed,
		Language:                "eng",
		DPI:                     450,
		PreprocessImage:         false,
		EnableConfidenceScoring: true,
		MinimumConfidence:       75,
		AutoInvert:              true,
	}
	if err := s.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if got := s.Config(); got != cfg {
		t.Errorf("Config after SetConfig: got %+v, want %+v", got, cfg)
	}
}

func TestSetConfig_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		engine func(*fakeEngine)
	}{
		{"invalid dpi", func(c *Config) { c.DPI = -1 }, nil},
		{"invalid language", func(c *Config) { c.Language = "eng; rm" }, nil},
		{"invalid mode", func(c *Config) { c.Mode = Mode(42) }, nil},
		{
			"engine rejects whitelist",
			func(c *Config) { c.Mode = ModeEquations },
			func(f *fakeEngine) { f.failVar = varWhitelist },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newFakeEngine()
			if tt.engine != nil {
				tt.engine(engine)
			}
			s := newTestSession(t, engine, DefaultConfig())
			before := s.Config()

			cfg := before
			tt.mutate(&cfg)
			err := s.SetConfig(cfg)
			if err == nil {
				t.Fatal("SetConfig should fail")
			}
			if KindOf(err) != KindConfigurationFailure {
				t.Errorf("KindOf: got %q, want %q", KindOf(err), KindConfigurationFailure)
			}
			if got := s.Config(); got != before {
				t.Errorf("Config changed after rejected SetConfig: got %+v, want %+v", got, before)
			}
			if engine.psm != PSMAuto {
				t.Errorf("engine left in page mode %d after rejected SetConfig", engine.psm)
			}
		})
	}
}

func TestPerformOCRWithMode_RestoresMode(t *testing.T) {
	dir := t.TempDir()
	good := writePNG(t, dir, "eq.png", 20, 20, color.White)

	for _, path := range []string{good, filepath.Join(dir, "missing.png")} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			engine := newFakeEngine()
			s := newTestSession(t, engine, noScoring())

			s.PerformOCRWithMode(path, ModeEquations)

			if got := s.Config().Mode; got != ModeAuto {
				t.Errorf("Mode after call: got %s, want auto", got)
			}
			if engine.psm != PSMAuto {
				t.Errorf("engine page mode after call: got %d, want %d", engine.psm, PSMAuto)
			}
			if w := engine.variable(varWhitelist); w != "" {
				t.Errorf("whitelist after call: got %q, want empty", w)
			}
		})
	}

	engine := newFakeEngine()
	s := newTestSession(t, engine, noScoring())
	if res := s.PerformOCRWithMode(good, ModeEquations); !res.Success {
		t.Fatalf("PerformOCRWithMode failed: %s", res.ErrorMessage)
	}
	if len(engine.psmAtText) != 1 || engine.psmAtText[0] != PSMSingleBlock {
		t.Errorf("page mode during recognition: got %v, want [%d]", engine.psmAtText, PSMSingleBlock)
	}
}

func TestPerformOCRWithMode_InvalidMode(t *testing.T) {
	path := writePNG(t, t.TempDir(), "a.png", 10, 10, color.White)
	s := newTestSession(t, newFakeEngine(), noScoring())

	res := s.PerformOCRWithMode(path, Mode(99))
	if res.Success || res.Kind != KindConfigurationFailure {
		t.Errorf("got success=%v kind=%q, want configuration failure", res.Success, res.Kind)
	}
	if s.Config().Mode != ModeAuto {
		t.Error("mode not restored after rejected override")
	}
}

func TestPerformOCR_ConcurrentCallsDoNotOverlap(t *testing.T) {
	path := writePNG(t, t.TempDir(), "page.png", 20, 20, color.White)

	engine := newFakeEngine()
	engine.delay = 5 * time.Millisecond
	engine.text = "1+1=2"
	s := newTestSession(t, engine, noScoring())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				s.PerformOCR(path)
			} else {
				s.PerformOCRWithMode(path, ModeEquations)
			}
		}(i)
	}
	wg.Wait()

	if n := engine.overlaps.Load(); n != 0 {
		t.Errorf("engine saw %d overlapping calls", n)
	}
	if engine.textCalls != 8 {
		t.Errorf("textCalls: got %d, want 8", engine.textCalls)
	}
	if s.Config().Mode != ModeAuto {
		t.Error("mode not restored after concurrent overrides")
	}
}

func TestRecognize_CanceledContext(t *testing.T) {
	path := writePNG(t, t.TempDir(), "page.png", 20, 20, color.White)
	engine := newFakeEngine()
	s := newTestSession(t, engine, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Recognize(ctx, Request{Path: path})
	if res.Success || res.Kind != KindCanceled {
		t.Fatalf("got success=%v kind=%q, want canceled", res.Success, res.Kind)
	}
	if !errors.Is(res.Err(), ErrCanceled) {
		t.Errorf("Err(): got %v, want ErrCanceled", res.Err())
	}
	if engine.imageCount() != 0 {
		t.Error("engine should not run for a canceled request")
	}
}

func TestRecognize_Progress(t *testing.T) {
	path := writePNG(t, t.TempDir(), "page.png", 20, 20, color.White)
	s := newTestSession(t, newFakeEngine(), noScoring())

	var stages []Stage
	var percents []int
	res := s.Recognize(context.Background(), Request{
		Path: path,
		Progress: func(stage Stage, percent int) {
			stages = append(stages, stage)
			percents = append(percents, percent)
		},
	})
	if !res.Success {
		t.Fatalf("Recognize failed: %s", res.ErrorMessage)
	}

	want := []Stage{StageLoading, StagePreprocessing, StageRecognizing, StageDone}
	if len(stages) != len(want) {
		t.Fatalf("stages: got %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage %d: got %s, want %s", i, stages[i], want[i])
		}
		if i > 0 && percents[i] <= percents[i-1] {
			t.Errorf("progress not increasing: %v", percents)
		}
	}
}

func TestSession_Close(t *testing.T) {
	engine := newFakeEngine()
	engine.langs = []string{"eng", "osd"}
	s := newTestSession(t, engine, DefaultConfig())

	if !s.IsInitialized() {
		t.Fatal("session should be initialized")
	}
	if got := s.AvailableLanguages(); len(got) != 2 {
		t.Errorf("AvailableLanguages: got %v", got)
	}
	if s.Version() != "fake 1.0" {
		t.Errorf("Version: got %q", s.Version())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !engine.closed {
		t.Error("engine not closed")
	}
	if s.IsInitialized() {
		t.Error("session still initialized after Close")
	}

	res := s.PerformOCR("missing.png")
	if res.Kind != KindNotInitialized || res.ErrorMessage != "OCR processor not initialized" {
		t.Errorf("PerformOCR after Close: got %q (%q)", res.ErrorMessage, res.Kind)
	}
	if langs := s.AvailableLanguages(); langs == nil || len(langs) != 0 {
		t.Errorf("AvailableLanguages after Close: got %#v, want empty", langs)
	}
	if err := s.SetConfig(DefaultConfig()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("SetConfig after Close: got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestValidateImageAndSupportedFormats(t *testing.T) {
	path := writePNG(t, t.TempDir(), "a.png", 2, 2, color.White)
	if !ValidateImage(path) {
		t.Error("ValidateImage should accept a PNG file")
	}
	if ValidateImage("missing.png") {
		t.Error("ValidateImage should reject a missing file")
	}
	if len(SupportedFormats()) == 0 {
		t.Error("SupportedFormats returned nothing")
	}
}
