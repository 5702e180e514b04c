// Package ocr recognizes text in images using Tesseract.
//
// A Session owns one engine, applies a Config to it and turns every call
// into a Result. Session methods never panic and never return a bare error
// for recognition failures: the Result carries Success, an ErrorMessage and
// an ErrorKind instead. Only NewSession and SetConfig return errors.
//
// # Prerequisites
//
// The production engine wraps libtesseract through gosseract/v2 and needs
// cgo. Without cgo, NewTesseractEngine returns an engine whose Init fails
// with ErrEngineUnavailable.
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//   - macOS: brew install tesseract
//   - Other languages: tesseract-ocr-<lang> packages
//
// Language data is looked up in an explicit directory (WithDataPath or
// TESSDATA_PREFIX), then next to the executable, the working directory, the
// user config directory and the usual system locations. A directory is used
// only if it holds a .traineddata file for every language in Config.Language.
//
// # Modes
//
//   - ModeAuto, ModeText: automatic page segmentation
//   - ModeEquations: single text block, equation character whitelist
//   - ModeMixed: automatic page segmentation, equation character whitelist
//
// # Concurrency
//
// All Session methods take the same mutex for their full duration, so at
// most one call reaches the engine at a time. Long-running callers should
// use the worker package to run recognition in the background.
package ocr
