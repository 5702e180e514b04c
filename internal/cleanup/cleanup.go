// Package cleanup removes build artifacts and editor leftovers from a
// project tree.
//
// Entries are matched against fixed deny-lists: file extensions, file name
// suffixes, exact file names and directory names. Matching directories are
// removed whole and never descended into. Everything else is kept.
package cleanup

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

var unwantedExtensions = map[string]bool{
	".tmp": true, ".bak": true, ".swp": true, ".swo": true, ".log": true,
	".cache": true, ".old": true, ".orig": true, ".rej": true, ".patch": true,
	".diff": true, ".pyc": true, ".pyo": true, ".class": true, ".o": true,
	".obj": true,
}

// unwantedSuffixes are matched case-sensitively against the full file name.
var unwantedSuffixes = []string{"~", ".tmp", ".swp", ".swo", ".exe.bak", ".dll.bak", ".so.bak"}

var unwantedFiles = map[string]bool{
	".ds_store":   true,
	"thumbs.db":   true,
	"desktop.ini": true,
}

var unwantedDirectories = map[string]bool{
	"build": true, "debug": true, "release": true, ".vs": true, ".idea": true,
	"cmake-build-debug": true, "cmake-build-release": true,
	"cmake-build-relwithdebinfo": true, "cmake-build-minsizerel": true,
	"__pycache__": true, ".pytest_cache": true, "node_modules": true,
	".svn": true, ".hg": true, "bin": true, "obj": true, "out": true, "dist": true,
}

// IsUnwantedFile reports whether a file named name should be removed.
func IsUnwantedFile(name string) bool {
	if unwantedExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}
	for _, suffix := range unwantedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return unwantedFiles[strings.ToLower(name)] || name == ".gitignore.bak"
}

// IsUnwantedDirectory reports whether a directory named name should be
// removed.
func IsUnwantedDirectory(name string) bool {
	return unwantedDirectories[strings.ToLower(name)]
}

// Options configures a Cleaner.
type Options struct {
	// DryRun lists matches without removing anything.
	DryRun bool

	// Out receives the human-readable report. Defaults to os.Stdout.
	Out io.Writer

	Logger *zerolog.Logger
}

// Summary totals one run.
type Summary struct {
	Files    int
	Dirs     int
	Bytes    int64
	Errors   int
	Duration time.Duration
	DryRun   bool
}

// Cleaner walks a tree and removes unwanted entries.
type Cleaner struct {
	opts Options
	log  zerolog.Logger

	ok   *color.Color
	dry  *color.Color
	fail *color.Color
}

// New returns a Cleaner for opts.
func New(opts Options) *Cleaner {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Cleaner{
		opts: opts,
		log:  log,
		ok:   color.New(color.FgGreen),
		dry:  color.New(color.FgYellow),
		fail: color.New(color.FgRed),
	}
}

// Run cleans root and returns the totals. Failures on single entries are
// reported and counted but do not stop the walk; only an unreadable root
// is returned as an error.
func (c *Cleaner) Run(root string) (Summary, error) {
	sum := Summary{DryRun: c.opts.DryRun}
	info, err := os.Stat(root)
	if err != nil {
		return sum, fmt.Errorf("cleanup: %w", err)
	}
	if !info.IsDir() {
		return sum, fmt.Errorf("cleanup: %s is not a directory", root)
	}

	start := time.Now()
	c.cleanDir(root, &sum)
	sum.Duration = time.Since(start)

	c.log.Info().
		Str("root", root).
		Bool("dry_run", sum.DryRun).
		Int("files", sum.Files).
		Int("dirs", sum.Dirs).
		Int64("bytes", sum.Bytes).
		Int("errors", sum.Errors).
		Msg("cleanup finished")
	return sum, nil
}

func (c *Cleaner) cleanDir(dir string, sum *Summary) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		sum.Errors++
		c.fail.Fprintf(c.opts.Out, "✗ Error reading directory %s: %v\n", dir, err)
		return
	}

	var doomed []fs.DirEntry
	for _, e := range entries {
		switch {
		case e.IsDir() && IsUnwantedDirectory(e.Name()):
			doomed = append(doomed, e)
		case e.IsDir():
			c.cleanDir(filepath.Join(dir, e.Name()), sum)
		case e.Type().IsRegular() && IsUnwantedFile(e.Name()):
			doomed = append(doomed, e)
		}
	}

	for _, e := range doomed {
		path := filepath.Join(dir, e.Name())
		size := sizeOf(path)
		kind := "file"
		if e.IsDir() {
			kind = "directory"
		}

		if c.opts.DryRun {
			c.dry.Fprintf(c.opts.Out, "◇ Would delete %s: %s (%s)\n", kind, path, FormatSize(size))
		} else {
			if err := os.RemoveAll(path); err != nil {
				sum.Errors++
				c.fail.Fprintf(c.opts.Out, "✗ Error deleting %s: %v\n", path, err)
				continue
			}
			c.ok.Fprintf(c.opts.Out, "✓ Deleted %s: %s (%s)\n", kind, path, FormatSize(size))
		}

		if e.IsDir() {
			sum.Dirs++
		} else {
			sum.Files++
		}
		sum.Bytes += size
	}
}

// sizeOf returns the size of a file, or the total size of regular files
// under a directory. Unreadable entries count as zero.
func sizeOf(path string) int64 {
	var total int64
	filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// FormatSize renders n bytes with one decimal in B, KB, MB or GB.
func FormatSize(n int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, units[unit])
}

// WriteSummary prints the totals of a run.
func WriteSummary(w io.Writer, sum Summary) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\nCLEANUP SUMMARY:\n%s\n", rule, rule)
	fmt.Fprintf(w, "Files deleted:       %d\n", sum.Files)
	fmt.Fprintf(w, "Directories deleted: %d\n", sum.Dirs)
	fmt.Fprintf(w, "Total space freed:   %s\n", FormatSize(sum.Bytes))
	fmt.Fprintf(w, "%s\n", rule)
	fmt.Fprintf(w, "Cleanup completed in %d ms.\n", sum.Duration.Milliseconds())

	switch {
	case sum.Files == 0 && sum.Dirs == 0:
		color.New(color.FgGreen).Fprintln(w, "\n✓ Project directory is already clean!")
	case sum.DryRun:
		color.New(color.FgYellow).Fprintln(w, "\n✓ Run without --dry-run to actually delete these files.")
	}
}
