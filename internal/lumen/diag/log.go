package diag

import (
	"io"
	"log/slog"
	"os"
	"regexp"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is lumen's structured logger: a thin decoration over log/slog,
// in the shape go-ethereum's own log package decorates slog with
// terminal colorization and rotating file output.
type Logger struct {
	*slog.Logger
}

// Options configures where and how the logger writes.
type Options struct {
	// Level is the minimum level to emit.
	Level slog.Level
	// FilePath, if set, enables a rotating file sink alongside the
	// terminal sink.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Color forces (or disables) terminal colorization, overriding
	// auto-detection.
	Color *bool
}

// NewLogger builds a Logger writing level-filtered text records to stderr
// (through a colorable writer) and, optionally, a size/age-rotated file.
func NewLogger(opts Options) *Logger {
	var writers []io.Writer

	termOut := colorable.NewColorableStderr()
	useColor := color.NoColor == false
	if opts.Color != nil {
		useColor = *opts.Color
	}
	writers = append(writers, &colorWriter{w: termOut, enabled: useColor})

	if opts.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
		})
	}

	var out io.Writer = io.MultiWriter(writers...)
	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.Level})
	return &Logger{Logger: slog.New(h)}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// colorWriter passes records through unchanged when enabled and strips
// ANSI escape codes from them when disabled; it adds no color of its own.
// It exists so the Options.Color override can disable ANSI codes
// deterministically even when stderr is a TTY (useful under test).
type colorWriter struct {
	w       io.Writer
	enabled bool
}

func (c *colorWriter) Write(p []byte) (int, error) {
	if !c.enabled {
		return c.w.Write(stripANSI(p))
	}
	return c.w.Write(p)
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

func stripANSI(p []byte) []byte {
	return ansiEscape.ReplaceAll(p, nil)
}

// Default is a package-level logger writing to stderr at Info level,
// used by components that don't thread a *Logger through explicitly
// (e.g. panic rendering in a REPL-like embedding).
var Default = NewLogger(Options{Level: slog.LevelInfo})

// RenderPanic writes a human-facing, colorized rendering of a Panic to w,
// using red for the kind and dim for the span chain — the terminal
// diagnostics surface named in SPEC_FULL.md §1.1.
func RenderPanic(w io.Writer, p *Panic) {
	red := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)
	red.Fprintf(w, "panic: %s: %s\n", p.Kind, p.Message)
	for _, s := range p.Spans {
		dim.Fprintf(w, "  at %s\n", s)
	}
}

func init() {
	if os.Getenv("LUMEN_NO_COLOR") != "" {
		color.NoColor = true
	}
}
