// Package ui renders human-facing CLI output: colored status tags, short
// hex forms and aligned tables on stdout, and prefixed warnings and
// errors on stderr. Color is enabled only for terminals and is disabled
// by NO_COLOR.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

// SetOutput redirects stdout and stderr rendering. Nil restores the default.
func SetOutput(stdout, stderr io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	out, errOut = stdout, stderr
}

// Stdout returns the current stdout writer.
func Stdout() io.Writer { return out }

var (
	stdoutColor = detectColor(os.Stdout)
	stderrColor = detectColor(os.Stderr)
)

func detectColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetColorEnabled overrides color detection.
func SetColorEnabled(enabled bool) {
	stdoutColor = enabled
	stderrColor = enabled
}

func ansi(on bool, code, s string) string {
	if !on {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func Bold(s string) string   { return ansi(stdoutColor, "1", s) }
func Dim(s string) string    { return ansi(stdoutColor, "2", s) }
func Green(s string) string  { return ansi(stdoutColor, "32", s) }
func Red(s string) string    { return ansi(stdoutColor, "31", s) }
func Yellow(s string) string { return ansi(stdoutColor, "33", s) }
func Cyan(s string) string   { return ansi(stdoutColor, "36", s) }

// OKTag, FailTag and WarnTag are single-character status markers.
func OKTag() string   { return Green("✓") }
func FailTag() string { return Red("✗") }
func WarnTag() string { return Yellow("⚠") }

// Section prints a bold title with a thin underline.
func Section(title string) {
	fmt.Fprintln(out, Bold(title))
	fmt.Fprintln(out, Dim(strings.Repeat("─", len([]rune(title)))))
}

// Printf writes to stdout.
func Printf(format string, args ...any) {
	fmt.Fprintf(out, format, args...)
}

// Warnf prints a warning to stderr.
func Warnf(format string, args ...any) {
	fmt.Fprintf(errOut, "%s %s\n", ansi(stderrColor, "33", "Warning:"), fmt.Sprintf(format, args...))
}

// Errorf prints an error to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprintf(errOut, "%s %s\n", ansi(stderrColor, "31", "Error:"), fmt.Sprintf(format, args...))
}

// Infof prints an unprefixed message to stderr.
func Infof(format string, args ...any) {
	fmt.Fprintf(errOut, format+"\n", args...)
}
