package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var in io.Reader = os.Stdin

// SetInput overrides the prompt input. Nil restores stdin.
func SetInput(r io.Reader) {
	if r == nil {
		r = os.Stdin
	}
	in = r
}

// ReadSecret prompts on stderr and reads a line without echo when stdin is
// a terminal.
func ReadSecret(prompt string) (string, error) {
	fmt.Fprint(errOut, prompt+": ")

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(errOut)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Anything but y or yes is no.
func Confirm(prompt string) (bool, error) {
	fmt.Fprint(errOut, prompt+" [y/N]: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
