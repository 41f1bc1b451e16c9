package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when stdin closes before a line is read.
var ErrNoInput = errors.New("no input")

var input io.Reader = os.Stdin

var reader *bufio.Reader

func lineReader() *bufio.Reader {
	if reader == nil {
		reader = bufio.NewReader(input)
	}
	return reader
}

// ReadLine prints label and returns the trimmed line typed by the user.
func ReadLine(label string) (string, error) {
	fmt.Fprintf(Output, "%s%s:%s ", Bold, label, Reset)
	line, err := lineReader().ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadSecret reads a line without echo when stdin is a terminal and falls
// back to ReadLine otherwise.
func ReadSecret(label string) (string, error) {
	f, ok := input.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return ReadLine(label)
	}
	fmt.Fprintf(Output, "%s%s:%s ", Bold, label, Reset)
	raw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(Output)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Confirm asks a yes/no question; anything but y or yes is no.
func Confirm(question string) bool {
	answer, err := ReadLine(question + " [y/N]")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// SetInput replaces stdin for prompts and drops anything already buffered.
func SetInput(r io.Reader) {
	input = r
	reader = nil
}
