package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// promptDialog asks on a line-oriented terminal.
type promptDialog struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func newPromptDialog(std streams, assumeYes bool) *promptDialog {
	return &promptDialog{in: bufio.NewReader(std.in), out: std.err, assumeYes: assumeYes}
}

func (d *promptDialog) Notify(message, title string) {
	fmt.Fprintf(d.out, "%s: %s\n", title, message)
}

func (d *promptDialog) NotifyError(message, title string) {
	fmt.Fprintf(d.out, "%s: %s\n", strings.ToLower(title), message)
}

// Confirm defaults to no on empty input or EOF.
func (d *promptDialog) Confirm(message, title string) bool {
	if d.assumeYes {
		return true
	}
	fmt.Fprintf(d.out, "%s [y/N]: ", message)
	line, err := d.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(d.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// argPicker answers file prompts with paths given on the command line.
type argPicker struct {
	read  string
	write string
}

func (p argPicker) OpenForRead(string) (string, bool) {
	return p.read, p.read != ""
}

func (p argPicker) OpenForWrite(_ string, suggested string) (string, bool) {
	if p.write != "" {
		return p.write, true
	}
	return suggested, suggested != ""
}
