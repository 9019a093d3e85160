package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nuetzliches/routedit/internal/editor"
)

var (
	_ editor.Dialog     = (*promptDialog)(nil)
	_ editor.FilePicker = argPicker{}
)

func TestPromptDialog_Confirm(t *testing.T) {
	for input, want := range map[string]bool{
		"y\n":     true,
		"YES\n":   true,
		" yes ":   true,
		"n\n":     false,
		"\n":      false,
		"":        false,
		"maybe\n": false,
	} {
		var out bytes.Buffer
		d := newPromptDialog(streams{in: strings.NewReader(input), err: &out}, false)
		assert.Equal(t, want, d.Confirm("Overwrite?", editor.TitleConfirm), "input %q", input)
		assert.Contains(t, out.String(), "Overwrite? [y/N]")
	}
}

func TestPromptDialog_AssumeYes(t *testing.T) {
	var out bytes.Buffer
	d := newPromptDialog(streams{in: strings.NewReader(""), err: &out}, true)
	assert.True(t, d.Confirm("Overwrite?", editor.TitleConfirm))
	assert.Empty(t, out.String())

	d.NotifyError("disk full", editor.TitleError)
	assert.Equal(t, "error: disk full\n", out.String())
}

func TestArgPicker(t *testing.T) {
	p := argPicker{read: "in.json"}
	path, ok := p.OpenForRead(editor.FileFilter)
	assert.True(t, ok)
	assert.Equal(t, "in.json", path)

	path, ok = p.OpenForWrite(editor.FileFilter, "suggested.json")
	assert.True(t, ok)
	assert.Equal(t, "suggested.json", path)

	_, ok = argPicker{}.OpenForWrite(editor.FileFilter, "")
	assert.False(t, ok)
}
