package routeconfig

import (
	"fmt"
	"strings"
)

// LineOp is one step of a line diff.
type LineOp struct {
	Kind  byte // '=', '-', '+'
	Text  string
	OldNo int
	NewNo int
}

// SplitLines splits s on LF after normalizing CRLF; a trailing newline does
// not produce an empty last line.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// DiffLines computes a longest-common-subsequence line diff.
func DiffLines(a, b []string) []LineOp {
	// lcs[i][j] is the LCS length of a[i:] and b[j:].
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				lcs[i][j] = lcs[i+1][j+1] + 1
			case lcs[i+1][j] >= lcs[i][j+1]:
				lcs[i][j] = lcs[i+1][j]
			default:
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	ops := make([]LineOp, 0, len(a)+len(b))
	i, j := 0, 0
	emit := func(kind byte, text string) {
		ops = append(ops, LineOp{Kind: kind, Text: text, OldNo: i + 1, NewNo: j + 1})
	}
	for i < len(a) || j < len(b) {
		switch {
		case i < len(a) && j < len(b) && a[i] == b[j]:
			emit('=', a[i])
			i++
			j++
		case j == len(b) || (i < len(a) && lcs[i+1][j] >= lcs[i][j+1]):
			emit('-', a[i])
			i++
		default:
			emit('+', b[j])
			j++
		}
	}
	return ops
}

// UnifiedDiff renders ops as a unified diff with the given context. It
// returns "" when nothing changed.
func UnifiedDiff(ops []LineOp, context int, oldName, newName string) string {
	var changed []int
	for k, op := range ops {
		if op.Kind != '=' {
			changed = append(changed, k)
		}
	}
	if len(changed) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", oldName, newName)

	for c := 0; c < len(changed); {
		start := max(changed[c]-context, 0)
		end := min(changed[c]+context+1, len(ops))
		// Merge following changes whose context overlaps this hunk.
		c++
		for c < len(changed) && changed[c]-context <= end {
			end = min(changed[c]+context+1, len(ops))
			c++
		}

		oldCount, newCount := 0, 0
		for _, op := range ops[start:end] {
			if op.Kind != '+' {
				oldCount++
			}
			if op.Kind != '-' {
				newCount++
			}
		}
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", ops[start].OldNo, oldCount, ops[start].NewNo, newCount)
		for _, op := range ops[start:end] {
			prefix := byte(' ')
			if op.Kind != '=' {
				prefix = op.Kind
			}
			b.WriteByte(prefix)
			b.WriteString(op.Text)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// FormatDiff parses both inputs, formats them canonically and returns their
// unified diff. context defaults to 3.
func FormatDiff(oldData, newData []byte, context int, oldName, newName string) (string, error) {
	if context <= 0 {
		context = 3
	}
	oldDoc, _, err := Parse(oldData)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", oldName, err)
	}
	newDoc, _, err := Parse(newData)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", newName, err)
	}
	return DiffDocuments(oldDoc, newDoc, context, oldName, newName)
}

// DiffDocuments diffs the canonical formatting of two documents.
func DiffDocuments(oldDoc, newDoc *Document, context int, oldName, newName string) (string, error) {
	oldText, err := Format(oldDoc)
	if err != nil {
		return "", fmt.Errorf("formatting %s: %w", oldName, err)
	}
	newText, err := Format(newDoc)
	if err != nil {
		return "", fmt.Errorf("formatting %s: %w", newName, err)
	}
	return DiffText(string(oldText), string(newText), context, oldName, newName), nil
}

func DiffText(oldText, newText string, context int, oldName, newName string) string {
	return UnifiedDiff(DiffLines(SplitLines(oldText), SplitLines(newText)), context, oldName, newName)
}
