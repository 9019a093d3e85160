package tui

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/nuetzliches/routedit/internal/editor"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
)

func (m *Model) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	bodyHeight := max(height-5, 5)
	listWidth := max(width*2/5, 24)
	detailWidth := max(width-listWidth-4, 24)

	list := m.styles.pane.Width(listWidth - 2).Height(bodyHeight).Render(m.viewRoutes(bodyHeight))
	var right string
	if m.showDiff {
		right = m.viewDiff(bodyHeight)
	} else {
		right = m.viewDetail()
	}
	detail := m.styles.pane.Width(detailWidth - 2).Height(bodyHeight).Render(right)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, list, detail),
		m.viewStatus(),
		m.viewHelp(width),
	)
}

func (m *Model) viewHeader() string {
	name := "untitled"
	if p := m.watchedPath(); p != "" {
		name = filepath.Base(p)
	}
	head := m.styles.header.Render("routedit") + "  " + m.styles.normal.Render(name)
	if m.session.Dirty() {
		head += "  " + m.styles.dirty.Render("● modified")
	}
	return head
}

func (m *Model) viewRoutes(height int) string {
	model := m.session.Model()
	items := m.routes.Items()

	var b strings.Builder
	title := fmt.Sprintf("Routes (%d)", model.Len())
	if len(items) != model.Len() {
		title = fmt.Sprintf("Routes (%d/%d)", len(items), model.Len())
	}
	b.WriteString(m.styles.header.Render(title))
	b.WriteString("\n")
	if f := m.routes.UpstreamFilter(); f != "" {
		b.WriteString(m.styles.faint.Render("up ~ "+f) + "\n")
	}
	if f := m.routes.DownstreamFilter(); f != "" {
		b.WriteString(m.styles.faint.Render("down ~ "+f) + "\n")
	}
	if len(items) == 0 {
		b.WriteString(m.styles.faint.Render("no routes (a to add)"))
		return b.String()
	}

	sel := model.Selected()
	start := 0
	if idx := slices.Index(items, sel); idx >= height-2 {
		start = idx - (height - 3)
	}
	for _, r := range items[start:] {
		mark := " "
		if !r.Valid() {
			mark = m.styles.invalid.Render("!")
		}
		line := fmt.Sprintf("%s %s", displayTemplate(r.UpstreamPathTemplate()), m.styles.faint.Render("→ "+r.PrimaryHostSummary()))
		if r == sel {
			line = m.styles.selected.Render(fmt.Sprintf("%s → %s", displayTemplate(r.UpstreamPathTemplate()), r.PrimaryHostSummary()))
		}
		b.WriteString(mark + " " + line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func displayTemplate(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(empty)"
	}
	return s
}

func (m *Model) label(f field) string {
	if m.field == f {
		return m.styles.focused.Render(f.label()) + strings.Repeat(" ", max(14-len(f.label()), 1))
	}
	return m.styles.label.Render(f.label())
}

func (m *Model) row(b *strings.Builder, f field, value, errMsg string) {
	b.WriteString(m.label(f))
	b.WriteString(m.styles.normal.Render(value))
	if errMsg != "" {
		b.WriteString("  " + m.styles.invalid.Render(errMsg))
	}
	b.WriteString("\n")
}

func (m *Model) viewDetail() string {
	var b strings.Builder
	model := m.session.Model()
	r := model.Selected()

	if r == nil {
		b.WriteString(m.styles.faint.Render("no route selected") + "\n\n")
	} else {
		m.row(&b, fieldUpstream, r.UpstreamPathTemplate(), r.UpstreamError())
		m.row(&b, fieldDownstream, r.DownstreamPathTemplate(), r.DownstreamError())
		m.row(&b, fieldScheme, r.DownstreamScheme(), "")
		m.row(&b, fieldCaseSensitive, checkbox(r.CaseSensitive()), "")

		var methods []string
		for i, method := range model.MethodOptions() {
			item := checkbox(r.MethodSelected(method)) + " " + method
			if m.field == fieldMethods && i == m.methodCursor {
				item = m.styles.selected.Render(item)
			}
			methods = append(methods, item)
		}
		m.row(&b, fieldMethods, strings.Join(methods, " "), "")

		b.WriteString("\n")
		m.viewHosts(&b, r)
		b.WriteString("\n")

		auth := r.Auth()
		m.row(&b, fieldProviderKey, auth.ProviderKey(), "")
		cur, _ := auth.SelectedScope()
		var scopes []string
		for _, sc := range auth.Scopes() {
			if sc == cur {
				sc = m.styles.selected.Render(sc)
			}
			scopes = append(scopes, sc)
		}
		value := strings.Join(scopes, ", ")
		if p := auth.PendingScope(); p != "" {
			value += m.styles.faint.Render("  + " + p)
		}
		m.row(&b, fieldScopes, value, "")
		b.WriteString("\n")
	}
	m.row(&b, fieldBaseURL, model.Global().BaseURL(), "")
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) viewHosts(b *strings.Builder, r *editor.Route) {
	focused := m.field == fieldHost || m.field == fieldPort
	title := "Hosts"
	if focused {
		title = m.styles.focused.Render(title)
	} else {
		title = m.styles.faint.Render(title)
	}
	b.WriteString(title + "\n")
	if m.hosts == nil || m.hosts.Len() == 0 {
		b.WriteString(m.styles.faint.Render("  none (h to add)") + "\n")
		return
	}
	sel := r.SelectedHost()
	for _, h := range m.hosts.Items() {
		line := fmt.Sprintf("%s:%s", displayTemplate(h.Host()), h.PortText())
		prefix := "  "
		if h == sel {
			prefix = "› "
			if focused {
				part := "host"
				if m.field == fieldPort {
					part = "port"
				}
				line = m.styles.selected.Render(line) + m.styles.faint.Render(" editing "+part)
			}
		}
		b.WriteString(prefix + line)
		if msg := strings.TrimSpace(h.HostError() + " " + h.PortError()); msg != "" {
			b.WriteString("  " + m.styles.invalid.Render(msg))
		}
		b.WriteString("\n")
	}
}

func checkbox(v bool) string {
	if v {
		return "[x]"
	}
	return "[ ]"
}

func (m *Model) viewDiff(height int) string {
	diff, err := m.session.PendingDiff()
	if err != nil {
		return m.styles.invalid.Render(err.Error())
	}
	if diff == "" {
		return m.styles.faint.Render("no unsaved changes")
	}
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	if len(lines) > height {
		lines = append(lines[:height-1], m.styles.faint.Render(fmt.Sprintf("… %d more lines", len(lines)-height+1)))
	}
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = m.styles.header.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = m.styles.added.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = m.styles.removed.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewStatus() string {
	switch {
	case m.confirm != nil:
		return m.styles.warning.Render(m.confirm.message + " [y/N]")
	case m.mode != inputNone:
		return m.input.View()
	}
	parts := []string{m.styles.normal.Render(m.session.Status())}
	if m.notice != "" {
		parts = append(parts, m.styles.faint.Render(m.notice))
	}
	if m.lastError != "" {
		parts = append(parts, m.styles.invalid.Render(m.lastError))
	}
	if m.warning != "" {
		parts = append(parts, m.styles.warning.Render(m.warning))
	}
	for _, w := range m.session.Warnings() {
		parts = append(parts, m.styles.warning.Render(w))
	}
	return strings.Join(parts, "  ·  ")
}

// viewHelp dims the commands the gate currently disables.
func (m *Model) viewHelp(width int) string {
	var parts []string
	for _, cb := range m.keys.commandBindings() {
		h := cb.binding.Help()
		text := h.Key + " " + h.Desc
		if m.gate.Enabled(cb.cmd) {
			text = m.styles.help.Render(text)
		} else {
			text = m.styles.faint.Render(text)
		}
		parts = append(parts, text)
	}
	for _, b := range []key.Binding{m.keys.AddScope, m.keys.Edit, m.keys.Diff, m.keys.Save, m.keys.Open, m.keys.Quit} {
		h := b.Help()
		parts = append(parts, m.styles.help.Render(h.Key+" "+h.Desc))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(parts, "  "))
}
