package tuicmder

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/pulse/pkg/cliui"
	"github.com/papercomputeco/pulse/pkg/llm"
	"github.com/papercomputeco/pulse/pkg/utils"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dividerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("214")).Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	roleUserStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true)
	roleAsstStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("237")).
			PaddingRight(1)
)

// chrome is the number of rows taken by the header, rules, input and footer.
const chrome = 6

func (m *model) resize() {
	w, h := m.chatWidth(), m.height-chrome
	if h < 1 {
		h = 1
	}
	m.view.Width = w
	m.view.Height = h
	m.input.Width = max(w-lipgloss.Width(m.input.Prompt)-1, 10)
	m.help.Width = m.width
}

func (m model) chatWidth() int {
	if m.width <= 0 {
		return 80
	}
	return max(m.width-sidebarWidth-1, 20)
}

// refresh re-renders the conversation into the viewport and keeps it
// pinned to the bottom.
func (m *model) refresh() {
	m.view.SetContent(m.conversation())
	m.view.GotoBottom()
}

func (m *model) conversation() string {
	sess, ok := m.store.Current()
	if !ok {
		return mutedStyle.Render("No session selected. Type a message to start one, or press ctrl+n.")
	}

	width := m.chatWidth()
	blocks := make([]string, 0, len(sess.Messages)+1)
	for _, msg := range sess.Messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}

	if m.streaming && m.turnID == sess.ID {
		var b strings.Builder
		b.WriteString(roleAsstStyle.Render("assistant"))
		b.WriteString(" " + m.spinner.View() + "\n")
		b.WriteString(strings.Join(wrapText(m.partial, width), "\n"))
		for _, n := range m.notices {
			b.WriteString("\n" + cliui.Notice(n))
		}
		blocks = append(blocks, b.String())
	}

	if len(blocks) == 0 {
		return mutedStyle.Render("No messages yet.")
	}
	return strings.Join(blocks, "\n\n")
}

func (m *model) renderMessage(msg llm.Message, width int) string {
	if msg.Role == llm.RoleUser {
		return roleUserStyle.Render("you") + "\n" + strings.Join(wrapText(msg.Content, width), "\n")
	}

	header := roleAsstStyle.Render("assistant")
	if msg.Content == "" {
		return header + "\n" + mutedStyle.Render("(no response)")
	}
	if !m.markdown {
		return header + "\n" + strings.Join(wrapText(msg.Content, width), "\n")
	}

	cacheKey := fmt.Sprintf("%d:%s", width, msg.Content)
	if out, ok := m.rendered[cacheKey]; ok {
		return header + "\n" + out
	}
	out, err := cliui.RenderMarkdownWidth(msg.Content, width)
	if err != nil {
		return header + "\n" + msg.Content
	}
	out = strings.Trim(out, "\n")
	m.rendered[cacheKey] = out
	return header + "\n" + out
}

func (m model) View() string {
	sidebar := sidebarStyle.Render(strings.Join(padLines(m.sessionLines(), sidebarWidth-2, max(m.height-1, 1)), "\n"))

	chatLines := []string{
		renderHeaderLine(m.chatWidth(), titleStyle.Render(m.currentTitle()), mutedStyle.Render(m.svc.Mode().Label())),
		renderRule(m.chatWidth()),
		m.view.View(),
		renderRule(m.chatWidth()),
		m.input.View(),
		m.statusLine(),
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", strings.Join(chatLines, "\n"))
	return body + "\n" + mutedStyle.Render(m.help.View(m.keys))
}

func (m model) currentTitle() string {
	sess, ok := m.store.Current()
	if !ok {
		return "pulse"
	}
	return sess.Title
}

func (m model) sessionLines() []string {
	lines := []string{titleStyle.Render("sessions"), ""}

	summaries := m.store.List()
	if len(summaries) == 0 {
		return append(lines, mutedStyle.Render("none yet"))
	}

	for i, s := range summaries {
		label := utils.Truncate(s.Label(i), sidebarWidth-8)
		if m.streaming && s.ID == m.turnID {
			label += " " + m.spinner.View()
		}

		line := fmt.Sprintf("%s %s", marker(s.Selected), label)
		switch {
		case m.focus == focusList && i == m.cursor:
			line = highlightStyle.Render(line)
		case s.Selected:
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lines
}

func (m model) statusLine() string {
	if m.status != "" {
		return m.status
	}
	if m.streaming {
		return mutedStyle.Render(m.spinner.View() + " streaming from " + m.endpoint)
	}
	return mutedStyle.Render(m.endpoint)
}

func marker(selected bool) string {
	if selected {
		return "●"
	}
	return " "
}

func renderHeaderLine(width int, left, right string) string {
	lineWidth := width
	if lineWidth <= 0 {
		lineWidth = 80
	}
	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	if leftWidth+rightWidth+1 >= lineWidth {
		return strings.TrimSpace(left + " " + right)
	}
	return left + strings.Repeat(" ", lineWidth-leftWidth-rightWidth) + right
}

func renderRule(width int) string {
	if width <= 0 {
		width = 80
	}
	return dividerStyle.Render(strings.Repeat("─", width))
}

func padLines(lines []string, width, height int) []string {
	if height <= 0 {
		return []string{}
	}
	result := make([]string, 0, height)
	for _, line := range lines {
		w := lipgloss.Width(line)
		switch {
		case w > width:
			line = ansi.Truncate(line, width, "…")
		case w < width:
			line += strings.Repeat(" ", width-w)
		}
		result = append(result, line)
		if len(result) >= height {
			return result
		}
	}
	for len(result) < height {
		result = append(result, strings.Repeat(" ", max(width, 0)))
	}
	return result
}

// wrapText wraps on word boundaries and keeps explicit line breaks.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
				current += " " + word
				continue
			}
			lines = append(lines, current)
			current = word
		}
		lines = append(lines, current)
	}
	return lines
}
