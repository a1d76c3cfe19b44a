package tuicmder

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	bubbletea "github.com/charmbracelet/bubbletea"

	"github.com/papercomputeco/pulse/pkg/chat"
	"github.com/papercomputeco/pulse/pkg/cliui"
	"github.com/papercomputeco/pulse/pkg/llm"
	"github.com/papercomputeco/pulse/pkg/session"
	"github.com/papercomputeco/pulse/pkg/stream"
)

type focus int

const (
	focusInput focus = iota
	focusList
)

// sidebarWidth is the width of the session list, borders included.
const sidebarWidth = 30

type keyMap struct {
	Send   key.Binding
	Focus  key.Binding
	Up     key.Binding
	Down   key.Binding
	New    key.Binding
	Delete key.Binding
	Mode   key.Binding
	Stop   key.Binding
	Scroll key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Focus, k.New, k.Delete, k.Mode, k.Stop, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Send, k.Focus, k.Up, k.Down}, {k.New, k.Delete, k.Mode, k.Stop, k.Scroll, k.Quit}}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Send:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Focus:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "sessions")),
		Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		New:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new")),
		Delete: key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "delete")),
		Mode:   key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "mode")),
		Stop:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
		Scroll: key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// Stream events travel from the turn goroutine to Update over a channel
// that waitForEvent drains one message at a time.
type (
	snapshotMsg struct {
		id   session.ID
		text string
	}

	noticeMsg struct {
		id  session.ID
		msg string
	}

	turnDoneMsg struct {
		id    session.ID
		reply llm.Message
		err   error
	}
)

type model struct {
	ctx      context.Context
	svc      *chat.Service
	store    *session.Store
	endpoint string

	keys    keyMap
	help    help.Model
	input   textinput.Model
	view    viewport.Model
	spinner spinner.Model

	focus  focus
	cursor int
	width  int
	height int

	// markdown renders committed assistant messages with glamour.
	markdown bool
	rendered map[string]string

	// The in-flight turn, if any.
	streaming bool
	turnID    session.ID
	partial   string
	notices   []string
	events    chan bubbletea.Msg
	cancel    context.CancelFunc

	// status is the one-line outcome of the last action.
	status string
}

func newModel(ctx context.Context, svc *chat.Service, endpoint string) model {
	input := textinput.New()
	input.Placeholder = "Send a message..."
	input.Prompt = cliui.UserPrompt
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return model{
		ctx:      ctx,
		svc:      svc,
		store:    svc.Store(),
		endpoint: endpoint,
		keys:     defaultKeyMap(),
		help:     help.New(),
		input:    input,
		view:     viewport.New(80, 20),
		spinner:  sp,
		rendered: map[string]string{},
	}
}

func (m model) Init() bubbletea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refresh()
		return m, nil

	case snapshotMsg:
		if msg.id == m.turnID {
			m.partial = msg.text
		}
		m.refresh()
		return m, waitForEvent(m.events)

	case noticeMsg:
		if msg.id == m.turnID {
			m.notices = append(m.notices, msg.msg)
		}
		m.refresh()
		return m, waitForEvent(m.events)

	case turnDoneMsg:
		return m.finishTurn(msg), nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd bubbletea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, bubbletea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.streaming && m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		return m.toggleFocus(), nil

	case key.Matches(msg, m.keys.New):
		m.store.Create("")
		m.cursor = len(m.store.List()) - 1
		m.status = ""
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		return m.deleteHighlighted(), nil

	case key.Matches(msg, m.keys.Mode):
		if err := m.svc.SetMode(m.svc.Mode().Next()); err != nil {
			m.status = err.Error()
		}
		return m, nil

	case key.Matches(msg, m.keys.Scroll):
		var cmd bubbletea.Cmd
		m.view, cmd = m.view.Update(msg)
		return m, cmd
	}

	if m.focus == focusList {
		switch {
		case key.Matches(msg, m.keys.Up):
			m.cursor = clamp(m.cursor-1, m.store.Len()-1)
		case key.Matches(msg, m.keys.Down):
			m.cursor = clamp(m.cursor+1, m.store.Len()-1)
		case key.Matches(msg, m.keys.Send):
			return m.selectHighlighted(), nil
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Send) {
		return m.send()
	}

	var cmd bubbletea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) toggleFocus() model {
	if m.focus == focusInput {
		m.focus = focusList
		m.input.Blur()
		if id, ok := m.store.Selected(); ok {
			m.cursor = m.indexOf(id)
		}
		return m
	}
	m.focus = focusInput
	m.input.Focus()
	return m
}

func (m model) selectHighlighted() model {
	summaries := m.store.List()
	if len(summaries) == 0 {
		return m
	}
	m.cursor = clamp(m.cursor, len(summaries)-1)
	if err := m.store.Select(summaries[m.cursor].ID); err != nil {
		m.status = err.Error()
		return m
	}
	m.focus = focusInput
	m.input.Focus()
	m.status = ""
	m.refresh()
	return m
}

func (m model) deleteHighlighted() model {
	summaries := m.store.List()
	if len(summaries) == 0 {
		return m
	}

	idx := clamp(m.cursor, len(summaries)-1)
	if m.focus == focusInput {
		// Outside the list the current session is the one to go.
		id, ok := m.store.Selected()
		if !ok {
			return m
		}
		idx = m.indexOf(id)
	}
	target := summaries[idx]

	if err := m.store.Delete(target.ID); err != nil {
		m.status = err.Error()
		return m
	}
	m.cursor = clamp(m.cursor, m.store.Len()-1)
	m.status = "Deleted " + target.Label(idx)
	m.refresh()
	return m
}

// send starts a turn on the current session, creating one when needed.
func (m model) send() (bubbletea.Model, bubbletea.Cmd) {
	text := m.input.Value()
	if text == "" {
		return m, nil
	}
	if m.streaming {
		m.status = chat.ErrTurnInProgress.Error()
		return m, nil
	}

	id := m.store.EnsureCurrent("")
	m.cursor = m.indexOf(id)
	m.input.Reset()

	ctx, cancel := context.WithCancel(m.ctx)
	m.streaming = true
	m.turnID = id
	m.partial = ""
	m.notices = nil
	m.status = ""
	m.cancel = cancel
	m.events = make(chan bubbletea.Msg, 16)

	go runTurn(ctx, m.svc, id, text, m.events)

	m.refresh()
	return m, bubbletea.Batch(waitForEvent(m.events), m.spinner.Tick)
}

func (m model) finishTurn(msg turnDoneMsg) model {
	if m.cancel != nil {
		m.cancel()
	}
	m.streaming = false
	m.cancel = nil
	m.events = nil
	m.partial = ""

	switch {
	case msg.err == nil:
		m.status = ""
	case errors.Is(msg.err, context.Canceled):
		m.status = "Response stopped"
	default:
		m.status = cliui.StreamFailure(msg.err)
	}

	m.refresh()
	return m
}

// runTurn submits one turn and forwards its progress to events. The final
// message is always a turnDoneMsg.
func runTurn(ctx context.Context, svc *chat.Service, id session.ID, text string, events chan<- bubbletea.Msg) {
	send := func(msg bubbletea.Msg) {
		select {
		case events <- msg:
		case <-ctx.Done():
		}
	}

	obs := stream.ObserverFuncs{
		OnSnapshot: func(s string) { send(snapshotMsg{id: id, text: s}) },
		OnNotice:   func(n string) { send(noticeMsg{id: id, msg: n}) },
	}

	reply, err := svc.Submit(ctx, id, text, obs)

	// Sent regardless of cancellation so the model always leaves the
	// streaming state.
	events <- turnDoneMsg{id: id, reply: reply, err: err}
}

func waitForEvent(events <-chan bubbletea.Msg) bubbletea.Cmd {
	if events == nil {
		return nil
	}
	return func() bubbletea.Msg {
		return <-events
	}
}

func (m model) indexOf(id session.ID) int {
	for i, s := range m.store.List() {
		if s.ID == id {
			return i
		}
	}
	return 0
}

func clamp(value, upper int) int {
	if value < 0 || upper < 0 {
		return 0
	}
	if value > upper {
		return upper
	}
	return value
}
