// Package tui is the terminal front end for the todo API. It renders the
// client cache and turns key presses into controller actions.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"todoTracker/internal/client"
	"todoTracker/internal/models/todo"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	doneStyle      = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Faint(true)
	priorityStyles = map[todo.Priority]lipgloss.Style{
		todo.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		todo.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		todo.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeEdit
)

// changedMsg is sent whenever the controller reports a cache or error change.
type changedMsg struct{}

type resultMsg struct {
	op  string
	err error
}

const opCreated = "Todo created"

type field int

const (
	fieldTitle field = iota
	fieldDescription
	fieldPriority
	fieldCount
)

// form holds the add and edit inputs. Tab moves focus between fields.
type form struct {
	title       []rune
	description []rune
	priority    todo.Priority
	focus       field
}

func (f *form) reset(t todo.Todo) {
	f.title = []rune(t.Title)
	f.description = []rune(t.Description)
	f.priority = t.Priority
	if !f.priority.Valid() {
		f.priority = todo.PriorityMedium
	}
	f.focus = fieldTitle
}

// text returns the focused text field, or nil when priority has focus.
func (f *form) text() *[]rune {
	switch f.focus {
	case fieldTitle:
		return &f.title
	case fieldDescription:
		return &f.description
	}
	return nil
}

type Model struct {
	ctx    context.Context
	ctrl   *client.Controller
	cursor int
	mode   mode
	form   form
	editID string
	orig   todo.Todo
	last   string
}

func NewModel(ctx context.Context, ctrl *client.Controller) *Model {
	return &Model{ctx: ctx, ctrl: ctrl}
}

// Run starts the program on the terminal and blocks until the user quits.
func Run(ctx context.Context, ctrl *client.Controller) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("tui requires a TTY")
	}

	model := NewModel(ctx, ctrl)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := ctrl.Subscribe(func() { go program.Send(changedMsg{}) })
	defer unsubscribe()

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return m.load()
}

// rows is the display order: pending first, then completed.
func (m *Model) rows() []todo.Todo {
	pending, completed := m.ctrl.Cache().Partition()
	return append(pending, completed...)
}

func (m *Model) selected() (todo.Todo, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return todo.Todo{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	case changedMsg:
		m.clampCursor()
	case resultMsg:
		m.clampCursor()
		switch {
		case msg.err == nil:
			m.last = msg.op
			if msg.op == opCreated {
				m.cursor = 0
			}
		case errors.Is(msg.err, client.ErrStale), errors.Is(msg.err, client.ErrClosed):
		default:
			m.last = ""
		}
	}
	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.ctrl.Close()
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "r":
		return m, m.load()
	case "a":
		m.mode = modeAdd
		m.form.reset(todo.Todo{})
	case "e":
		if t, ok := m.selected(); ok {
			m.mode = modeEdit
			m.editID = t.ID
			m.orig = t
			m.form.reset(t)
		}
	case " ":
		if t, ok := m.selected(); ok {
			return m, m.run("Todo updated", func(ctx context.Context) error {
				_, err := m.ctrl.Toggle(ctx, t.ID)
				return err
			})
		}
	case "p":
		if t, ok := m.selected(); ok {
			next := t.Priority.Next()
			return m, m.run("Priority set to "+string(next), func(ctx context.Context) error {
				_, err := m.ctrl.Update(ctx, t.ID, todo.Patch{Priority: todo.Some(next)})
				return err
			})
		}
	case "d":
		if t, ok := m.selected(); ok {
			return m, m.run("Todo deleted", func(ctx context.Context) error {
				return m.ctrl.Delete(ctx, t.ID)
			})
		}
	}
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.ctrl.Close()
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.form.reset(todo.Todo{})
		return m, nil
	case tea.KeyTab:
		m.form.focus = (m.form.focus + 1) % fieldCount
		return m, nil
	case tea.KeyShiftTab:
		m.form.focus = (m.form.focus + fieldCount - 1) % fieldCount
		return m, nil
	case tea.KeyEnter:
		return m, m.submit()
	}

	if m.form.focus == fieldPriority {
		m.updatePriority(msg)
		return m, nil
	}

	input := m.form.text()
	switch msg.Type {
	case tea.KeyBackspace:
		if len(*input) > 0 {
			*input = (*input)[:len(*input)-1]
		}
	case tea.KeySpace:
		*input = append(*input, ' ')
	case tea.KeyRunes:
		*input = append(*input, msg.Runes...)
	}
	return m, nil
}

// updatePriority handles keys while the priority field has focus: arrows and
// space cycle, l/m/h pick directly.
func (m *Model) updatePriority(msg tea.KeyMsg) {
	switch msg.String() {
	case "right", " ":
		m.form.priority = m.form.priority.Next()
	case "left":
		m.form.priority = m.form.priority.Next().Next()
	case "l":
		m.form.priority = todo.PriorityLow
	case "m":
		m.form.priority = todo.PriorityMedium
	case "h":
		m.form.priority = todo.PriorityHigh
	}
}

func (m *Model) submit() tea.Cmd {
	title := strings.TrimSpace(string(m.form.title))
	description := strings.TrimSpace(string(m.form.description))
	priority := m.form.priority
	current, id, orig := m.mode, m.editID, m.orig
	m.mode = modeBrowse
	m.form.reset(todo.Todo{})
	m.editID = ""
	m.orig = todo.Todo{}

	if title == "" {
		return nil
	}

	if current == modeEdit {
		var patch todo.Patch
		if title != orig.Title {
			patch.Title = todo.Some(title)
		}
		if description != orig.Description {
			patch.Description = todo.Some(description)
		}
		if priority != orig.Priority {
			patch.Priority = todo.Some(priority)
		}
		if patch.IsEmpty() {
			return nil
		}
		return m.run("Todo updated", func(ctx context.Context) error {
			_, err := m.ctrl.Update(ctx, id, patch)
			return err
		})
	}
	return m.run(opCreated, func(ctx context.Context) error {
		_, err := m.ctrl.Create(ctx, title, description, priority)
		return err
	})
}

func (m *Model) load() tea.Cmd {
	return m.run("", m.ctrl.Retry)
}

func (m *Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{op: op, err: fn(ctx)}
	}
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Todos") + "\n")

	stats := m.ctrl.Cache().Stats()
	fmt.Fprintf(&b, "%d total  %d pending  %d completed\n\n", stats.Total, stats.Pending, stats.Completed)

	if msg := m.ctrl.Error(); msg != "" {
		b.WriteString(errorStyle.Render(msg) + helpStyle.Render("  (r to retry)") + "\n\n")
	}

	if m.ctrl.Loading() && m.ctrl.Cache().Len() == 0 {
		b.WriteString("Loading...\n\n")
	} else {
		m.writeSections(&b)
	}

	switch m.mode {
	case modeAdd:
		b.WriteString(sectionStyle.Render("New todo") + "\n")
		m.writeForm(&b)
	case modeEdit:
		b.WriteString(sectionStyle.Render("Edit todo") + "\n")
		m.writeForm(&b)
	default:
		if m.last != "" {
			b.WriteString(helpStyle.Render(m.last) + "\n")
		}
		b.WriteString(helpStyle.Render("j/k move  space toggle  a add  e edit  p priority  d delete  r reload  q quit") + "\n")
	}
	return b.String()
}

func (m *Model) writeForm(b *strings.Builder) {
	line := func(f field, label, value string) {
		marker, cursor := "  ", ""
		if m.form.focus == f {
			marker = cursorStyle.Render("> ")
			if f != fieldPriority {
				cursor = "_"
			}
		}
		fmt.Fprintf(b, "%s%-12s %s%s\n", marker, label, value, cursor)
	}

	priority := string(m.form.priority)
	if style, ok := priorityStyles[m.form.priority]; ok {
		priority = style.Render(priority)
	}

	line(fieldTitle, "Title:", string(m.form.title))
	line(fieldDescription, "Description:", string(m.form.description))
	line(fieldPriority, "Priority:", "< "+priority+" >")
	b.WriteString(helpStyle.Render("tab next field  left/right or l/m/h priority  enter save  esc cancel") + "\n")
}

func (m *Model) writeSections(b *strings.Builder) {
	pending, completed := m.ctrl.Cache().Partition()
	if len(pending)+len(completed) == 0 {
		b.WriteString("No todos yet. Press a to add one.\n\n")
		return
	}

	index := 0
	write := func(title string, todos []todo.Todo) {
		if len(todos) == 0 {
			return
		}
		fmt.Fprintf(b, "%s (%d)\n", sectionStyle.Render(title), len(todos))
		for _, t := range todos {
			b.WriteString(m.renderRow(t, index == m.cursor) + "\n")
			index++
		}
		b.WriteString("\n")
	}

	write("Pending", pending)
	write("Completed", completed)
}

func (m *Model) renderRow(t todo.Todo, selected bool) string {
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}

	title := t.Title
	if t.Completed {
		title = doneStyle.Render(title)
	}

	priority := string(t.Priority)
	if style, ok := priorityStyles[t.Priority]; ok {
		priority = style.Render(priority)
	}

	row := fmt.Sprintf("%s %s  %s", check, title, priority)
	if t.Description != "" {
		row += helpStyle.Render("  " + t.Description)
	}

	if selected {
		return cursorStyle.Render("> ") + row
	}
	return "  " + row
}
