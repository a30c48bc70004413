package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tablescout/tablescout/internal/backend"
)

// NewBrowseCommand creates the browse command.
func NewBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactive terminal browser",
		Long: `Browse opens a terminal UI: type a query, pick a matching table, and page
through its rows.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sess, err := newSession(ctx, true)
			if err != nil {
				return err
			}
			defer sess.Close()

			p := tea.NewProgram(newBrowseModel(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx))
			_, err = p.Run()
			return err
		},
	}
}

var (
	browseTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	browseSelStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	browseFaintStyle  = lipgloss.NewStyle().Faint(true)
	browseHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	browseErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const browseRowLimit = 15

type searchDoneMsg struct {
	text    string
	matches []backend.TableMatch
	err     error
}

type rowsDoneMsg struct {
	tableID string
	err     error
}

type browseModel struct {
	ctx  context.Context
	sess *session

	input   textinput.Model
	matches []backend.TableMatch
	cursor  int
	opened  string // table whose rows are shown
	status  string
	errMsg  string

	listFocused bool
	busy        bool
}

func newBrowseModel(ctx context.Context, sess *session) browseModel {
	ti := textinput.New()
	ti.Placeholder = "type a search query"
	ti.Prompt = "search> "
	ti.Focus()

	return browseModel{
		ctx:    ctx,
		sess:   sess,
		input:  ti,
		status: "enter runs the search, tab switches panes, q quits",
	}
}

func (m browseModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case searchDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.matches = msg.matches
		m.cursor = 0
		m.opened = ""
		m.status = fmt.Sprintf("%d tables match %q", len(msg.matches), msg.text)
		return m, nil

	case rowsDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.opened = msg.tableID
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m browseModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.listFocused = !m.listFocused
		if m.listFocused {
			m.input.Blur()
		} else {
			m.input.Focus()
		}
		return m, nil
	}

	if m.listFocused {
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.matches)-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			return m.openSelected(false)
		case "m":
			return m.openSelected(true)
		}
		return m, nil
	}

	if msg.String() == "enter" && !m.busy {
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.busy = true
		m.status = "searching..."
		return m, m.searchCmd(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m browseModel) openSelected(more bool) (tea.Model, tea.Cmd) {
	if m.busy || m.cursor >= len(m.matches) {
		return m, nil
	}
	tableID := m.matches[m.cursor].TableID
	m.busy = true
	m.status = "loading " + tableID
	return m, m.rowsCmd(tableID, more)
}

func (m browseModel) searchCmd(text string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.sess.searcher.Search(m.ctx, text)
		if err != nil {
			return searchDoneMsg{text: text, err: err}
		}
		m.sess.record(text, res)
		return searchDoneMsg{text: text, matches: res.Tables}
	}
}

func (m browseModel) rowsCmd(tableID string, more bool) tea.Cmd {
	return func() tea.Msg {
		if _, tracked := m.sess.cache.PaginationState(tableID); !tracked {
			if err := m.sess.searcher.FetchVisible(m.ctx, []string{tableID}); err != nil {
				return rowsDoneMsg{tableID: tableID, err: err}
			}
		} else if more {
			if _, err := m.sess.searcher.LoadMore(m.ctx, tableID); err != nil {
				return rowsDoneMsg{tableID: tableID, err: err}
			}
		}
		return rowsDoneMsg{tableID: tableID}
	}
}

func (m browseModel) View() string {
	var b strings.Builder

	b.WriteString(browseTitleStyle.Render("tablescout"))
	b.WriteString("  ")
	b.WriteString(browseFaintStyle.Render(m.sess.backend.Name()))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if len(m.matches) == 0 {
		b.WriteString(browseFaintStyle.Render("no matching tables"))
		b.WriteString("\n")
	}
	for i, match := range m.matches {
		line := fmt.Sprintf("%-40s %s", match.TableID, match.Type)
		if i == m.cursor && m.listFocused {
			line = browseSelStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.opened != "" {
		b.WriteString("\n")
		b.WriteString(browseHeaderStyle.Render(m.opened))
		b.WriteString("\n")
		b.WriteString(m.renderOpenedRows())
	}

	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(browseErrStyle.Render("error: " + m.errMsg))
	} else {
		b.WriteString(browseFaintStyle.Render(m.status))
	}
	b.WriteString("\n")
	return b.String()
}

func (m browseModel) renderOpenedRows() string {
	rows := m.sess.cache.LoadedRecords(m.opened)
	if len(rows) == 0 {
		return browseFaintStyle.Render("(0 rows)") + "\n"
	}

	cols := rowColumns(rows)
	var b strings.Builder
	b.WriteString(browseHeaderStyle.Render(strings.Join(cols, " | ")))
	b.WriteString("\n")

	shown := rows
	if len(shown) > browseRowLimit {
		shown = shown[len(shown)-browseRowLimit:]
	}
	for _, row := range shown {
		values := make([]string, len(cols))
		for i, c := range cols {
			values[i] = formatValue(row.Values[c])
		}
		b.WriteString(strings.Join(values, " | "))
		b.WriteString("\n")
	}

	b.WriteString(browseFaintStyle.Render(fmt.Sprintf("(%d rows loaded", len(rows))))
	if m.sess.cache.HasMoreRecords(m.opened) {
		b.WriteString(browseFaintStyle.Render(", press m for more"))
	}
	b.WriteString(browseFaintStyle.Render(")"))
	b.WriteString("\n")
	return b.String()
}
