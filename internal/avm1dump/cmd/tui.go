package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"

	"avm1dump/internal/swf"
	"avm1dump/internal/ui/colorize"
	"avm1dump/internal/walk"
)

type viewMode int

const (
	viewInfo viewMode = iota
	viewEntries
	viewTrace
)

// traceItem is one entry of the result in the list.
type traceItem struct {
	section string
	trace   walk.EntryTrace
}

func (i traceItem) Title() string       { return i.section + " / " + i.trace.Label }
func (i traceItem) Description() string { return "" }
func (i traceItem) FilterValue() string { return i.section + " " + i.trace.Label }

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(traceItem)
	if !ok {
		return
	}

	indicator := " "
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	if index == m.Index() {
		indicator = ">"
		sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	}
	countStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	fmt.Fprintf(w, " %s  %s  %s  %s",
		indicator,
		sectionStyle.Render(i.section),
		i.trace.Label,
		countStyle.Render(fmt.Sprintf("(%d)", len(i.trace.Lines))))
}

type loadedMsg struct {
	file   *swf.File
	result *walk.Result
	err    error
}

func loadCmd(path string, maxDepth int) tea.Cmd {
	return func() tea.Msg {
		f, res, err := disassemble(path, maxDepth)
		return loadedMsg{file: f, result: res, err: err}
	}
}

type model struct {
	info     viewport.Model
	entries  list.Model
	trace    viewport.Model
	spinner  spinner.Model
	mode     viewMode
	path     string
	maxDepth int
	file     *swf.File
	result   *walk.Result
	err      error
	loading  bool
	width    int
	height   int
}

func newModel(path string, maxDepth int) model {
	info := viewport.New()
	info.SetWidth(80)
	info.SetHeight(24)

	entries := list.New([]list.Item{}, itemDelegate{}, 80, 24)
	entries.SetShowStatusBar(false)
	entries.SetFilteringEnabled(true)
	entries.Title = "Action lists"
	entries.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)

	trace := viewport.New()
	trace.SetWidth(80)
	trace.SetHeight(24)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	m := model{
		info:     info,
		entries:  entries,
		trace:    trace,
		spinner:  s,
		mode:     viewInfo,
		path:     path,
		maxDepth: maxDepth,
		loading:  true,
		width:    80,
		height:   24,
	}
	m.updateInfo()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		loadCmd(m.path, m.maxDepth),
		m.spinner.Tick,
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case loadedMsg:
		m.loading = false
		m.file = msg.file
		m.result = msg.result
		m.err = msg.err
		m.updateEntries()
		m.updateInfo()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateInfo()
		return m, cmd

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			for _, vp := range []*viewport.Model{&m.info, &m.trace} {
				vp.SetWidth(msg.Width)
				vp.SetHeight(msg.Height - 2)
			}
			m.entries.SetWidth(msg.Width)
			m.entries.SetHeight(msg.Height - 2)
			m.updateInfo()
		}

	case tea.KeyMsg:
		if m.mode == viewEntries && m.entries.FilterState() == list.Filtering {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			break
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "i":
			m.mode = viewInfo
			return m, nil
		case "l":
			if m.result != nil {
				m.mode = viewEntries
			}
			return m, nil
		case "esc":
			if m.mode == viewTrace {
				m.mode = viewEntries
				return m, nil
			}
		case "enter":
			if m.mode == viewEntries {
				if item, ok := m.entries.SelectedItem().(traceItem); ok {
					m.showTrace(item)
				}
				return m, nil
			}
		case "tab":
			if m.result != nil {
				m.mode = (m.mode + 1) % 3
			}
			return m, nil
		}
	}

	switch m.mode {
	case viewEntries:
		m.entries, cmd = m.entries.Update(msg)
	case viewTrace:
		m.trace, cmd = m.trace.Update(msg)
	default:
		m.info, cmd = m.info.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	var content, menu string
	switch m.mode {
	case viewEntries:
		content = m.entries.View()
		menu = " Enter: view trace • /: filter • I: info • Tab: cycle • Q: quit "
	case viewTrace:
		content = m.trace.View()
		menu = " Esc: back • L: lists • I: info • Tab: cycle • Q: quit "
	default:
		content = m.info.View()
		if m.result != nil {
			menu = " L: lists • Tab: cycle • Q: quit "
		} else {
			menu = " Q: quit "
		}
	}

	menuStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1).
		Width(m.width)

	return content + "\n" + menuStyle.Render(menu)
}

func (m *model) updateEntries() {
	if m.result == nil {
		return
	}
	var items []list.Item
	for _, s := range m.result.Sections {
		for _, e := range s.Entries {
			items = append(items, traceItem{section: s.Label, trace: e})
		}
	}
	m.entries.SetItems(items)
}

func (m *model) showTrace(item traceItem) {
	var b strings.Builder
	b.WriteString(sectionStyle.Render(item.section) + "\n")
	b.WriteString("  " + entryStyle.Render(item.trace.Label) + "\n")
	for _, l := range item.trace.Lines {
		b.WriteString(colorize.TraceLine(l.String()) + "\n")
	}
	m.trace.SetContent(b.String())
	m.trace.GotoTop()
	m.mode = viewTrace
}

func (m *model) updateInfo() {
	name := filepath.Base(m.path)
	var md string
	switch {
	case m.loading:
		m.info.SetContent(fmt.Sprintf("\n  %s Disassembling %s...", m.spinner.View(), name))
		return
	case m.file == nil:
		md = fmt.Sprintf("# %s\n\n**Error:** %v\n", name, m.err)
	default:
		md = infoMarkdown(name, m.file)
		if m.err != nil {
			md += fmt.Sprintf("\n**Disassembly failed:** %v\n", m.err)
		} else {
			md += fmt.Sprintf("\nDisassembled %d lines. Press **L** to browse them.\n", m.result.LineCount())
		}
	}

	out, err := renderMarkdown(md, m.width-4)
	if err != nil {
		out = md
	}
	m.info.SetContent(out)
}

// runTUI opens the interactive viewer on path.
func runTUI(ctx context.Context, path string, cfg Config) error {
	p := tea.NewProgram(newModel(path, cfg.MaxDepth), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
