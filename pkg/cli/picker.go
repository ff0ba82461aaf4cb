package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zdunecki/matchfund/pkg/flows"
)

// ErrStartServer is returned when the user picks the web service instead of a flow.
var ErrStartServer = errors.New("start server")

const serveChoice = "__serve__"

type optionItem struct {
	title string
	desc  string
	value string
}

func (i optionItem) Title() string       { return i.title }
func (i optionItem) Description() string { return i.desc }
func (i optionItem) FilterValue() string { return i.title }

type pickerModel struct {
	list      list.Model
	choice    string
	cancelled bool
	width     int
	height    int
}

// PickFlow lets the user choose one of the named flows, or the web service (ErrStartServer).
func PickFlow(names []string) (string, error) {
	prog := tea.NewProgram(newPickerModel(names), tea.WithAltScreen())
	result, err := prog.Run()
	if err != nil {
		return "", err
	}
	finalModel, ok := result.(pickerModel)
	if !ok {
		return "", fmt.Errorf("picker failed to return results")
	}
	switch {
	case finalModel.cancelled || finalModel.choice == "":
		return "", ErrCancelled
	case finalModel.choice == serveChoice:
		return "", ErrStartServer
	}
	return finalModel.choice, nil
}

func newPickerModel(names []string) pickerModel {
	return pickerModel{list: newList("What would you like to do?", flowItems(names))}
}

func flowItems(names []string) []list.Item {
	titles := make(map[string]flows.Info)
	for _, info := range flows.List() {
		titles[info.Name] = info
	}
	items := make([]list.Item, 0, len(names)+1)
	for _, name := range names {
		item := optionItem{title: name, value: name}
		if info, ok := titles[name]; ok {
			item.title = info.Title
			item.desc = fmt.Sprintf("%s · %d steps", name, info.Steps)
		}
		items = append(items, item)
	}
	items = append(items, optionItem{title: "Web service", desc: "Serve the wizards over HTTP for the browser frontend", value: serveChoice})
	return items
}

func newList(title string, items []list.Item) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(lipgloss.Color("252"))
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("205")).Bold(true)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.Foreground(lipgloss.Color("244")).Italic(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(lipgloss.Color("212")).Italic(true)
	l := list.New(items, delegate, 0, 0)
	l.Title = styleTitle.Render(title)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)
	return l
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(optionItem); ok {
				m.choice = item.value
				return m, tea.Quit
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.cancelled || m.choice != "" {
		return ""
	}
	return m.list.View() + "\n\n" + stylePrompt.Render("Use ↑/↓ to move, Enter to select, q to quit.")
}
