package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/flows"
	"github.com/zdunecki/matchfund/pkg/logging"
	"github.com/zdunecki/matchfund/pkg/wizard"
)

var (
	styleTitle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	styleSubtitle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	stylePrompt    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	styleSummary   = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	styleHighlight = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

// ErrCancelled is returned when the user quits before the flow completes.
var ErrCancelled = errors.New("wizard cancelled")

type fieldControl struct {
	field  wizard.Field
	input  textinput.Model
	cursor int
}

func (c fieldControl) typed() bool {
	return c.field.Kind != wizard.KindBool && c.field.Kind != wizard.KindSet
}

type progressMsg string

type submitDoneMsg struct {
	out wizard.Outcome
	err error
}

type wizardModel struct {
	ctx        context.Context
	ctrl       *wizard.Controller
	logger     *zap.Logger
	now        func() time.Time
	step       int
	controls   []fieldControl
	focus      int
	submitting bool
	progress   []string
	progressCh chan string
	outcome    wizard.Outcome
	done       bool
	cancelled  bool
	width      int
	height     int
}

// RunWizard runs flow interactively in the terminal and returns the submission outcome.
// Quitting returns ErrCancelled; a submission still in flight at that point is discarded.
func RunWizard(ctx context.Context, flow *wizard.Flow, logger *zap.Logger) (wizard.Outcome, error) {
	model := newWizardModel(ctx, flow, logger)
	defer model.ctrl.Close()

	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	result, err := prog.Run()
	if err != nil {
		return wizard.Outcome{}, err
	}

	finalModel, ok := result.(wizardModel)
	if !ok {
		return wizard.Outcome{}, fmt.Errorf("wizard failed to return results")
	}
	if finalModel.cancelled || !finalModel.done {
		return wizard.Outcome{}, ErrCancelled
	}
	return finalModel.outcome, nil
}

func newWizardModel(ctx context.Context, flow *wizard.Flow, logger *zap.Logger) wizardModel {
	logger = logging.OrNop(logger)
	m := wizardModel{
		ctx:    ctx,
		ctrl:   wizard.NewController(flow),
		logger: logger,
		now:    time.Now,
	}
	m.loadStep()
	return m
}

// loadStep rebuilds the controls for the controller's current step.
func (m *wizardModel) loadStep() {
	st := m.ctrl.State()
	m.step = st.Step
	fields := m.ctrl.Flow().Steps[st.Step-1].Fields

	m.controls = make([]fieldControl, 0, len(fields))
	for _, f := range fields {
		c := fieldControl{field: f}
		if c.typed() {
			c.input = textinput.New()
			c.input.Prompt = stylePrompt.Render("> ")
			c.input.Placeholder = f.Placeholder
			c.input.SetValue(st.Fields.String(f.Name))
			if m.width > 0 {
				c.input.Width = m.width - 4
			}
		}
		m.controls = append(m.controls, c)
	}
	m.setFocus(0)
}

func (m *wizardModel) setFocus(i int) {
	if len(m.controls) == 0 {
		return
	}
	m.focus = (i + len(m.controls)) % len(m.controls)
	for idx := range m.controls {
		if !m.controls[idx].typed() {
			continue
		}
		if idx == m.focus {
			m.controls[idx].input.Focus()
		} else {
			m.controls[idx].input.Blur()
		}
	}
}

func (m wizardModel) focused() *fieldControl {
	if m.focus < 0 || m.focus >= len(m.controls) {
		return nil
	}
	return &m.controls[m.focus]
}

func (m wizardModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.controls {
			if m.controls[i].typed() {
				m.controls[i].input.Width = msg.Width - 4
			}
		}
		return m, nil
	case progressMsg:
		m.progress = append(m.progress, string(msg))
		return m, waitForProgress(m.progressCh)
	case submitDoneMsg:
		return m.handleSubmitDone(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if c := m.focused(); c != nil && c.typed() {
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m wizardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	}
	if m.submitting {
		return m, nil
	}

	c := m.focused()
	switch msg.String() {
	case "q":
		if c == nil || !c.typed() {
			return m.quit()
		}
	case "esc":
		m.ctrl.Previous()
		m.loadStep()
		return m, nil
	case "enter":
		return m.advance()
	case "tab":
		m.setFocus(m.focus + 1)
		return m, nil
	case "shift+tab":
		m.setFocus(m.focus - 1)
		return m, nil
	case "up", "down":
		if c != nil && c.field.Kind == wizard.KindSet && len(c.field.Choices) > 0 {
			delta := 1
			if msg.String() == "up" {
				delta = -1
			}
			n := len(c.field.Choices)
			c.cursor = (c.cursor + delta + n) % n
			return m, nil
		}
	case " ":
		if c != nil {
			switch c.field.Kind {
			case wizard.KindBool:
				m.ctrl.Set(c.field.Name, !m.ctrl.State().Fields.Bool(c.field.Name))
				return m, nil
			case wizard.KindSet:
				if len(c.field.Choices) > 0 {
					m.ctrl.Toggle(c.field.Name, c.field.Choices[c.cursor])
				}
				return m, nil
			}
		}
	}

	if c == nil || !c.typed() {
		return m, nil
	}
	before := c.input.Value()
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	if after := c.input.Value(); after != before {
		m.ctrl.Set(c.field.Name, after)
	}
	return m, cmd
}

func (m wizardModel) advance() (tea.Model, tea.Cmd) {
	terminal := m.step == m.ctrl.Flow().TotalSteps()
	if r := m.ctrl.Next(); !r.OK() {
		return m, nil
	}
	if !terminal {
		m.loadStep()
		return m, nil
	}
	return m.startSubmit()
}

func (m wizardModel) startSubmit() (tea.Model, tea.Cmd) {
	m.submitting = true
	m.progress = nil
	ch := make(chan string, 64)
	m.progressCh = ch

	progress := func(format string, args ...any) {
		line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
		select {
		case ch <- line:
		default:
		}
	}
	ctrl, ctx := m.ctrl, m.ctx
	submit := func() tea.Msg {
		out, err := ctrl.Submit(ctx, progress)
		close(ch)
		return submitDoneMsg{out: out, err: err}
	}
	return m, tea.Batch(submit, waitForProgress(ch))
}

func waitForProgress(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg(line)
	}
}

func (m wizardModel) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	m.submitting = false
	if msg.err == nil {
		m.outcome = msg.out
		m.done = true
		return m, tea.Quit
	}
	if errors.Is(msg.err, wizard.ErrDiscarded) || errors.Is(msg.err, wizard.ErrClosed) {
		m.cancelled = true
		return m, tea.Quit
	}
	var verr *wizard.ValidationError
	if !errors.As(msg.err, &verr) {
		m.logger.Warn("submission failed",
			zap.String("flow", m.ctrl.Flow().Name),
			zap.Error(msg.err))
	}
	return m, nil
}

func (m wizardModel) quit() (tea.Model, tea.Cmd) {
	m.cancelled = true
	m.ctrl.Close()
	return m, tea.Quit
}

func (m wizardModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	st := m.ctrl.State()
	fl := m.ctrl.Flow()

	var b strings.Builder
	b.WriteString(styleTitle.Render(fl.Title) + "\n")
	b.WriteString(styleSubtitle.Render(fmt.Sprintf("Step %d of %d: %s", st.Step, st.TotalSteps, st.StepName)) + "  ")
	b.WriteString(stepDots(st.Step, st.TotalSteps) + "\n\n")

	if st.Error != "" {
		b.WriteString(styleError.Render("Error: "+st.Error) + "\n\n")
	}

	for i, c := range m.controls {
		b.WriteString(m.renderControl(i, c, st.Fields) + "\n")
	}

	if lines := derivedLines(fl.Name, st.Fields, m.now()); len(lines) > 0 {
		b.WriteString("\n" + styleSummary.Render(strings.Join(lines, "\n")) + "\n")
	}

	if m.submitting {
		b.WriteString("\n" + styleHighlight.Render("Submitting...") + "\n")
		for _, line := range m.progress {
			b.WriteString(line + "\n")
		}
		b.WriteString("\n" + stylePrompt.Render("ctrl+c to abort."))
		return b.String()
	}

	action := "continue"
	if st.Step == st.TotalSteps {
		action = "submit"
	}
	b.WriteString("\n" + stylePrompt.Render(fmt.Sprintf("Enter to %s, Esc to go back, Tab to switch fields, ctrl+c to quit.", action)))
	return b.String()
}

func (m wizardModel) renderControl(i int, c fieldControl, f wizard.Fields) string {
	label := c.field.Label
	if i == m.focus {
		label = styleHighlight.Render(label)
	}
	switch c.field.Kind {
	case wizard.KindBool:
		return fmt.Sprintf("%s %s  %s", checkbox(f.Bool(c.field.Name)), label, styleSubtitle.Render("(space to toggle)"))
	case wizard.KindSet:
		selected := make(map[string]bool)
		for _, s := range f.Strings(c.field.Name) {
			selected[s] = true
		}
		lines := []string{label + "  " + styleSubtitle.Render("(↑/↓ to move, space to toggle)")}
		for j, choice := range c.field.Choices {
			cursor := "  "
			if i == m.focus && j == c.cursor {
				cursor = stylePrompt.Render("> ")
			}
			lines = append(lines, fmt.Sprintf("%s%s %s", cursor, checkbox(selected[choice]), choice))
		}
		return strings.Join(lines, "\n")
	default:
		return label + "\n" + c.input.View()
	}
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func stepDots(current, total int) string {
	dots := make([]string, total)
	for i := range dots {
		if i+1 <= current {
			dots[i] = styleHighlight.Render("●")
		} else {
			dots[i] = styleSubtitle.Render("○")
		}
	}
	return strings.Join(dots, " ")
}

var derivedLabels = map[string]string{
	"requiredEscrow":         "Required escrow: $%v",
	"daysRemaining":          "Days remaining: %v",
	"durationDays":           "Duration: %v days",
	"minimumInitialFunding":  "Minimum initial funding: $%v",
	"descriptionCharsNeeded": "Characters still needed: %v",
	"einDigits":              "EIN digits entered: %v",
}

func derivedLines(flowName string, f wizard.Fields, now time.Time) []string {
	values := flows.Derived(flowName, f, now)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		format, ok := derivedLabels[k]
		if !ok {
			format = k + ": %v"
		}
		lines = append(lines, fmt.Sprintf(format, values[k]))
	}
	return lines
}
