package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdunecki/matchfund/pkg/wizard"
	"github.com/zdunecki/matchfund/pkg/wizard/rules"
)

func testFlow(submit wizard.Submitter) *wizard.Flow {
	return wizard.NewFlow("signup", "Sign up").
		Step("Name",
			[]wizard.Field{{Name: "name", Label: "Name", Kind: wizard.KindText}},
			rules.Required("name", "Name is required"),
		).
		Step("Interests",
			[]wizard.Field{
				{Name: "topics", Label: "Topics", Kind: wizard.KindSet, Choices: []string{"Arts", "Health", "Sports"}},
				{Name: "agree", Label: "I agree", Kind: wizard.KindBool},
			},
			rules.MinSelected("topics", 1, "Pick a topic"),
			rules.Checked("agree", "Please agree"),
		).
		Defaults(wizard.Fields{"name": "", "topics": []string{}, "agree": false}).
		OnSubmit(submit)
}

func okSubmit(_ context.Context, f wizard.Fields, progress wizard.Progress) (wizard.Outcome, error) {
	progress("saving %s\n", f.String("name"))
	return wizard.Outcome{ID: "1", Redirect: "/done/1"}, nil
}

func send(t *testing.T, m wizardModel, msg tea.Msg) (wizardModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(wizardModel)
	require.True(t, ok)
	return nm, cmd
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func typeText(t *testing.T, m wizardModel, s string) wizardModel {
	t.Helper()
	for _, r := range s {
		m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func space() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}} }

// runSubmit executes the batched submit command and feeds the resulting messages back in.
func runSubmit(t *testing.T, m wizardModel, cmd tea.Cmd) (wizardModel, tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)

	var done tea.Msg
	var rest []tea.Cmd
	for _, c := range batch {
		if c == nil {
			continue
		}
		msg := c()
		if d, ok := msg.(submitDoneMsg); ok {
			done = d
			continue
		}
		rest = append(rest, func() tea.Msg { return msg })
	}
	for _, c := range rest {
		if msg := c(); msg != nil {
			m, _ = send(t, m, msg)
		}
	}
	require.NotNil(t, done)
	return send(t, m, done)
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestTypingUpdatesFieldStore(t *testing.T) {
	m := newWizardModel(context.Background(), testFlow(okSubmit), nil)
	m = typeText(t, m, "Ada")
	assert.Equal(t, "Ada", m.ctrl.State().Fields.String("name"))
}

func TestEnterShowsValidationErrorAndStays(t *testing.T) {
	m := newWizardModel(context.Background(), testFlow(okSubmit), nil)
	m, _ = send(t, m, key(tea.KeyEnter))

	st := m.ctrl.State()
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, "Name is required", st.Error)
	assert.Contains(t, m.View(), "Error: Name is required")

	m = typeText(t, m, "A")
	assert.Empty(t, m.ctrl.State().Error)
}

func TestEscGoesBackAndKeepsValues(t *testing.T) {
	m := newWizardModel(context.Background(), testFlow(okSubmit), nil)
	m = typeText(t, m, "Ada")
	m, _ = send(t, m, key(tea.KeyEnter))
	require.Equal(t, 2, m.ctrl.State().Step)

	m, _ = send(t, m, key(tea.KeyEnter))
	assert.Equal(t, "Pick a topic", m.ctrl.State().Error)

	m, _ = send(t, m, key(tea.KeyEsc))
	st := m.ctrl.State()
	assert.Equal(t, 1, st.Step)
	assert.Empty(t, st.Error)
	assert.Equal(t, "Ada", m.controls[0].input.Value())
}

func TestSetAndBoolControls(t *testing.T) {
	m := newWizardModel(context.Background(), testFlow(okSubmit), nil)
	m = typeText(t, m, "Ada")
	m, _ = send(t, m, key(tea.KeyEnter))

	m, _ = send(t, m, key(tea.KeyDown))
	m, _ = send(t, m, space())
	assert.Equal(t, []string{"Health"}, m.ctrl.State().Fields.Strings("topics"))

	m, _ = send(t, m, space())
	assert.Empty(t, m.ctrl.State().Fields.Strings("topics"))

	m, _ = send(t, m, key(tea.KeyTab))
	m, _ = send(t, m, space())
	assert.True(t, m.ctrl.State().Fields.Bool("agree"))
}

func TestSubmitFromTerminalStep(t *testing.T) {
	m := newWizardModel(context.Background(), testFlow(okSubmit), nil)
	m = typeText(t, m, "Ada")
	m, _ = send(t, m, key(tea.KeyEnter))
	m, _ = send(t, m, space())
	m, _ = send(t, m, key(tea.KeyTab))
	m, _ = send(t, m, space())

	m, cmd := send(t, m, key(tea.KeyEnter))
	require.True(t, m.submitting)
	assert.Contains(t, m.View(), "Submitting...")

	m, cmd = runSubmit(t, m, cmd)
	assert.True(t, m.done)
	assert.Equal(t, "/done/1", m.outcome.Redirect)
	assert.Equal(t, []string{"saving Ada"}, m.progress)
	assert.True(t, isQuit(cmd))
}

func TestSubmitFailureKeepsWizardOpen(t *testing.T) {
	fail := func(context.Context, wizard.Fields, wizard.Progress) (wizard.Outcome, error) {
		return wizard.Outcome{}, errors.New("backend down")
	}
	m := newWizardModel(context.Background(), testFlow(fail), nil)
	m = typeText(t, m, "Ada")
	m, _ = send(t, m, key(tea.KeyEnter))
	m, _ = send(t, m, space())
	m, _ = send(t, m, key(tea.KeyTab))
	m, _ = send(t, m, space())

	m, cmd := send(t, m, key(tea.KeyEnter))
	m, cmd = runSubmit(t, m, cmd)
	assert.False(t, m.done)
	assert.False(t, m.submitting)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), wizard.GenericErrorMessage)
}

func TestQuitKeys(t *testing.T) {
	m := newWizardModel(context.Background(), testFlow(okSubmit), nil)
	m = typeText(t, m, "q")
	assert.Equal(t, "q", m.ctrl.State().Fields.String("name"))
	assert.False(t, m.cancelled)

	m, cmd := send(t, m, key(tea.KeyCtrlC))
	assert.True(t, m.cancelled)
	assert.True(t, m.ctrl.Closed())
	assert.True(t, isQuit(cmd))
	assert.Empty(t, m.View())
}

func TestQuitOnNonTextControl(t *testing.T) {
	m := newWizardModel(context.Background(), testFlow(okSubmit), nil)
	m = typeText(t, m, "Ada")
	m, _ = send(t, m, key(tea.KeyEnter))

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.True(t, m.cancelled)
	assert.True(t, isQuit(cmd))
}

func TestDerivedLines(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lines := derivedLines("campaign", wizard.Fields{"budgetCap": 5000}, now)
	assert.Contains(t, lines, "Required escrow: $1500")
	assert.Empty(t, derivedLines("signup", wizard.Fields{}, now))
}

func TestFlowItemsIncludeServer(t *testing.T) {
	items := flowItems([]string{"campaign"})
	require.Len(t, items, 2)
	assert.Equal(t, "Create a matching campaign", items[0].(optionItem).title)
	assert.Equal(t, serveChoice, items[1].(optionItem).value)
}
