package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// GenericErrorMessage is shown when a failed submission carries no usable message.
const GenericErrorMessage = "Something went wrong. Please try again."

var (
	ErrSubmitInFlight  = errors.New("wizard: a submission is already in flight")
	ErrNotTerminal     = errors.New("wizard: submit is only available on the last step")
	ErrClosed          = errors.New("wizard: controller closed")
	ErrDiscarded       = errors.New("wizard: controller closed while submitting, result discarded")
	ErrStepOutOfRange  = errors.New("wizard: step out of range")
	ErrNoSubmitHandler = errors.New("wizard: flow has no submit action")
)

// ValidationError is returned when a step blocks navigation or submission.
type ValidationError struct {
	Step   int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d: %s", e.Step, e.Reason)
}

// UserMessage returns the reason verbatim.
func (e *ValidationError) UserMessage() string { return e.Reason }

// UserMessage turns any error into the banner text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return GenericErrorMessage
}

// State is a point-in-time copy of a controller's wizard state.
type State struct {
	Flow       string `json:"flow"`
	Step       int    `json:"step"`
	TotalSteps int    `json:"totalSteps"`
	StepName   string `json:"stepName"`
	Fields     Fields `json:"fields"`
	Error      string `json:"error,omitempty"`
	Submitting bool   `json:"submitting"`
}

// Controller owns one wizard state: the current step, the field store, the error banner
// and the submitting flag. It is safe for concurrent use.
type Controller struct {
	flow *Flow

	mu         sync.Mutex
	step       int
	fields     Fields
	errMsg     string
	submitting bool

	scope  context.Context
	cancel context.CancelFunc
}

// NewController starts a flow at step 1 with the flow's default field values.
func NewController(flow *Flow) *Controller {
	scope, cancel := context.WithCancel(context.Background())
	return &Controller{
		flow:   flow,
		step:   1,
		fields: flow.defaults.Clone(),
		scope:  scope,
		cancel: cancel,
	}
}

// Flow returns the flow this controller walks through.
func (c *Controller) Flow() *Flow { return c.flow }

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	name := ""
	if c.step >= 1 && c.step <= len(c.flow.Steps) {
		name = c.flow.Steps[c.step-1].Name
	}
	return State{
		Flow:       c.flow.Name,
		Step:       c.step,
		TotalSteps: c.flow.TotalSteps(),
		StepName:   name,
		Fields:     c.fields.Clone(),
		Error:      c.errMsg,
		Submitting: c.submitting,
	}
}

// Set updates one field and clears the error banner.
func (c *Controller) Set(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[name] = value
	c.errMsg = ""
}

// SetFields updates several fields at once and clears the error banner.
func (c *Controller) SetFields(values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range values {
		c.fields[k] = v
	}
	c.errMsg = ""
}

// Toggle flips membership of item in a set field and clears the error banner.
func (c *Controller) Toggle(name, item string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields.Toggle(name, item)
	c.errMsg = ""
}

// Validate runs the current step's validator without changing state.
func (c *Controller) Validate() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flow.Validate(c.step, c.fields)
}

// Next validates the current step and advances when it passes. On failure the error banner
// is set to the validator's reason and the step is unchanged.
func (c *Controller) Next() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.flow.Validate(c.step, c.fields)
	if !r.OK() {
		c.errMsg = r.Reason()
		return r
	}
	c.errMsg = ""
	if c.step < c.flow.TotalSteps() {
		c.step++
	}
	return r
}

// Previous moves back one step without validating and clears the error banner.
func (c *Controller) Previous() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
	if c.step > 1 {
		c.step--
	}
}

// GoToStep jumps to step n. Going back is always allowed. Going forward validates every
// step in between and stops at the first one that fails.
func (c *Controller) GoToStep(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > c.flow.TotalSteps() {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, n)
	}
	if n <= c.step {
		c.step = n
		c.errMsg = ""
		return nil
	}
	for i := c.step; i < n; i++ {
		if r := c.flow.Validate(i, c.fields); !r.OK() {
			c.step = i
			c.errMsg = r.Reason()
			return &ValidationError{Step: i, Reason: r.Reason()}
		}
	}
	c.step = n
	c.errMsg = ""
	return nil
}

// SubmitOption tunes a single Submit call.
type SubmitOption func(*submitConfig)

type submitConfig struct {
	onStart func()
}

// OnStart registers fn to run once every precondition has passed, right before the flow's
// action starts. Callers that reject requests up front use it to commit to a response.
func OnStart(fn func()) SubmitOption {
	return func(sc *submitConfig) { sc.onStart = fn }
}

// Submit runs the flow's terminal action. It is only available on the last step, runs that
// step's validator as a final gate and refuses to start while another submission is in flight.
// The submitting flag is cleared whatever the outcome, in the same critical section that applies
// the result. If the controller is closed while the submission runs, its context is cancelled
// and the result is dropped with ErrDiscarded.
func (c *Controller) Submit(ctx context.Context, progress Progress, opts ...SubmitOption) (outcome Outcome, err error) {
	var sc submitConfig
	for _, opt := range opts {
		opt(&sc)
	}

	c.mu.Lock()
	switch {
	case c.scope.Err() != nil:
		c.mu.Unlock()
		return Outcome{}, ErrClosed
	case c.submitting:
		c.mu.Unlock()
		return Outcome{}, ErrSubmitInFlight
	case c.step != c.flow.TotalSteps():
		c.mu.Unlock()
		return Outcome{}, ErrNotTerminal
	case c.flow.submit == nil:
		c.mu.Unlock()
		return Outcome{}, ErrNoSubmitHandler
	}
	if r := c.flow.Validate(c.step, c.fields); !r.OK() {
		c.errMsg = r.Reason()
		step := c.step
		c.mu.Unlock()
		return Outcome{}, &ValidationError{Step: step, Reason: r.Reason()}
	}
	c.submitting = true
	c.errMsg = ""
	snapshot := c.fields.Clone()
	c.mu.Unlock()

	if progress == nil {
		progress = func(string, ...any) {}
	}

	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.scope, cancel)
	defer func() {
		stop()
		cancel()
	}()

	finished := false
	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.submitting = false
		if !finished {
			// panicking
			return
		}
		switch {
		case c.scope.Err() != nil:
			outcome, err = Outcome{}, ErrDiscarded
		case err != nil:
			c.errMsg = UserMessage(err)
			outcome = Outcome{}
		}
	}()

	if sc.onStart != nil {
		sc.onStart()
	}
	outcome, err = c.flow.submit(runCtx, snapshot, progress)
	finished = true
	return outcome, err
}

// Close tears the controller down. An in-flight submission sees its context cancelled and
// its result is not applied.
func (c *Controller) Close() {
	c.cancel()
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool {
	return c.scope.Err() != nil
}
