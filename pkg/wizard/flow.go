package wizard

import (
	"context"
	"fmt"
)

// FieldKind tells renderers how to collect a field.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindEmail    FieldKind = "email"
	KindNumber   FieldKind = "number"
	KindDate     FieldKind = "date"
	KindBool     FieldKind = "bool"
	KindSet      FieldKind = "set"
)

// Field is render metadata for one entry in the field store.
type Field struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Placeholder string    `json:"placeholder,omitempty"`
	Choices     []string  `json:"choices,omitempty"`
	// Secure fields are sent encrypted by browser clients.
	Secure bool `json:"secure,omitempty"`
}

// Step is one screen of a flow.
type Step struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
	Rules  []Rule  `json:"-"`
}

// Validate runs the step's rules in order and returns the first failure.
func (s Step) Validate(f Fields) Result {
	for _, rule := range s.Rules {
		if r := rule(f); !r.OK() {
			return r
		}
	}
	return Valid()
}

// Progress receives human readable submission progress lines.
type Progress func(format string, args ...any)

// Outcome is what a successful submission hands back to the presentation layer.
type Outcome struct {
	ID       string `json:"id,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Resource any    `json:"resource,omitempty"`
}

// Submitter performs the terminal action of a flow.
type Submitter func(ctx context.Context, fields Fields, progress Progress) (Outcome, error)

// Flow is an ordered list of steps plus a terminal submit action.
type Flow struct {
	Name     string
	Title    string
	Steps    []Step
	defaults Fields
	submit   Submitter
}

// NewFlow starts building a flow.
func NewFlow(name, title string) *Flow {
	return &Flow{Name: name, Title: title, defaults: Fields{}}
}

// Step appends a step.
func (fl *Flow) Step(name string, fields []Field, rules ...Rule) *Flow {
	fl.Steps = append(fl.Steps, Step{Name: name, Fields: fields, Rules: rules})
	return fl
}

// Defaults sets the initial field values.
func (fl *Flow) Defaults(f Fields) *Flow {
	fl.defaults = f.Clone()
	return fl
}

// OnSubmit sets the terminal action.
func (fl *Flow) OnSubmit(fn Submitter) *Flow {
	fl.submit = fn
	return fl
}

// TotalSteps returns the number of steps.
func (fl *Flow) TotalSteps() int { return len(fl.Steps) }

// Validate runs the validator of the 1-based step index.
func (fl *Flow) Validate(index int, f Fields) Result {
	if index < 1 || index > len(fl.Steps) {
		return Invalid(fmt.Sprintf("step %d does not exist", index))
	}
	return fl.Steps[index-1].Validate(f)
}

// Check reports configuration mistakes.
func (fl *Flow) Check() error {
	if fl.Name == "" {
		return fmt.Errorf("flow has no name")
	}
	if len(fl.Steps) == 0 {
		return fmt.Errorf("flow %s: at least one step is required", fl.Name)
	}
	seen := make(map[string]struct{}, len(fl.Steps))
	for _, s := range fl.Steps {
		if s.Name == "" {
			return fmt.Errorf("flow %s: step name is required", fl.Name)
		}
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("flow %s: duplicate step: %s", fl.Name, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	if fl.submit == nil {
		return fmt.Errorf("flow %s: no submit action", fl.Name)
	}
	return nil
}
