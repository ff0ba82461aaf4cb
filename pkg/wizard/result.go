package wizard

// Result is the outcome of validating a step. The zero value is valid.
type Result struct {
	invalid bool
	reason  string
}

// Valid returns a passing result.
func Valid() Result {
	return Result{}
}

// Invalid returns a failing result carrying a user-facing reason.
func Invalid(reason string) Result {
	return Result{invalid: true, reason: reason}
}

// OK reports whether the result is valid.
func (r Result) OK() bool { return !r.invalid }

// Reason returns the user-facing message for an invalid result, or "" when valid.
func (r Result) Reason() string { return r.reason }

func (r Result) String() string {
	if r.OK() {
		return "valid"
	}
	return "invalid: " + r.reason
}

// Rule checks a subset of the field store.
type Rule func(Fields) Result
