// Package rules holds the validation rules shared by the flows. Every rule is pure:
// it reads the field store and returns a wizard.Result.
package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zdunecki/matchfund/pkg/wizard"
)

// Required fails when the field is missing or blank.
func Required(field, msg string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		if f.String(field) == "" {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// MinLength fails when the trimmed value has fewer than n characters.
func MinLength(field string, n int, msg string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		if utf8.RuneCountInString(f.String(field)) < n {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// MinNumber fails when the field is not a number or is below min.
func MinNumber(field string, min float64, msg string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		v, ok := f.Float(field)
		if !ok || v < min {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// Range fails when the field is not a number or falls outside [min, max].
func Range(field string, min, max float64, msg string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		v, ok := f.Float(field)
		if !ok || v < min || v > max {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// DateAfter fails unless the later field is strictly after the earlier one.
// Missing or unparsable dates fail as well.
func DateAfter(later, earlier, msg string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		end, ok := f.Date(later)
		if !ok {
			return wizard.Invalid(msg)
		}
		start, ok := f.Date(earlier)
		if !ok {
			return wizard.Invalid(msg)
		}
		if !end.After(start) {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// MinSelected fails when fewer than n items of a set field are selected.
func MinSelected(field string, n int, msg string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		if len(f.Strings(field)) < n {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// Email is a deliberately loose check: text on both sides of an "@".
func Email(field, msg string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		v := f.String(field)
		at := strings.Index(v, "@")
		if at <= 0 || at == len(v)-1 {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// Digits fails unless the field holds exactly n digits once formatting characters are removed.
func Digits(field string, n int, msg string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		raw := f.String(field)
		for _, r := range raw {
			if !unicode.IsDigit(r) && r != '-' && r != ' ' {
				return wizard.Invalid(msg)
			}
		}
		if len(StripNonDigits(raw)) != n {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// Checked fails unless a boolean field is set.
func Checked(field, msg string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		if !f.Bool(field) {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// When applies rule only when cond holds.
func When(cond func(wizard.Fields) bool, rule wizard.Rule) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		if !cond(f) {
			return wizard.Valid()
		}
		return rule(f)
	}
}

// Func adapts a plain check. fn returns the failure message, or "" when the fields are fine.
func Func(fn func(wizard.Fields) string) wizard.Rule {
	return func(f wizard.Fields) wizard.Result {
		if msg := fn(f); msg != "" {
			return wizard.Invalid(msg)
		}
		return wizard.Valid()
	}
}

// StripNonDigits removes everything but ASCII digits.
func StripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
