package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zdunecki/matchfund/pkg/wizard"
)

func TestRules(t *testing.T) {
	tests := []struct {
		name   string
		rule   wizard.Rule
		fields wizard.Fields
		valid  bool
	}{
		{"required blank", Required("name", "x"), wizard.Fields{"name": "   "}, false},
		{"required missing", Required("name", "x"), wizard.Fields{}, false},
		{"required set", Required("name", "x"), wizard.Fields{"name": "Acme"}, true},
		{"min length short", MinLength("d", 5, "x"), wizard.Fields{"d": "abcd"}, false},
		{"min length exact", MinLength("d", 5, "x"), wizard.Fields{"d": "abcde"}, true},
		{"min number below", MinNumber("n", 100, "x"), wizard.Fields{"n": 99.0}, false},
		{"min number string", MinNumber("n", 100, "x"), wizard.Fields{"n": "$1,000"}, true},
		{"min number not numeric", MinNumber("n", 100, "x"), wizard.Fields{"n": "lots"}, false},
		{"range low", Range("n", 1, 10, "x"), wizard.Fields{"n": 0}, false},
		{"range high", Range("n", 1, 10, "x"), wizard.Fields{"n": 11}, false},
		{"range edge", Range("n", 1, 10, "x"), wizard.Fields{"n": 10}, true},
		{"min number NaN", MinNumber("n", 100, "x"), wizard.Fields{"n": "NaN"}, false},
		{"min number Inf", MinNumber("n", 100, "x"), wizard.Fields{"n": "Inf"}, false},
		{"min number Infinity", MinNumber("n", 100, "x"), wizard.Fields{"n": "+Infinity"}, false},
		{"min number text", MinNumber("n", 100, "x"), wizard.Fields{"n": "abc"}, false},
		{"range NaN", Range("n", 1, 10, "x"), wizard.Fields{"n": "nan"}, false},
		{"range Inf", Range("n", 1, 10, "x"), wizard.Fields{"n": "-Inf"}, false},
		{"range text", Range("n", 1, 10, "x"), wizard.Fields{"n": "abc"}, false},
		{"date after ok", DateAfter("end", "start", "x"), wizard.Fields{"start": "2024-01-01", "end": "2024-01-02"}, true},
		{"date after equal", DateAfter("end", "start", "x"), wizard.Fields{"start": "2024-01-01", "end": "2024-01-01"}, false},
		{"date after missing", DateAfter("end", "start", "x"), wizard.Fields{"start": "2024-01-01"}, false},
		{"date after garbage", DateAfter("end", "start", "x"), wizard.Fields{"start": "2024-01-01", "end": "soon"}, false},
		{"min selected none", MinSelected("c", 1, "x"), wizard.Fields{}, false},
		{"min selected one", MinSelected("c", 1, "x"), wizard.Fields{"c": []string{"education"}}, true},
		{"email no at", Email("e", "x"), wizard.Fields{"e": "someone.example.com"}, false},
		{"email trailing at", Email("e", "x"), wizard.Fields{"e": "someone@"}, false},
		{"email ok", Email("e", "x"), wizard.Fields{"e": "a@b.org"}, true},
		{"digits five", Digits("ein", 9, "x"), wizard.Fields{"ein": "12345"}, false},
		{"digits nine", Digits("ein", 9, "x"), wizard.Fields{"ein": "123456789"}, true},
		{"digits formatted", Digits("ein", 9, "x"), wizard.Fields{"ein": "12-3456789"}, true},
		{"digits letters", Digits("ein", 9, "x"), wizard.Fields{"ein": "12345678a9"}, false},
		{"checked false", Checked("t", "x"), wizard.Fields{"t": false}, false},
		{"checked yes", Checked("t", "x"), wizard.Fields{"t": "yes"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rule(tt.fields)
			assert.Equal(t, tt.valid, got.OK(), got.String())
			if !tt.valid {
				assert.Equal(t, "x", got.Reason())
			}
		})
	}
}

func TestWhenSkipsRuleUnlessConditionHolds(t *testing.T) {
	rule := When(func(f wizard.Fields) bool { return f.Bool("launch") }, Required("card", "card required"))

	assert.True(t, rule(wizard.Fields{"launch": false}).OK())
	assert.Equal(t, "card required", rule(wizard.Fields{"launch": true}).Reason())
}

func TestFunc(t *testing.T) {
	rule := Func(func(f wizard.Fields) string {
		if f.String("a") == f.String("b") {
			return "must differ"
		}
		return ""
	})
	assert.False(t, rule(wizard.Fields{"a": "1", "b": "1"}).OK())
	assert.True(t, rule(wizard.Fields{"a": "1", "b": "2"}).OK())
}

func TestStripNonDigits(t *testing.T) {
	assert.Equal(t, "123456789", StripNonDigits("12-345 6789"))
	assert.Equal(t, "", StripNonDigits("abc"))
}
