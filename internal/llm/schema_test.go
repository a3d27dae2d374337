package llm

import (
	"testing"
)

func TestValidateBehavior(t *testing.T) {
	valid := []string{
		`{"action":"eat"}`,
		`{"action":"farm","target":"east field"}`,
		`{"action":"pray","target":"shrine","reason":"the omens"}`,
	}
	for _, raw := range valid {
		if err := ValidateBehavior(raw); err != nil {
			t.Errorf("expected %s to validate, got %v", raw, err)
		}
	}

	invalid := []string{
		`{"action":"fly"}`,
		`{"target":"east field"}`,
		`{"action":"eat","mood":"happy"}`,
		`"eat"`,
		`{"action":`,
	}
	for _, raw := range invalid {
		if err := ValidateBehavior(raw); err == nil {
			t.Errorf("expected %s to be rejected", raw)
		}
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"action\":\"eat\"}\n```": `{"action":"eat"}`,
		"```\n{\"action\":\"eat\"}\n```":     `{"action":"eat"}`,
		`{"action":"eat"}`:                   `{"action":"eat"}`,
		"  {\"action\":\"eat\"}  ":           `{"action":"eat"}`,
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Errorf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
