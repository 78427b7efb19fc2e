package accesscode

import (
	"strings"
	"testing"
)

func TestGenerate_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !Valid(code) {
			t.Fatalf("unexpected code format: %q", code)
		}
	}
}

func TestGenerate_DigitsRoughlyUniform(t *testing.T) {
	const samples = 2000
	counts := make(map[rune]int)
	for i := 0; i < samples; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		for _, r := range strings.ReplaceAll(code, " ", "") {
			counts[r]++
		}
	}

	total := samples * 9
	expected := total / 10
	for d := '0'; d <= '9'; d++ {
		got := counts[d]
		// 18000 draws per run; a fair digit lands well inside half to
		// double its expected share.
		if got < expected/2 || got > expected*2 {
			t.Fatalf("digit %c count %d far from expected %d", d, got, expected)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid("123 456 789") {
		t.Fatalf("expected valid")
	}
	for _, bad := range []string{"", "123456789", "123 456 78", "abc def ghi", "123  456 789", " 123 456 789"} {
		if Valid(bad) {
			t.Fatalf("expected invalid: %q", bad)
		}
	}
}
