package textutil

import (
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func TestLineIndexPosition(t *testing.T) {
	idx := NewLineIndex("ab\ncde\n\nf")

	tests := []struct {
		offset   int
		wantLine int
		wantCol  int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 3},
		{3, 2, 1},
		{5, 2, 3},
		{7, 3, 1},
		{8, 4, 1},
		{100, 4, 2},
		{-4, 1, 1},
	}

	for _, tt := range tests {
		line, col := idx.Position(tt.offset)
		if line != tt.wantLine || col != tt.wantCol {
			t.Errorf("Position(%d) = (%d,%d), want (%d,%d)", tt.offset, line, col, tt.wantLine, tt.wantCol)
		}
	}

	if idx.Lines() != 4 {
		t.Errorf("Lines() = %d, want 4", idx.Lines())
	}
	if got := idx.LineStart(2); got != 3 {
		t.Errorf("LineStart(2) = %d, want 3", got)
	}
	if got := idx.LineEnd(2); got != 7 {
		t.Errorf("LineEnd(2) = %d, want 7", got)
	}
	if got := idx.LineEnd(4); got != 9 {
		t.Errorf("LineEnd(4) = %d, want 9", got)
	}
	if got := idx.LineStart(9); got != -1 {
		t.Errorf("LineStart(9) = %d, want -1", got)
	}
}

// =============================================================================
// Regex cache and input ceiling
// =============================================================================

func TestRegexpCompilesOnce(t *testing.T) {
	const pattern = `^[a-z]+-\d+$`
	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			re, err := Regexp(pattern)
			if err != nil {
				t.Errorf("Regexp() error = %v", err)
			}
			results[i] = re
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d got a different *regexp.Regexp", i)
		}
	}
}

func TestRegexpInvalid(t *testing.T) {
	if _, err := Regexp(`([`); err == nil {
		t.Error("Regexp(`([`) expected error")
	}
}

func TestBound(t *testing.T) {
	short := "hello"
	if got := Bound(short, 10); got != short {
		t.Errorf("Bound(short) = %q", got)
	}

	long := strings.Repeat("x", DefaultRegexInputLimit+10)
	if got := Bound(long, 0); len(got) != DefaultRegexInputLimit {
		t.Errorf("Bound(long) len = %d, want %d", len(got), DefaultRegexInputLimit)
	}

	// "é" is two bytes; a cut at 3 would split the second one.
	multi := "éé"
	got := Bound(multi, 3)
	if !utf8.ValidString(got) || got != "é" {
		t.Errorf("Bound(multi, 3) = %q, want %q", got, "é")
	}
}
