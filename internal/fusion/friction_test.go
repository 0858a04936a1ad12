package fusion

import (
	"testing"
)

func TestTracker_BackspaceOnShrink(t *testing.T) {
	tr := NewTracker()

	tr.OnTextChanged("Hello", 0)
	tr.OnTextChanged("Hell", 100)

	c := tr.Counters()
	if c.BackspaceCount != 1 {
		t.Errorf("Expected backspaceCount=1, got %d", c.BackspaceCount)
	}
	if c.RephraseCount != 0 {
		t.Errorf("Expected rephraseCount=0, got %d", c.RephraseCount)
	}
}

func TestTracker_RephraseOnMidInsertion(t *testing.T) {
	tr := NewTracker()

	// Insertion at a mid position shifts every later rune, so the
	// positional diff count is 5 (>= 3) while the length delta is 1.
	tr.OnTextChanged("The quick fox", 0)
	tr.OnTextChanged("The quickk fox", 200)

	c := tr.Counters()
	if c.RephraseCount != 1 {
		t.Errorf("Expected rephraseCount=1, got %d", c.RephraseCount)
	}
	if c.BackspaceCount != 0 {
		t.Errorf("Expected backspaceCount=0, got %d", c.BackspaceCount)
	}
}

func TestTracker_RephraseRequiresAllConditions(t *testing.T) {
	base := "The quick brown fox"

	tests := []struct {
		name   string
		next   string
		gapMs  int64
		expect int
	}{
		{"all five conditions hold", "The quack brawn fax", 200, 1},
		{"identical text", base, 200, 0},
		{"gap too long", "The quack brawn fax", 600, 0},
		{"length delta too large", "The quack brawn foxes!!!", 200, 0},
		{"fewer than three positions differ", "The quack brown fox", 200, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			tr.OnTextChanged(base, 0)
			tr.OnTextChanged(tt.next, tt.gapMs)

			if got := tr.Counters().RephraseCount; got != tt.expect {
				t.Errorf("Expected rephraseCount=%d, got %d", tt.expect, got)
			}
		})
	}
}

func TestTracker_ShortInputNeverRephrases(t *testing.T) {
	tr := NewTracker()

	tr.OnTextChanged("abcdefghij", 0) // exactly 10 runes: len > 10 fails
	tr.OnTextChanged("zyxwvutsrq", 100)

	if got := tr.Counters().RephraseCount; got != 0 {
		t.Errorf("Expected rephraseCount=0 for short input, got %d", got)
	}
}

func TestTracker_CountersMonotoneAndNonNegative(t *testing.T) {
	tr := NewTracker()

	inputs := []string{
		"hello", "hell", "hel", "hello world again", "hello wurld agian",
		"", "short", "shor", "a much longer line of text", "a much longer line of test",
	}

	var prev [2]int
	for i, text := range inputs {
		tr.OnTextChanged(text, int64(i*100))
		c := tr.Counters()
		if c.BackspaceCount < 0 || c.RephraseCount < 0 {
			t.Fatalf("Counters went negative: %+v", c)
		}
		if c.BackspaceCount < prev[0] || c.RephraseCount < prev[1] {
			t.Fatalf("Counters decreased without reset: %+v after %+v", c, prev)
		}
		prev = [2]int{c.BackspaceCount, c.RephraseCount}
	}
}

func TestTracker_ResetIdempotent(t *testing.T) {
	tr := NewTracker()
	tr.OnTextChanged("some longer text here", 0)
	tr.OnTextChanged("some longer text her", 100)

	tr.Reset()
	first := tr.Counters()
	tr.Reset()
	second := tr.Counters()

	if first != (second) || first.BackspaceCount != 0 || first.RephraseCount != 0 {
		t.Errorf("Expected {0,0} after reset, got %+v then %+v", first, second)
	}
}

func TestTracker_ResetKeepsPreviousText(t *testing.T) {
	tr := NewTracker()
	tr.OnTextChanged("The quick brown fox", 0)
	tr.Reset()

	// The comparison baseline survives the reset, so a quick similar
	// retype right after a submit still counts as a rephrase.
	tr.OnTextChanged("The quack brawn fax", 100)

	if got := tr.Counters().RephraseCount; got != 1 {
		t.Errorf("Expected rephraseCount=1 after reset, got %d", got)
	}
}

func TestTracker_NonMonotonicClockDoesNotPanic(t *testing.T) {
	tr := NewTracker()
	tr.OnTextChanged("a reasonable sentence", 1000)
	tr.OnTextChanged("a reasonible sentence", 200) // clock went backwards
	tr.OnTextChanged("a reasonable sentence", 0)

	if c := tr.Counters(); c.BackspaceCount < 0 || c.RephraseCount < 0 {
		t.Errorf("Counters invalid after clock regression: %+v", c)
	}
}

func TestPositionalDiff(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "abcd", 1},
		{"The quick fox", "The quickk fox", 5},
		{"ab", "ba", 2},
	}

	for _, tt := range tests {
		got := positionalDiff([]rune(tt.a), []rune(tt.b))
		if got != tt.want {
			t.Errorf("positionalDiff(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
