package command

import (
	"errors"
	"testing"
)

func splitStrings(t *testing.T, line string, maxArgs int) []string {
	t.Helper()
	argv, err := ShellSplit([]byte(line), maxArgs)
	if err != nil {
		t.Fatalf("ShellSplit(%q): %v", line, err)
	}
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = string(a)
	}
	return out
}

func TestShellSplitEmpty(t *testing.T) {
	if got := splitStrings(t, "", MaxArgs); len(got) != 0 {
		t.Errorf("tokens = %q, want none", got)
	}
	if got := splitStrings(t, "   \t ", MaxArgs); len(got) != 0 {
		t.Errorf("tokens = %q, want none", got)
	}
}

func TestShellSplitSingleCommand(t *testing.T) {
	got := splitStrings(t, "reboot", MaxArgs)
	if len(got) != 1 || got[0] != "reboot" {
		t.Errorf("tokens = %q, want [reboot]", got)
	}
}

func TestShellSplitMultipleArgs(t *testing.T) {
	got := splitStrings(t, "set speed 9600", MaxArgs)
	want := []string{"set", "speed", "9600"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestShellSplitWhitespace(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"  led on  ", []string{"led", "on"}},
		{"\ta\t b\r\n", []string{"a", "b"}},
	}
	for _, tc := range cases {
		got := splitStrings(t, tc.line, MaxArgs)
		if len(got) != len(tc.want) {
			t.Errorf("split(%q) = %q, want %q", tc.line, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("split(%q)[%d] = %q, want %q", tc.line, i, got[i], tc.want[i])
			}
		}
	}
}

func TestShellSplitDoubleQuotes(t *testing.T) {
	got := splitStrings(t, `say "hello world"`, MaxArgs)
	if len(got) != 2 || got[0] != "say" || got[1] != "hello world" {
		t.Errorf("tokens = %q, want [say, hello world]", got)
	}
}

func TestShellSplitSingleQuotes(t *testing.T) {
	got := splitStrings(t, "say 'one two'", MaxArgs)
	if len(got) != 2 || got[0] != "say" || got[1] != "one two" {
		t.Errorf("tokens = %q, want [say, one two]", got)
	}
}

func TestShellSplitMixedQuotes(t *testing.T) {
	// A quote of the other kind inside an active quote is literal content.
	got := splitStrings(t, `echo "hi there" 'x y'`, MaxArgs)
	want := []string{"echo", "hi there", "x y"}
	if len(got) != 3 {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	got = splitStrings(t, `a "it's" b`, MaxArgs)
	if len(got) != 3 || got[1] != "it's" {
		t.Errorf("tokens = %q, want [a, it's, b]", got)
	}
}

func TestShellSplitOverflow(t *testing.T) {
	line := []byte("a b c d e")
	if _, err := ShellSplit(line, 4); !errors.Is(err, ErrTooManyArgs) {
		t.Errorf("err = %v, want ErrTooManyArgs", err)
	}

	// Exactly maxArgs tokens is fine.
	argv, err := ShellSplit([]byte("a b c d"), 4)
	if err != nil || len(argv) != 4 {
		t.Errorf("4 tokens with limit 4: argv=%v err=%v", argv, err)
	}
}

func TestShellSplitNilLine(t *testing.T) {
	if _, err := ShellSplit(nil, MaxArgs); !errors.Is(err, ErrNoLine) {
		t.Errorf("err = %v, want ErrNoLine", err)
	}
}

func TestShellSplitEmptyQuotedToken(t *testing.T) {
	got := splitStrings(t, `set name ""`, MaxArgs)
	if len(got) != 3 || got[2] != "" {
		t.Errorf("tokens = %q, want [set, name, \"\"]", got)
	}
}
