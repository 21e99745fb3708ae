package router

import (
	"testing"

	"go.lsp.dev/protocol"
)

func TestLineIndexToPosition(t *testing.T) {
	text := "package main\nfunc main() {}\n"
	idx := newLineIndex(text)

	cases := []struct {
		offset   int
		wantLine uint32
		wantChar uint32
	}{
		{0, 0, 0},
		{12, 0, 12}, // end of "package main"
		{13, 1, 0},  // start of second line
		{18, 1, 5},  // inside "func main"
	}
	for _, c := range cases {
		got := idx.ToPosition(c.offset)
		if got.Line != c.wantLine || got.Character != c.wantChar {
			t.Errorf("ToPosition(%d) = %+v, want {Line:%d Character:%d}", c.offset, got, c.wantLine, c.wantChar)
		}
	}
}

func TestLineIndexRoundTrip(t *testing.T) {
	text := "abc\ndef\nghij\n"
	idx := newLineIndex(text)

	for offset := 0; offset <= len([]rune(text)); offset++ {
		pos := idx.ToPosition(offset)
		got := idx.ToRuneOffset(pos)
		if got != offset {
			t.Errorf("round trip offset %d: ToPosition=%+v ToRuneOffset=%d", offset, pos, got)
		}
	}
}

func TestLineIndexSurrogatePair(t *testing.T) {
	// U+1F600 (grinning face) needs a UTF-16 surrogate pair (2 code units)
	// but is a single Go rune.
	text := "a\U0001F600b\n"
	idx := newLineIndex(text)

	// rune offsets: 0='a', 1='😀', 2='b', 3='\n'
	posAfterEmoji := idx.ToPosition(2)
	if posAfterEmoji.Character != 3 {
		t.Errorf("Character after surrogate pair = %d, want 3 (1 + 2 code units)", posAfterEmoji.Character)
	}
	if got := idx.ToRuneOffset(protocol.Position{Line: 0, Character: 3}); got != 2 {
		t.Errorf("ToRuneOffset(char=3) = %d, want 2", got)
	}
}
