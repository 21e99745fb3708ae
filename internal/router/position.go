package router

import (
	"unicode/utf16"

	"go.lsp.dev/protocol"
)

// lineIndex maps between rune offsets into a document's full text and
// LSP's zero-based line / UTF-16-code-unit-character positions (spec.md
// §4.C "Position mapping"). It is rebuilt whenever the body changes; a
// dirty window simply gets a fresh lineIndex, spec.md's "a body edit
// invalidates the index."
type lineIndex struct {
	text string
	// lineStarts[i] is the rune offset of the first rune of line i.
	lineStarts []int
}

// newLineIndex scans text once to find line-start rune offsets.
func newLineIndex(text string) *lineIndex {
	starts := []int{0}
	offset := 0
	for _, r := range text {
		offset++
		if r == '\n' {
			starts = append(starts, offset)
		}
	}
	return &lineIndex{text: text, lineStarts: starts}
}

// ToPosition converts a rune offset into text to an LSP Position.
func (idx *lineIndex) ToPosition(runeOffset int) protocol.Position {
	line := idx.lineForOffset(runeOffset)
	lineStartRune := idx.lineStarts[line]

	runes := []rune(idx.text)
	if lineStartRune > len(runes) {
		lineStartRune = len(runes)
	}
	if runeOffset > len(runes) {
		runeOffset = len(runes)
	}
	character := utf16.Encode(runes[lineStartRune:runeOffset])

	return protocol.Position{Line: uint32(line), Character: uint32(len(character))}
}

// ToRuneOffset converts an LSP Position back to a rune offset into text.
func (idx *lineIndex) ToRuneOffset(pos protocol.Position) int {
	line := int(pos.Line)
	if line < 0 {
		line = 0
	}
	if line >= len(idx.lineStarts) {
		return len([]rune(idx.text))
	}
	lineStartRune := idx.lineStarts[line]

	runes := []rune(idx.text)
	lineEndRune := len(runes)
	if line+1 < len(idx.lineStarts) {
		lineEndRune = idx.lineStarts[line+1]
	}
	if lineStartRune > len(runes) {
		lineStartRune = len(runes)
	}
	if lineEndRune > len(runes) {
		lineEndRune = len(runes)
	}

	// Walk UTF-16 code units within the line to find the matching rune
	// offset for pos.Character.
	units := uint32(0)
	for i := lineStartRune; i < lineEndRune; i++ {
		if units >= uint32(pos.Character) {
			return i
		}
		r := runes[i]
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return lineEndRune
}

func (idx *lineIndex) lineForOffset(runeOffset int) int {
	// lineStarts is sorted ascending; find the last start <= runeOffset.
	lo, hi := 0, len(idx.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if idx.lineStarts[mid] <= runeOffset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
