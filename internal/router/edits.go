package router

import (
	"fmt"
	"sort"

	"go.lsp.dev/protocol"

	"github.com/acmelsp/bridge/internal/acmewin"
)

// sortEditsDescending returns edits ordered by range start, latest first,
// so applying them in order never invalidates a not-yet-applied edit's
// offsets (spec.md §4.D "edits applied in reverse order of start position
// to keep offsets valid").
func sortEditsDescending(edits []protocol.TextEdit) []protocol.TextEdit {
	sorted := make([]protocol.TextEdit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Range.Start, sorted[j].Range.Start
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		return a.Character > b.Character
	})
	return sorted
}

// applyEditsToText applies edits to text using a plain-Go rune-offset
// model, independent of acme: a pure, testable model of what ApplyEdits
// does to a live window. The router itself refreshes the mirror by
// re-reading the window body after ApplyEdits, not through this function.
func applyEditsToText(text string, edits []protocol.TextEdit) string {
	idx := newLineIndex(text)
	runes := []rune(text)

	for _, e := range sortEditsDescending(edits) {
		q0 := idx.ToRuneOffset(e.Range.Start)
		q1 := idx.ToRuneOffset(e.Range.End)
		if q0 < 0 {
			q0 = 0
		}
		if q1 > len(runes) {
			q1 = len(runes)
		}
		if q0 > q1 {
			q0 = q1
		}
		replacement := []rune(e.NewText)
		out := make([]rune, 0, len(runes)-(q1-q0)+len(replacement))
		out = append(out, runes[:q0]...)
		out = append(out, replacement...)
		out = append(out, runes[q1:]...)
		runes = out
	}
	return string(runes)
}

// ApplyEdits rewrites w's body in place by applying edits via acme's
// addr+data mechanism, each edit addressed against idx (the line index
// computed from the body *before* any edit in this batch was applied;
// since edits are applied in reverse order, earlier-in-document offsets
// computed from idx remain valid throughout the batch).
func ApplyEdits(w *acmewin.Window, idx *lineIndex, edits []protocol.TextEdit) error {
	for _, e := range sortEditsDescending(edits) {
		q0 := idx.ToRuneOffset(e.Range.Start)
		q1 := idx.ToRuneOffset(e.Range.End)
		if err := w.SetAddr(fmt.Sprintf("#%d,#%d", q0, q1)); err != nil {
			return fmt.Errorf("router: apply edit: %w", err)
		}
		if err := w.WriteData([]byte(e.NewText)); err != nil {
			return fmt.Errorf("router: apply edit: %w", err)
		}
	}
	return nil
}
