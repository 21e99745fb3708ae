// Package ui owns the coordination window: the acme window this bridge
// creates to host its per-file command menu and to render LSP responses
// (spec.md §4.E, component E).
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/acmelsp/bridge/internal/acmewin"
)

const (
	windowName = "+AcmeLSP"

	// inlineThreshold is the line count above which a listing is written
	// to a transient output window instead of the coordination body
	// (SPEC_FULL.md §4.E.1).
	inlineThreshold = 80
)

// WindowInfo is one row of the menu's tracked-file section.
type WindowInfo struct {
	ID       int
	Path     string
	Commands []string
}

// Renderer owns the coordination window and the per-window output
// windows it spawns for oversized listings.
type Renderer struct {
	coord   *acmewin.Window
	outputs map[int]*acmewin.Window // transient output windows, by their own id
}

// NewCoordinationWindow creates the scratch window the bridge uses for
// its menu and output.
func NewCoordinationWindow() (*Renderer, error) {
	w, err := acmewin.NewWindow(windowName)
	if err != nil {
		return nil, fmt.Errorf("ui: create coordination window: %w", err)
	}
	return &Renderer{coord: w, outputs: make(map[int]*acmewin.Window)}, nil
}

// ID returns the coordination window's acme id.
func (r *Renderer) ID() int { return r.coord.ID }

// Events streams the coordination window's own event file, so the router
// can dispatch mouse-2 executes on its exposed command words (spec.md
// §4.D "A mouse-2 execute on text in the coordination window").
func (r *Renderer) Events() <-chan *acmewin.Event { return r.coord.Events() }

// WriteEvent acknowledges e, letting acme perform its default handling
// for anything the router doesn't consume itself (a builtin tag word
// like Snarf or Undo, a mouse-3 look, or plain cursor motion).
func (r *Renderer) WriteEvent(e *acmewin.Event) error { return r.coord.WriteEvent(e) }

// OwnsWindow reports whether id belongs to this renderer (the
// coordination window or one of its transient output windows), so the
// router does not mistake our own scratch windows for tracked source
// files.
func (r *Renderer) OwnsWindow(id int) bool {
	if id == r.coord.ID {
		return true
	}
	_, ok := r.outputs[id]
	return ok
}

// Close releases the coordination window and any output windows still
// open.
func (r *Renderer) Close() {
	for _, w := range r.outputs {
		w.Close()
	}
	r.coord.Close()
}

// RenderMenu rewrites the coordination window's tag with the fixed
// header commands plus, per tracked window, its path and the commands
// its server's capabilities enable (spec.md §4.D "Menu composition").
// The contents are a pure function of its arguments, per spec.md §3's
// invariant on the coordination window body.
func (r *Renderer) RenderMenu(windows []WindowInfo, focused int) error {
	text := buildMenuText(windows, focused)

	if err := r.coord.Ctl("cleartag"); err != nil {
		return fmt.Errorf("ui: clear tag: %w", err)
	}
	if err := r.coord.WriteTag([]byte(text)); err != nil {
		return fmt.Errorf("ui: write tag: %w", err)
	}
	return nil
}

// buildMenuText renders the tag line for windows and focused: a pure
// function of its arguments, per spec.md §3's invariant on the
// coordination window body, factored out so it's testable without a
// live acme connection.
func buildMenuText(windows []WindowInfo, focused int) string {
	sorted := make([]WindowInfo, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var b strings.Builder
	b.WriteString("Get Put diag")
	for _, w := range sorted {
		prefix := " "
		if w.ID == focused {
			prefix = " *"
		}
		b.WriteString(prefix)
		b.WriteString(w.Path)
		if len(w.Commands) > 0 {
			b.WriteString(" [")
			b.WriteString(strings.Join(w.Commands, " "))
			b.WriteString("]")
		}
	}
	return b.String()
}

// Clear truncates the coordination window body (the "Get" command).
func (r *Renderer) Clear() error {
	return r.coord.Clear()
}

// AppendOutput appends lines to the coordination window body, unless the
// listing is large enough to warrant a transient output window.
func (r *Renderer) AppendOutput(title string, lines []string) error {
	if len(lines) > inlineThreshold {
		return r.appendOutputWindow(title, lines)
	}
	text := strings.Join(lines, "\n")
	if text != "" {
		text += "\n"
	}
	return r.coord.AppendBody([]byte(text))
}

// appendOutputWindow creates a new transient window named after title to
// hold an oversized listing (SPEC_FULL.md §4.E.1); an existing window of
// the same name is not reused.
func (r *Renderer) appendOutputWindow(title string, lines []string) error {
	w, err := acmewin.NewWindow(title)
	if err != nil {
		return fmt.Errorf("ui: open output window %q: %w", title, err)
	}
	text := strings.Join(lines, "\n") + "\n"
	if err := w.AppendBody([]byte(text)); err != nil {
		w.Close()
		return fmt.Errorf("ui: write output window %q: %w", title, err)
	}
	r.outputs[w.ID] = w
	return nil
}

// ForgetOutputWindow drops id from the tracked output-window set, called
// once the router observes its "del" log event.
func (r *Renderer) ForgetOutputWindow(id int) {
	delete(r.outputs, id)
}
