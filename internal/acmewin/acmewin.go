// Package acmewin adapts the acme editor's file-server protocol
// (spec.md §4.C, component C): window enumeration, the global log
// stream, per-window event streams, and the virtual files (tag, body,
// addr, data, ctl, event) that make up a window.
//
// It is a thin wrapper over 9fans.net/go/acme, grounded on how
// cptaffe-acme-treesitter drives the same package (acme.Windows,
// acme.Log, acme.Open, *acme.Win), adapted from per-window highlighting
// to per-window LSP mirroring.
package acmewin

import (
	"fmt"

	"9fans.net/go/acme"
)

// WindowInfo is one row of the acme window index (spec.md §4.C "enumerate
// windows").
type WindowInfo struct {
	ID   int
	Name string
}

// ListWindows returns every currently open acme window.
func ListWindows() ([]WindowInfo, error) {
	wins, err := acme.Windows()
	if err != nil {
		return nil, fmt.Errorf("acmewin: list windows: %w", err)
	}
	out := make([]WindowInfo, 0, len(wins))
	for _, w := range wins {
		out = append(out, WindowInfo{ID: w.ID, Name: w.Name})
	}
	return out, nil
}

// LogEvent is one line of acme's global event log: a window was created,
// deleted, focused, or saved.
type LogEvent struct {
	ID   int
	Op   string // "new", "del", "focus", "put", "zerox", ...
	Name string
}

// LogStream streams LogEvent from acme's global log file.
type LogStream struct {
	lr *acme.LogReader
}

// Log opens acme's global log stream (spec.md §4.C "(i) stream the
// global log of window create/delete/focus/put events").
func Log() (*LogStream, error) {
	lr, err := acme.Log()
	if err != nil {
		return nil, fmt.Errorf("acmewin: open log: %w", err)
	}
	return &LogStream{lr: lr}, nil
}

// Read blocks for the next log event.
func (s *LogStream) Read() (LogEvent, error) {
	ev, err := s.lr.Read()
	if err != nil {
		return LogEvent{}, err
	}
	return LogEvent{ID: ev.ID, Op: ev.Op, Name: ev.Name}, nil
}

// Close releases the log stream.
func (s *LogStream) Close() error {
	return s.lr.Close()
}

// Event is one per-window event: a keyboard execute, mouse-chord
// execute, or mouse look, carrying the selected character span and text
// (spec.md §6 "Acme adapter contract"). C2 tags the event's shape, upper
// case for the body and lower case for the tag: 'X'/'x' are mouse-2
// executes, 'L'/'l' are mouse-3 looks, 'I'/'D'/'i'/'d' are text insertions
// and deletions generated by typing, which carry no action of their own
// but signal the text changed.
type Event = acme.Event

// IsExecute reports whether e is a mouse-2 execute, in the body or tag.
func IsExecute(e *Event) bool { return e.C2 == 'x' || e.C2 == 'X' }

// IsTagExecute reports whether e is a mouse-2 execute specifically in the
// window tag, where acme's own injected command words live.
func IsTagExecute(e *Event) bool { return e.C2 == 'x' }

// IsLook reports whether e is a mouse-3 look, in the body or tag.
func IsLook(e *Event) bool { return e.C2 == 'l' || e.C2 == 'L' }

// IsBodyEdit reports whether e is a typed insertion or deletion in the
// body, acme's signal that the body text itself changed.
func IsBodyEdit(e *Event) bool { return e.C2 == 'I' || e.C2 == 'D' }

// Window is one open acme window, exposing its virtual files (spec.md
// §4.C "(iii) read/write the window's virtual files").
type Window struct {
	ID  int
	win *acme.Win
}

// OpenWindow attaches to an already-open window by id.
func OpenWindow(id int) (*Window, error) {
	w, err := acme.Open(id, nil)
	if err != nil {
		return nil, fmt.Errorf("acmewin: open window %d: %w", id, err)
	}
	return &Window{ID: id, win: w}, nil
}

// NewWindow creates a fresh acme window (spec.md §4.C "(iv) create a new
// window with a given name"), used for the coordination window and for
// transient output windows (spec.md §4.E).
func NewWindow(name string) (*Window, error) {
	w, err := acme.New()
	if err != nil {
		return nil, fmt.Errorf("acmewin: new window: %w", err)
	}
	if err := w.Name(name); err != nil {
		w.CloseFiles()
		return nil, fmt.Errorf("acmewin: name window %q: %w", name, err)
	}
	return &Window{ID: w.ID(), win: w}, nil
}

// Tag reads the window's tag line (used to recover its file path).
func (w *Window) Tag() (string, error) {
	b, err := w.win.ReadAll("tag")
	if err != nil {
		return "", fmt.Errorf("acmewin: read tag: %w", err)
	}
	return string(b), nil
}

// WriteTag replaces the window's entire tag line with text.
func (w *Window) WriteTag(text []byte) error {
	if _, err := w.win.Write("tag", text); err != nil {
		return fmt.Errorf("acmewin: write tag: %w", err)
	}
	return nil
}

// Body reads the window's full body text.
func (w *Window) Body() ([]byte, error) {
	b, err := w.win.ReadAll("body")
	if err != nil {
		return nil, fmt.Errorf("acmewin: read body: %w", err)
	}
	return b, nil
}

// ReadAddr returns the current selection as (q0, q1) rune offsets.
func (w *Window) ReadAddr() (q0, q1 int, err error) {
	q0, q1, err = w.win.ReadAddr()
	if err != nil {
		return 0, 0, fmt.Errorf("acmewin: read addr: %w", err)
	}
	return q0, q1, nil
}

// SetAddr writes an acme address expression to select a range before a
// data write (spec.md §4.D "rewriting the window body via addr+data").
func (w *Window) SetAddr(format string, args ...any) error {
	if err := w.win.Addr(format, args...); err != nil {
		return fmt.Errorf("acmewin: set addr %q: %w", format, err)
	}
	return nil
}

// WriteData replaces the text selected by the most recent SetAddr call.
func (w *Window) WriteData(data []byte) error {
	if _, err := w.win.Write("data", data); err != nil {
		return fmt.Errorf("acmewin: write data: %w", err)
	}
	return nil
}

// AppendBody appends text to the end of the window body.
func (w *Window) AppendBody(text []byte) error {
	if err := w.SetAddr("$"); err != nil {
		return err
	}
	return w.WriteData(text)
}

// Clear truncates the window body to empty.
func (w *Window) Clear() error {
	if err := w.SetAddr(","); err != nil {
		return err
	}
	return w.WriteData(nil)
}

// Ctl writes a control message (e.g. "clean", "dump", "dirty").
func (w *Window) Ctl(format string, args ...any) error {
	if err := w.win.Ctl(format, args...); err != nil {
		return fmt.Errorf("acmewin: ctl %q: %w", format, err)
	}
	return nil
}

// Events streams this window's event file. Each Event must be answered
// via WriteEvent, or acme will not perform the default action (spec.md
// §4.C "(iv) ... to acknowledge events so acme performs the default
// action on unhandled ones").
func (w *Window) Events() <-chan *Event {
	return w.win.EventChan()
}

// WriteEvent acknowledges e, letting acme perform its default handling.
func (w *Window) WriteEvent(e *Event) error {
	if err := w.win.WriteEvent(e); err != nil {
		return fmt.Errorf("acmewin: write event: %w", err)
	}
	return nil
}

// Del deletes the window. sure=true deletes even if the body is dirty.
func (w *Window) Del(sure bool) error {
	if err := w.win.Del(sure); err != nil {
		return fmt.Errorf("acmewin: del window %d: %w", w.ID, err)
	}
	return nil
}

// Close releases the window's open files without deleting the window.
func (w *Window) Close() {
	w.win.CloseFiles()
}
