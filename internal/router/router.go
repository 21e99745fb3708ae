// Package router implements the single-threaded cooperative reactor that
// ties acme windows to LSP sessions together (spec.md §4.D, component D):
// it consumes acme log events, per-window events, and server responses,
// and is the only goroutine that mutates window or session state.
package router

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/acmelsp/bridge/internal/acmewin"
	"github.com/acmelsp/bridge/internal/config"
	"github.com/acmelsp/bridge/internal/lspsession"
	"github.com/acmelsp/bridge/internal/ui"
)

// windowState is spec.md §3's WindowState: an acme window id, its file
// path, the session it is bound to (nil if unmatched), and a position
// index rebuilt whenever the body changes.
type windowState struct {
	id      int
	win     *acmewin.Window
	path    string
	uri     protocol.DocumentURI
	session *lspsession.Session
	idx     *lineIndex
}

type windowEvent struct {
	windowID int
	event    *acmewin.Event
}

type serverMsg struct {
	serverName string
	msg        lspsession.ServerMessage
	exited     bool
}

// outputRenderer is the coordination-window surface the router drives.
// It is satisfied by *ui.Renderer; factoring it out as an interface lets
// dispatch and menu logic be tested against a fake, without a live acme
// connection (the same dependency-injection idiom lspsession.Start uses
// to separate its transport from its protocol logic).
type outputRenderer interface {
	ID() int
	OwnsWindow(id int) bool
	RenderMenu(windows []ui.WindowInfo, focused int) error
	Clear() error
	AppendOutput(title string, lines []string) error
	ForgetOutputWindow(id int)
	Events() <-chan *acmewin.Event
	WriteEvent(e *acmewin.Event) error
}

// Router owns every session and tracked window. It is not safe for
// concurrent use; only Run's goroutine touches its fields (spec.md §5).
type Router struct {
	log     *zap.Logger
	servers []config.ServerConfig

	sessions map[string]*lspsession.Session
	windows  map[int]*windowState
	focused  int

	render outputRenderer

	windowEvents chan windowEvent
	serverMsgs   chan serverMsg
}

// New builds a Router over the compiled server list. Call Run to start
// the reactor loop.
func New(log *zap.Logger, servers []config.ServerConfig) *Router {
	return &Router{
		log:          log,
		servers:      servers,
		sessions:     make(map[string]*lspsession.Session),
		windows:      make(map[int]*windowState),
		windowEvents: make(chan windowEvent, 64),
		serverMsgs:   make(chan serverMsg, 64),
	}
}

// Run creates the coordination window, seeds from the currently open
// acme windows, then drives the reactor until ctx is cancelled or the
// acme log stream ends. On return, every session has been sent shutdown.
func (r *Router) Run(ctx context.Context) error {
	render, err := ui.NewCoordinationWindow()
	if err != nil {
		return fmt.Errorf("router: coordination window: %w", err)
	}
	r.render = render
	defer render.Close()
	go r.watchWindow(render.ID(), render)

	logStream, err := acmewin.Log()
	if err != nil {
		return fmt.Errorf("router: open acme log: %w", err)
	}
	defer logStream.Close()

	logEvents := make(chan acmewin.LogEvent, 64)
	logErr := make(chan error, 1)
	go func() {
		defer close(logEvents)
		for {
			ev, err := logStream.Read()
			if err != nil {
				logErr <- err
				return
			}
			logEvents <- ev
		}
	}()

	r.scanExisting()
	r.refreshMenu()

	for {
		select {
		case ev, ok := <-logEvents:
			if !ok {
				r.shutdown(context.Background())
				return fmt.Errorf("router: acme log ended: %w", <-logErr)
			}
			r.handleLogEvent(ev)

		case we := <-r.windowEvents:
			r.handleWindowEvent(we)

		case sm := <-r.serverMsgs:
			r.handleServerMessage(sm)

		case <-ctx.Done():
			r.shutdown(context.Background())
			return ctx.Err()
		}
	}
}

// scanExisting registers every currently open window, matching spec.md
// §4.D's "or at startup scan" clause for WindowState creation.
func (r *Router) scanExisting() {
	wins, err := acmewin.ListWindows()
	if err != nil {
		r.log.Warn("list windows", zap.Error(err))
		return
	}
	for _, w := range wins {
		r.onWindowNew(w.ID, w.Name)
	}
}

func (r *Router) handleLogEvent(ev acmewin.LogEvent) {
	switch ev.Op {
	case "new":
		r.onWindowNew(ev.ID, ev.Name)
	case "del":
		r.onWindowDel(ev.ID)
	case "put":
		r.onWindowPut(ev.ID)
	case "focus":
		r.onWindowFocus(ev.ID)
	}
}

// onWindowNew registers a newly opened window against the first server
// whose Files regex matches its path, opening the document on that
// server (spec.md §4.D "On log new").
func (r *Router) onWindowNew(id int, name string) {
	if _, ok := r.windows[id]; ok {
		return
	}
	if r.render != nil && r.render.OwnsWindow(id) {
		return
	}

	win, err := acmewin.OpenWindow(id)
	if err != nil {
		r.log.Warn("open window", zap.Int("id", id), zap.Error(err))
		return
	}

	tag, err := win.Tag()
	if err != nil {
		r.log.Warn("read tag", zap.Int("id", id), zap.Error(err))
		win.Close()
		return
	}
	path := tagPath(tag)
	if path == "" {
		path = name
	}

	sc, ok := config.Match(r.servers, path)
	if !ok {
		win.Close()
		return
	}

	sess, err := r.getOrStartSession(sc)
	if err != nil {
		r.log.Warn("start session", zap.String("server", sc.Name), zap.Error(err))
		win.Close()
		return
	}

	body, err := win.Body()
	if err != nil {
		r.log.Warn("read body", zap.Int("id", id), zap.Error(err))
		win.Close()
		return
	}

	uri := protocol.DocumentURI("file://" + path)
	if err := sess.Open(uri, string(body), languageID(path)); err != nil {
		r.log.Warn("didOpen", zap.Int("id", id), zap.String("uri", string(uri)), zap.Error(err))
	}

	ws := &windowState{id: id, win: win, path: path, uri: uri, session: sess, idx: newLineIndex(string(body))}
	r.windows[id] = ws
	go r.watchWindow(id, win)
	r.refreshMenu()
}

// onWindowDel tears down a closed window's server-side state (spec.md
// §4.D "On log del").
func (r *Router) onWindowDel(id int) {
	if r.render != nil && r.render.OwnsWindow(id) {
		r.render.ForgetOutputWindow(id)
		return
	}
	ws, ok := r.windows[id]
	if !ok {
		return
	}
	delete(r.windows, id)

	if ws.session != nil {
		for _, pid := range ws.session.PendingForWindow(id) {
			ws.session.Cancel(pid)
		}
		if err := ws.session.Close(ws.uri); err != nil {
			r.log.Warn("didClose", zap.Int("id", id), zap.Error(err))
		}
	}
	ws.win.Close()

	if r.focused == id {
		r.focused = 0
	}
	r.refreshMenu()
}

// onWindowPut flushes the document mirror, saves, and issues
// format/code-action follow-ups per the server's config (spec.md §4.D
// "On log put").
func (r *Router) onWindowPut(id int) {
	ws, ok := r.windows[id]
	if !ok || ws.session == nil {
		return
	}

	body, err := ws.win.Body()
	if err != nil {
		r.log.Warn("read body on put", zap.Int("id", id), zap.Error(err))
		return
	}
	text := string(body)
	ws.idx = newLineIndex(text)

	if err := ws.session.Save(ws.uri, text); err != nil {
		r.log.Warn("didSave", zap.Int("id", id), zap.Error(err))
		return
	}

	if ws.session.Config.FormatOnPut && ws.session.HasFormatting() {
		r.requestFormat(ws)
	}
	if ws.session.HasCodeAction() {
		for _, kind := range ws.session.Config.ActionsOnPut {
			r.requestCodeAction(ws, kind)
		}
	}
}

func (r *Router) requestFormat(ws *windowState) {
	doc, ok := ws.session.Doc(ws.uri)
	if !ok {
		return
	}
	action := lspsession.PendingAction{
		Kind:          lspsession.ActionFormatThenApply,
		WindowID:      ws.id,
		FormatURI:     string(ws.uri),
		FormatVersion: int(doc.Version),
	}
	params := protocol.DocumentFormattingParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: ws.uri},
		Options:      protocol.FormattingOptions{TabSize: 8, InsertSpaces: false},
	}
	if _, err := ws.session.SendRequest("textDocument/formatting", params, action); err != nil {
		r.log.Warn("formatting request", zap.Int("id", ws.id), zap.Error(err))
	}
}

func (r *Router) requestCodeAction(ws *windowState, kind string) {
	action := lspsession.PendingAction{Kind: lspsession.ActionCodeActionApply, WindowID: ws.id}
	params := protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: ws.uri},
		Context: protocol.CodeActionContext{
			Only: []protocol.CodeActionKind{protocol.CodeActionKind(kind)},
		},
	}
	if _, err := ws.session.SendRequest("textDocument/codeAction", params, action); err != nil {
		r.log.Warn("codeAction request", zap.Int("id", ws.id), zap.String("kind", kind), zap.Error(err))
	}
}

// onWindowFocus updates the focused-window marker (spec.md §4.D "On log
// focus").
func (r *Router) onWindowFocus(id int) {
	if _, ok := r.windows[id]; ok {
		r.focused = id
		r.refreshMenu()
	}
}

// eventSource is anything whose event file can be forwarded into
// windowEvents: a tracked source window or the coordination window.
type eventSource interface {
	Events() <-chan *acmewin.Event
}

// watchWindow forwards id's event stream into windowEvents until the
// window closes.
func (r *Router) watchWindow(id int, win eventSource) {
	for ev := range win.Events() {
		r.windowEvents <- windowEvent{windowID: id, event: ev}
	}
}

// getOrStartSession returns the running session for sc, spawning one on
// first use.
func (r *Router) getOrStartSession(sc config.ServerConfig) (*lspsession.Session, error) {
	if s, ok := r.sessions[sc.Name]; ok && s.State() != lspsession.StateExited {
		return s, nil
	}
	s, err := lspsession.Start(context.Background(), sc, r.log)
	if err != nil {
		return nil, err
	}
	r.sessions[sc.Name] = s
	go r.watchSession(sc.Name, s)
	return s, nil
}

// watchSession forwards s's incoming messages into serverMsgs, posting an
// exited marker once the transport ends.
func (r *Router) watchSession(name string, s *lspsession.Session) {
	for msg := range s.Incoming() {
		r.serverMsgs <- serverMsg{serverName: name, msg: msg}
	}
	r.serverMsgs <- serverMsg{serverName: name, exited: true}
}

// shutdown sends every session through its graceful teardown sequence
// (spec.md §9 "on any fatal exit path the router must unwind by sending
// exit to every session").
func (r *Router) shutdown(ctx context.Context) {
	for _, s := range r.sessions {
		s.Shutdown(ctx)
	}
}

// tagPath extracts the file path from an acme window tag, whose first
// whitespace-delimited field is the path followed by acme's builtin
// command words (Del Snarf | Look ...).
func tagPath(tag string) string {
	fields := strings.Fields(tag)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// languageID derives an LSP language identifier from a file's extension.
// Unknown extensions fall back to the bare extension text, which servers
// generally ignore in favor of matching by URI.
func languageID(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch ext {
	case "go":
		return "go"
	case "py":
		return "python"
	case "rs":
		return "rust"
	case "c", "h":
		return "c"
	case "cc", "cpp", "hpp":
		return "cpp"
	case "ts":
		return "typescript"
	case "tsx":
		return "typescriptreact"
	case "js":
		return "javascript"
	case "jsx":
		return "javascriptreact"
	default:
		return ext
	}
}
