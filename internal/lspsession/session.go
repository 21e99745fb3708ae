// Package lspsession owns one running LSP server: its process, its
// framed transport, request correlation, capabilities, and open-document
// mirror (spec.md §3, §4.B — component B, "Server session").
package lspsession

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/acmelsp/bridge/internal/config"
	"github.com/acmelsp/bridge/internal/transport"
)

// State is the session lifecycle (spec.md §4 "State machines").
type State int

const (
	StateSpawned State = iota
	StateInitializing
	StateReady
	StateShuttingDown
	StateExited
)

func (s State) String() string {
	switch s {
	case StateSpawned:
		return "Spawned"
	case StateInitializing:
		return "Initializing"
	case StateReady:
		return "Ready"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// ServerMessage is a message pushed from the read pump to the router:
// either a response to a request this process made, a server-to-client
// request, or a notification.
type ServerMessage struct {
	Envelope transport.Envelope
}

// Session is the per-running-server state described in spec.md §3.
type Session struct {
	Config config.ServerConfig
	Log    *zap.Logger

	cmd    *exec.Cmd
	conn   *transport.Conn
	stdin  io.WriteCloser

	state State

	nextID  int64
	pending map[int64]PendingAction

	Capabilities protocol.ServerCapabilities

	docs map[protocol.DocumentURI]*DocState

	diagnostics map[protocol.DocumentURI][]protocol.Diagnostic

	incoming chan ServerMessage

	// shutdownID is the id of the outstanding "shutdown" request, if any;
	// 0 means none (request ids start at 1, see allocID). readPump checks
	// this to intercept that one response and signal shutdownAck instead
	// of forwarding it, since by the time Shutdown runs nothing still
	// drains Incoming.
	shutdownID      atomic.Int64
	shutdownAck     chan struct{}
	shutdownAckOnce sync.Once
}

// Start spawns Config.Executable, performs the initialize/initialized
// handshake synchronously, and returns a Session in StateReady. Any
// non-success initialize result is fatal, per spec.md §4.B.
func Start(ctx context.Context, cfg config.ServerConfig, log *zap.Logger) (*Session, error) {
	cmd := exec.Command(cfg.Executable)
	cmd.Env = os.Environ()
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("lspsession %s: stdin pipe: %w", cfg.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("lspsession %s: stdout pipe: %w", cfg.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("lspsession %s: spawn %s: %w", cfg.Name, cfg.Executable, err)
	}

	s, err := newSession(ctx, cfg, log, stdout, stdin, cmd)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	return s, nil
}

// newSession wires a Session around an already-open transport and runs
// the initialize handshake. Factored out of Start so tests can drive the
// handshake over in-memory pipes instead of a spawned process; cmd may
// be nil in that case.
func newSession(ctx context.Context, cfg config.ServerConfig, log *zap.Logger, r io.Reader, w io.WriteCloser, cmd *exec.Cmd) (*Session, error) {
	s := &Session{
		Config:      cfg,
		Log:         log.With(zap.String("server", cfg.Name)),
		cmd:         cmd,
		conn:        transport.NewConn(r, w),
		stdin:       w,
		state:       StateSpawned,
		nextID:      1,
		pending:     make(map[int64]PendingAction),
		docs:        make(map[protocol.DocumentURI]*DocState),
		incoming:    make(chan ServerMessage, 64),
		shutdownAck: make(chan struct{}),
	}

	if err := s.initialize(ctx); err != nil {
		return nil, err
	}

	go s.readPump()

	return s, nil
}

// initialize performs the blocking initialize/initialized handshake
// (spec.md §4.B "Startup"). It runs before the read pump starts, so it
// reads the transport directly rather than via the Incoming channel.
func (s *Session) initialize(ctx context.Context) error {
	s.state = StateInitializing

	folders := make([]protocol.WorkspaceFolder, 0, len(s.Config.WorkspaceFolders))
	for _, uri := range s.Config.WorkspaceFolders {
		folders = append(folders, protocol.WorkspaceFolder{URI: uri, Name: uri})
	}

	params := protocol.InitializeParams{
		ProcessID:             int32(os.Getpid()),
		RootURI:               protocol.DocumentURI(s.Config.RootURI),
		Capabilities:          clientCapabilities(),
		InitializationOptions: s.Config.Options,
		WorkspaceFolders:      folders,
	}

	id := s.allocID()
	req := transport.NewRequest(transport.NewRequestID(id), "initialize", params)
	if err := s.conn.WriteMessage(req); err != nil {
		return fmt.Errorf("lspsession %s: write initialize: %w", s.Config.Name, err)
	}

	result, err := s.awaitInitializeResponse(id)
	if err != nil {
		return err
	}
	s.Capabilities = result.Capabilities

	if err := s.conn.WriteMessage(transport.NewNotification("initialized", protocol.InitializedParams{})); err != nil {
		return fmt.Errorf("lspsession %s: write initialized: %w", s.Config.Name, err)
	}

	s.state = StateReady
	s.Log.Info("initialized", zap.Any("capabilities_present", capabilitySummary(s.Capabilities)))
	return nil
}

// awaitInitializeResponse reads messages directly off the transport until
// the response to id arrives. Any server request received in this window
// (unusual but legal) is answered with a minimal valid response so the
// server does not block waiting on us.
func (s *Session) awaitInitializeResponse(id int64) (*protocol.InitializeResult, error) {
	for {
		raw, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("lspsession %s: initialize: %w", s.Config.Name, err)
		}
		var env transport.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("lspsession %s: initialize: malformed message: %w", s.Config.Name, err)
		}

		switch {
		case env.IsResponse():
			gotID, ok := env.ID.Int()
			if !ok || gotID != id {
				s.Log.Debug("initialize: dropping response with unmatched id")
				continue // not ours; drop (spec.md: unmatched ids are logged and dropped)
			}
			if env.Error != nil {
				return nil, fmt.Errorf("lspsession %s: initialize failed: %s", s.Config.Name, env.Error.Message)
			}
			var result protocol.InitializeResult
			if err := json.Unmarshal(env.Result, &result); err != nil {
				return nil, fmt.Errorf("lspsession %s: initialize: decode result: %w", s.Config.Name, err)
			}
			return &result, nil

		case env.IsRequest():
			s.AnswerMinimal(env)

		case env.IsNotification():
			// Diagnostics etc. may arrive before we're Ready; drop them.
		}
	}
}

// AnswerMinimal responds to a server-originated request with an empty
// array or null, acknowledging without honoring it (spec.md §4.B); a
// workspace/applyEdit is answered with Applied: false. The
// router calls this for any request a session surfaces on Incoming after
// the initialize handshake completes.
func (s *Session) AnswerMinimal(env transport.Envelope) {
	var result any
	switch env.Method {
	case "client/registerCapability", "client/unregisterCapability":
		result = nil
	case "workspace/configuration":
		result = []any{}
	case "window/showMessageRequest":
		result = nil
	case "workspace/applyEdit":
		result = protocol.ApplyWorkspaceEditResult{Applied: false, FailureReason: "no editor buffer open for this document"}
	default:
		result = nil
	}
	resp := transport.NewResult(*env.ID, result)
	if err := s.conn.WriteMessage(resp); err != nil {
		s.Log.Warn("answer server request", zap.String("method", env.Method), zap.Error(err))
	}
}

// readPump is the cooperative reader task (spec.md §5): it parses frames
// and forwards them to the router via Incoming, except the reply to an
// outstanding shutdown request, which it consumes to signal shutdownAck.
// It never touches the pending table.
func (s *Session) readPump() {
	defer close(s.incoming)
	defer s.signalShutdownAck()
	for {
		raw, err := s.conn.ReadMessage()
		if err != nil {
			if err != io.EOF {
				s.Log.Warn("transport read error, session exiting", zap.Error(err))
			}
			return
		}
		var env transport.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.Log.Warn("malformed message from server", zap.Error(err))
			continue
		}
		if env.IsResponse() {
			if id, ok := env.ID.Int(); ok && id == s.shutdownID.Load() {
				s.signalShutdownAck()
				continue
			}
		}
		s.incoming <- ServerMessage{Envelope: env}
	}
}

// Incoming returns the channel of messages from the server. It is closed
// when the transport ends (clean EOF or error) — the router must then
// treat the session as Exited.
func (s *Session) Incoming() <-chan ServerMessage { return s.incoming }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// MarkExited transitions the session to StateExited. Called by the
// router once Incoming() closes.
func (s *Session) MarkExited() { s.state = StateExited }

func (s *Session) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// SendRequest assigns the next request id, records action in the pending
// table, and writes the framed request. Requests are only valid in
// StateReady (spec.md §4 "Requests are allowed only in Ready").
func (s *Session) SendRequest(method string, params any, action PendingAction) (int64, error) {
	if s.state != StateReady {
		return 0, fmt.Errorf("lspsession %s: cannot send %s: session is %s, not Ready", s.Config.Name, method, s.state)
	}
	action.Method = method
	id := s.allocID()
	s.pending[id] = action
	req := transport.NewRequest(transport.NewRequestID(id), method, params)
	if err := s.conn.WriteMessage(req); err != nil {
		delete(s.pending, id)
		return 0, fmt.Errorf("lspsession %s: send %s: %w", s.Config.Name, method, err)
	}
	return id, nil
}

// Notify sends a one-way notification. Document-lifecycle notifications
// are only valid in StateReady.
func (s *Session) Notify(method string, params any) error {
	if s.state != StateReady {
		return fmt.Errorf("lspsession %s: cannot notify %s: session is %s, not Ready", s.Config.Name, method, s.state)
	}
	return s.conn.WriteMessage(transport.NewNotification(method, params))
}

// Respond answers a server-originated request with a result or error.
func (s *Session) Respond(id transport.RequestID, result any, respErr *transport.ResponseError) error {
	if respErr != nil {
		return s.conn.WriteMessage(transport.ResponseMessage{JSONRPC: "2.0", ID: id, Error: respErr})
	}
	return s.conn.WriteMessage(transport.NewResult(id, result))
}

// PopPending removes and returns the PendingAction for id, if any.
// Apart from SendRequest dropping the entry of a request whose write
// failed, this is the only way an entry leaves the map.
func (s *Session) PopPending(id int64) (PendingAction, bool) {
	a, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return a, ok
}

// PendingForWindow returns the ids of all pending requests targeting
// windowID, used to cancel them on window close (spec.md §5).
func (s *Session) PendingForWindow(windowID int) []int64 {
	var ids []int64
	for id, a := range s.pending {
		if a.WindowID == windowID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Cancel marks id's pending action cancelled and best-effort notifies the
// server with $/cancelRequest. The (possibly still in-flight) response is
// discarded when it eventually arrives (spec.md §4 "Per-request" state
// machine).
func (s *Session) Cancel(id int64) {
	a, ok := s.pending[id]
	if !ok {
		return
	}
	a.Cancelled = true
	s.pending[id] = a
	_ = s.Notify("$/cancelRequest", struct {
		ID int64 `json:"id"`
	}{ID: id})
}

// signalShutdownAck unblocks a pending Shutdown wait, whether the server
// actually replied or the transport just ended without one.
func (s *Session) signalShutdownAck() {
	s.shutdownAckOnce.Do(func() { close(s.shutdownAck) })
}

// Shutdown performs the graceful teardown sequence: shutdown request,
// wait for its reply, exit notification, close transport, reap the child
// (spec.md §4.B: "send shutdown request, on reply send exit
// notification"). Errors, or the server never replying, fall through to
// killing the process.
func (s *Session) Shutdown(ctx context.Context) {
	s.state = StateShuttingDown

	done := make(chan struct{})
	go func() {
		defer close(done)
		id := s.allocID()
		s.shutdownID.Store(id)
		req := transport.NewRequest(transport.NewRequestID(id), "shutdown", nil)
		if err := s.conn.WriteMessage(req); err != nil {
			return
		}
		<-s.shutdownAck
		_ = s.conn.WriteMessage(transport.NewNotification("exit", nil))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Log.Warn("shutdown handshake timed out")
	case <-ctx.Done():
	}

	_ = s.stdin.Close()
	s.state = StateExited

	if s.cmd == nil {
		return
	}
	waited := make(chan struct{})
	go func() {
		_ = s.cmd.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	}
}

func capabilitySummary(c protocol.ServerCapabilities) map[string]bool {
	return map[string]bool{
		"definition":    c.DefinitionProvider != nil,
		"references":    c.ReferencesProvider != nil,
		"hover":         c.HoverProvider != nil,
		"completion":    c.CompletionProvider != nil,
		"signatureHelp": c.SignatureHelpProvider != nil,
		"rename":        c.RenameProvider != nil,
		"formatting":    c.DocumentFormattingProvider != nil,
		"codeAction":    c.CodeActionProvider != nil,
	}
}

func clientCapabilities() protocol.ClientCapabilities {
	return protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{
			ApplyEdit: true,
			WorkspaceEdit: &protocol.WorkspaceEditClientCapabilities{
				DocumentChanges: true,
			},
		},
		TextDocument: &protocol.TextDocumentClientCapabilities{
			Synchronization: &protocol.TextDocumentSyncClientCapabilities{
				DidSave: true,
			},
			Rename: &protocol.RenameClientCapabilities{
				PrepareSupport: false,
			},
			PublishDiagnostics: &protocol.PublishDiagnosticsClientCapabilities{
				VersionSupport: false,
			},
		},
	}
}
