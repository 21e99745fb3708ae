package lspsession

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/acmelsp/bridge/internal/config"
	"github.com/acmelsp/bridge/internal/transport"
)

// newMockSession starts a Session whose "process" is actually the goroutine
// run by serve, wired over in-memory pipes.
func newMockSession(t *testing.T, cfg config.ServerConfig, serve func(conn *transport.Conn)) *Session {
	t.Helper()

	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	serverConn := transport.NewConn(serverRead, serverWrite)
	go serve(serverConn)

	s, err := newSession(context.Background(), cfg, zap.NewNop(), clientRead, clientWrite, nil)
	if err != nil {
		t.Fatalf("newSession: %v", err)
	}
	t.Cleanup(func() { _ = clientWrite.Close() })
	return s
}

// respondInitialize reads exactly one request off conn (assumed to be
// "initialize") and replies with result, then returns.
func respondInitialize(t *testing.T, conn *transport.Conn, result any) {
	t.Helper()
	raw, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("mock server: read initialize: %v", err)
		return
	}
	var env transport.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Errorf("mock server: decode initialize: %v", err)
		return
	}
	if env.Method != "initialize" {
		t.Errorf("mock server: got method %q, want initialize", env.Method)
	}
	if err := conn.WriteMessage(transport.NewResult(*env.ID, result)); err != nil {
		t.Errorf("mock server: write initialize result: %v", err)
	}
	// Drain the "initialized" notification so it doesn't wedge the pipe.
	if _, err := conn.ReadMessage(); err != nil && err != io.EOF {
		t.Errorf("mock server: read initialized: %v", err)
	}
}

// TestInitializeHandshakeRendersCapabilities is scenario 2: a mock server
// replying to initialize with {capabilities:{definitionProvider:true}}
// leaves the session Ready with HasDefinition() true and HasRename() false.
func TestInitializeHandshakeRendersCapabilities(t *testing.T) {
	cfg := config.ServerConfig{Name: "mock"}

	done := make(chan struct{})
	s := newMockSession(t, cfg, func(conn *transport.Conn) {
		defer close(done)
		respondInitialize(t, conn, map[string]any{
			"capabilities": map[string]any{
				"definitionProvider": true,
			},
		})
	})
	<-done

	if s.State() != StateReady {
		t.Fatalf("state = %v, want Ready", s.State())
	}
	if !s.HasDefinition() {
		t.Error("HasDefinition() = false, want true")
	}
	if s.HasRename() {
		t.Error("HasRename() = true, want false")
	}
}

// TestDidOpenThenDidChangeOrdering is scenario 3: open with "a\n" then
// change to "ab\n" must produce didOpen(version=0) followed by
// didChange(version=1), with no other messages for that URI in between.
func TestDidOpenThenDidChangeOrdering(t *testing.T) {
	cfg := config.ServerConfig{Name: "mock"}

	ready := make(chan struct{})
	msgs := make(chan transport.Envelope, 8)
	s := newMockSession(t, cfg, func(conn *transport.Conn) {
		respondInitialize(t, conn, map[string]any{"capabilities": map[string]any{}})
		close(ready)
		for {
			raw, err := conn.ReadMessage()
			if err != nil {
				close(msgs)
				return
			}
			var env transport.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			msgs <- env
		}
	})
	<-ready

	uri := protocol.DocumentURI("file:///tmp/x.go")
	if err := s.Open(uri, "a\n", "go"); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Change(uri, "ab\n"); err != nil {
		t.Fatalf("Change: %v", err)
	}

	first := recvEnvelope(t, msgs)
	if first.Method != "textDocument/didOpen" {
		t.Fatalf("first message method = %q, want textDocument/didOpen", first.Method)
	}
	var openParams struct {
		TextDocument struct {
			Version int32  `json:"version"`
			Text    string `json:"text"`
		} `json:"textDocument"`
	}
	mustDecode(t, first.Params, &openParams)
	if openParams.TextDocument.Version != 0 || openParams.TextDocument.Text != "a\n" {
		t.Errorf("didOpen params = %+v, want version=0 text=%q", openParams.TextDocument, "a\n")
	}

	second := recvEnvelope(t, msgs)
	if second.Method != "textDocument/didChange" {
		t.Fatalf("second message method = %q, want textDocument/didChange", second.Method)
	}
	var changeParams struct {
		TextDocument struct {
			Version int32 `json:"version"`
		} `json:"textDocument"`
		ContentChanges []struct {
			Text string `json:"text"`
		} `json:"contentChanges"`
	}
	mustDecode(t, second.Params, &changeParams)
	if changeParams.TextDocument.Version != 1 {
		t.Errorf("didChange version = %d, want 1", changeParams.TextDocument.Version)
	}
	if len(changeParams.ContentChanges) != 1 || changeParams.ContentChanges[0].Text != "ab\n" {
		t.Errorf("didChange contentChanges = %+v, want single full-document change %q", changeParams.ContentChanges, "ab\n")
	}
}

// TestShutdownWaitsForReplyBeforeExit is spec.md §4.B's shutdown sequence:
// "send shutdown request, on reply send exit notification" — the exit
// notification must not be written until the shutdown reply arrives.
func TestShutdownWaitsForReplyBeforeExit(t *testing.T) {
	cfg := config.ServerConfig{Name: "mock"}

	ready := make(chan struct{})
	shutdownSeen := make(chan struct{})
	exitSeen := make(chan struct{})
	replyNow := make(chan struct{})

	s := newMockSession(t, cfg, func(conn *transport.Conn) {
		respondInitialize(t, conn, map[string]any{"capabilities": map[string]any{}})
		close(ready)

		raw, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("mock server: read shutdown: %v", err)
			return
		}
		var env transport.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Errorf("mock server: decode shutdown: %v", err)
			return
		}
		if env.Method != "shutdown" {
			t.Errorf("mock server: got method %q, want shutdown", env.Method)
		}
		close(shutdownSeen)

		<-replyNow
		if err := conn.WriteMessage(transport.NewResult(*env.ID, nil)); err != nil {
			t.Errorf("mock server: write shutdown result: %v", err)
		}

		raw, err = conn.ReadMessage()
		if err != nil {
			t.Errorf("mock server: read exit: %v", err)
			return
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Errorf("mock server: decode exit: %v", err)
			return
		}
		if env.Method != "exit" {
			t.Errorf("mock server: got method %q, want exit", env.Method)
		}
		close(exitSeen)
	})
	<-ready

	done := make(chan struct{})
	go func() {
		s.Shutdown(context.Background())
		close(done)
	}()
	<-shutdownSeen

	select {
	case <-exitSeen:
		t.Fatal("exit notification sent before shutdown reply")
	case <-time.After(50 * time.Millisecond):
	}

	close(replyNow)

	select {
	case <-exitSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit notification after shutdown reply")
	}
	<-done
}

func recvEnvelope(t *testing.T, ch <-chan transport.Envelope) transport.Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		if !ok {
			t.Fatal("message channel closed unexpectedly")
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return transport.Envelope{}
	}
}

func mustDecode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}
