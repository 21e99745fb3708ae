package lspsession

import "go.lsp.dev/protocol"

// diagnostics caches the most recent textDocument/publishDiagnostics
// payload per URI (SPEC_FULL.md §4.B.1), grounded on
// t3ta-mcp-language-server/internal/lsp/server-request-handlers.go's
// HandleDiagnostics, which keeps exactly this kind of per-document cache
// fed by the same notification.

// SetDiagnostics records diags as the latest known set for uri, replacing
// whatever was cached before. The router calls this when it sees a
// publishDiagnostics notification come off a session's Incoming channel.
func (s *Session) SetDiagnostics(uri protocol.DocumentURI, diags []protocol.Diagnostic) {
	if s.diagnostics == nil {
		s.diagnostics = make(map[protocol.DocumentURI][]protocol.Diagnostic)
	}
	s.diagnostics[uri] = diags
}

// Diagnostics returns the cached diagnostics for uri, if any have been
// published.
func (s *Session) Diagnostics(uri protocol.DocumentURI) ([]protocol.Diagnostic, bool) {
	diags, ok := s.diagnostics[uri]
	return diags, ok
}
