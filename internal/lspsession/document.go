package lspsession

import "go.lsp.dev/protocol"

// DocState is the mirrored per-document state a session owes to its LSP
// server: URI, language, version counter, and the last text sent
// (spec.md §3 DocState). The invariant is that the server's view of the
// document equals Text at Version; every edit must flow through Change
// before any request referencing the document is sent.
type DocState struct {
	URI        protocol.DocumentURI
	LanguageID string
	Version    int32
	Text       string
}
