package lspsession

import "go.lsp.dev/protocol"

// Open creates a v0 DocState for uri and sends textDocument/didOpen
// (spec.md §4.B "Document lifecycle").
func (s *Session) Open(uri protocol.DocumentURI, text, languageID string) error {
	ds := &DocState{URI: uri, LanguageID: languageID, Version: 0, Text: text}
	s.docs[uri] = ds

	return s.Notify("textDocument/didOpen", protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        uri,
			LanguageID: protocol.LanguageIdentifier(languageID),
			Version:    ds.Version,
			Text:       text,
		},
	})
}

// Change increments uri's version, updates the mirror, and sends a
// single full-document textDocument/didChange (spec.md §4.B, Non-goals:
// "no incremental edit tracking").
func (s *Session) Change(uri protocol.DocumentURI, newText string) error {
	ds, ok := s.docs[uri]
	if !ok {
		return nil // not open; nothing to mirror
	}
	ds.Version++
	ds.Text = newText

	return s.Notify("textDocument/didChange", protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                ds.Version,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			{Text: newText},
		},
	})
}

// Save ensures the mirror is current (calling Change first if dirty),
// then sends textDocument/didSave carrying text (spec.md §4.B).
func (s *Session) Save(uri protocol.DocumentURI, text string) error {
	ds, ok := s.docs[uri]
	if !ok {
		return nil
	}
	if ds.Text != text {
		if err := s.Change(uri, text); err != nil {
			return err
		}
	}
	return s.Notify("textDocument/didSave", protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Text:         text,
	})
}

// Close sends textDocument/didClose and removes the DocState.
func (s *Session) Close(uri protocol.DocumentURI) error {
	if _, ok := s.docs[uri]; !ok {
		return nil
	}
	delete(s.docs, uri)
	return s.Notify("textDocument/didClose", protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
}

// Doc returns the DocState for uri, if the document is open.
func (s *Session) Doc(uri protocol.DocumentURI) (*DocState, bool) {
	ds, ok := s.docs[uri]
	return ds, ok
}
