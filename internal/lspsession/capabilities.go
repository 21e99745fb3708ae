package lspsession

// Capability presence checks per spec.md §3: "capabilities ... examined
// for presence of documentFormattingProvider, codeActionProvider,
// definitionProvider, hoverProvider, completionProvider,
// referencesProvider, signatureHelpProvider, renameProvider."

func (s *Session) HasDefinition() bool    { return s.Capabilities.DefinitionProvider != nil }
func (s *Session) HasReferences() bool    { return s.Capabilities.ReferencesProvider != nil }
func (s *Session) HasHover() bool         { return s.Capabilities.HoverProvider != nil }
func (s *Session) HasCompletion() bool    { return s.Capabilities.CompletionProvider != nil }
func (s *Session) HasSignatureHelp() bool { return s.Capabilities.SignatureHelpProvider != nil }
func (s *Session) HasRename() bool        { return s.Capabilities.RenameProvider != nil }
func (s *Session) HasFormatting() bool    { return s.Capabilities.DocumentFormattingProvider != nil }
func (s *Session) HasCodeAction() bool    { return s.Capabilities.CodeActionProvider != nil }
