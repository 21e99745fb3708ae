package router

import "github.com/acmelsp/bridge/internal/lspsession"

// Command names the router recognizes when executed from the
// coordination window (spec.md §4.D "Menu composition"). Per-window
// commands are gated on the matching session's advertised capabilities;
// Get and diag are always offered.
const (
	cmdGet           = "Get"
	cmdPut           = "Put"
	cmdDiag          = "diag"
	cmdDefinition    = "definition"
	cmdReferences    = "references"
	cmdHover         = "hover"
	cmdCompletion    = "completion"
	cmdSignatureHelp = "signatureHelp"
	cmdRename        = "rename"
)

// capabilityCommands returns the per-window command words s's capabilities
// enable, in menu order (spec.md §4.D: "omit rename if the server does
// not provide renameProvider").
func capabilityCommands(s *lspsession.Session) []string {
	var cmds []string
	if s.HasDefinition() {
		cmds = append(cmds, cmdDefinition)
	}
	if s.HasReferences() {
		cmds = append(cmds, cmdReferences)
	}
	if s.HasHover() {
		cmds = append(cmds, cmdHover)
	}
	if s.HasCompletion() {
		cmds = append(cmds, cmdCompletion)
	}
	if s.HasSignatureHelp() {
		cmds = append(cmds, cmdSignatureHelp)
	}
	if s.HasRename() {
		cmds = append(cmds, cmdRename)
	}
	return cmds
}
