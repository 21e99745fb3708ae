package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/acmelsp/bridge/internal/acmewin"
	"github.com/acmelsp/bridge/internal/lspsession"
	"github.com/acmelsp/bridge/internal/transport"
)

// handleWindowEvent dispatches one acme window event: coordination-window
// commands are looked up by name; any other event is acknowledged so acme
// performs its default action, and a body-editing event triggers a
// didChange resync (spec.md §4.D "On window event").
func (r *Router) handleWindowEvent(we windowEvent) {
	ev := we.event

	if r.render != nil && we.windowID == r.render.ID() {
		r.handleCoordEvent(ev)
		return
	}

	ws, ok := r.windows[we.windowID]
	if !ok {
		return
	}

	if err := ws.win.WriteEvent(ev); err != nil {
		r.log.Warn("write event", zap.Int("id", we.windowID), zap.Error(err))
	}
	if acmewin.IsBodyEdit(ev) {
		r.syncBody(ws)
	}
}

// syncBody re-reads ws's body and, if it differs from the session's
// mirror, emits a didChange (spec.md §4.D: "treat body mutation as a
// didChange: re-read the body, compare to the mirror, and if changed,
// call change").
func (r *Router) syncBody(ws *windowState) {
	if ws.session == nil {
		return
	}
	body, err := ws.win.Body()
	if err != nil {
		r.log.Warn("read body", zap.Int("id", ws.id), zap.Error(err))
		return
	}
	text := string(body)
	if doc, ok := ws.session.Doc(ws.uri); ok && doc.Text == text {
		return
	}
	if err := ws.session.Change(ws.uri, text); err != nil {
		r.log.Warn("didChange", zap.Int("id", ws.id), zap.Error(err))
		return
	}
	ws.idx = newLineIndex(text)
}

// handleCoordEvent looks up an executed word in the coordination window
// against the fixed and capability-gated command set (spec.md §4.D "A
// mouse-2 execute on text in the coordination window whose text equals
// one of the exposed command names"). An event that doesn't match one of
// our own words is written back unconsumed so acme still performs its
// default action (a builtin tag word, a mouse-3 look, plain motion).
func (r *Router) handleCoordEvent(ev *acmewin.Event) {
	if r.dispatchCoordCommand(ev) {
		return
	}
	if err := r.render.WriteEvent(ev); err != nil {
		r.log.Warn("write coord event", zap.Error(err))
	}
}

// dispatchCoordCommand runs ev if it is an execute of one of the
// coordination window's exposed command words, reporting whether it
// consumed the event.
func (r *Router) dispatchCoordCommand(ev *acmewin.Event) bool {
	if !acmewin.IsExecute(ev) {
		return false
	}
	fields := strings.Fields(string(ev.Text))
	if len(fields) == 0 {
		return false
	}
	cmd := fields[0]
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(ev.Text)), cmd))

	switch cmd {
	case cmdGet:
		if err := r.render.Clear(); err != nil {
			r.log.Warn("clear output", zap.Error(err))
		}
	case cmdPut:
		r.onWindowPut(r.focused)
	case cmdDiag:
		r.renderDiagnostics()
	case cmdDefinition, cmdReferences, cmdHover, cmdCompletion, cmdSignatureHelp, cmdRename:
		r.dispatchPositional(cmd, arg)
	default:
		return false
	}
	return true
}

// dispatchPositional issues a position-addressed LSP request against the
// focused window's current selection (spec.md §4.D: "bound to the
// currently focused source window and the selected position").
func (r *Router) dispatchPositional(cmd, arg string) {
	ws, ok := r.windows[r.focused]
	if !ok || ws.session == nil {
		return
	}
	q0, _, err := ws.win.ReadAddr()
	if err != nil {
		r.log.Warn("read addr", zap.Int("id", ws.id), zap.Error(err))
		return
	}
	body, err := ws.win.Body()
	if err != nil {
		r.log.Warn("read body", zap.Int("id", ws.id), zap.Error(err))
		return
	}
	idx := newLineIndex(string(body))
	pos := idx.ToPosition(q0)
	tdpp := protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: ws.uri},
		Position:     pos,
	}

	var sendErr error
	switch cmd {
	case cmdDefinition:
		action := lspsession.PendingAction{Kind: lspsession.ActionDefinition, WindowID: ws.id}
		_, sendErr = ws.session.SendRequest("textDocument/definition", protocol.DefinitionParams{TextDocumentPositionParams: tdpp}, action)
	case cmdReferences:
		action := lspsession.PendingAction{Kind: lspsession.ActionReferences, WindowID: ws.id}
		params := protocol.ReferenceParams{
			TextDocumentPositionParams: tdpp,
			Context:                    protocol.ReferenceContext{IncludeDeclaration: true},
		}
		_, sendErr = ws.session.SendRequest("textDocument/references", params, action)
	case cmdHover:
		action := lspsession.PendingAction{Kind: lspsession.ActionHover, WindowID: ws.id}
		_, sendErr = ws.session.SendRequest("textDocument/hover", protocol.HoverParams{TextDocumentPositionParams: tdpp}, action)
	case cmdCompletion:
		action := lspsession.PendingAction{Kind: lspsession.ActionCompletion, WindowID: ws.id}
		_, sendErr = ws.session.SendRequest("textDocument/completion", protocol.CompletionParams{TextDocumentPositionParams: tdpp}, action)
	case cmdSignatureHelp:
		action := lspsession.PendingAction{Kind: lspsession.ActionSignatureHelp, WindowID: ws.id}
		_, sendErr = ws.session.SendRequest("textDocument/signatureHelp", protocol.SignatureHelpParams{TextDocumentPositionParams: tdpp}, action)
	case cmdRename:
		if arg == "" {
			_ = r.render.AppendOutput("rename", []string{"rename: select the command then the new name, e.g. \"rename newName\""})
			return
		}
		action := lspsession.PendingAction{Kind: lspsession.ActionRename, WindowID: ws.id}
		params := protocol.RenameParams{TextDocumentPositionParams: tdpp, NewName: arg}
		_, sendErr = ws.session.SendRequest("textDocument/rename", params, action)
	}
	if sendErr != nil {
		r.log.Warn("dispatch "+cmd, zap.Int("id", ws.id), zap.Error(sendErr))
	}
}

// renderDiagnostics appends the focused window's cached diagnostics to
// the coordination output (SPEC_FULL.md §4.B.1's "diag" action).
func (r *Router) renderDiagnostics() {
	ws, ok := r.windows[r.focused]
	if !ok || ws.session == nil {
		return
	}
	diags, ok := ws.session.Diagnostics(ws.uri)
	if !ok || len(diags) == 0 {
		_ = r.render.AppendOutput("diag", []string{fmt.Sprintf("%s: no diagnostics", ws.path)})
		return
	}
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", ws.path, d.Range.Start.Line+1, d.Range.Start.Character+1, d.Message))
	}
	_ = r.render.AppendOutput("diag", lines)
}

// handleServerMessage routes one message off a session's Incoming channel
// to the response, notification, or server-request handler.
func (r *Router) handleServerMessage(sm serverMsg) {
	if sm.exited {
		r.log.Warn("session exited", zap.String("server", sm.serverName))
		if s, ok := r.sessions[sm.serverName]; ok {
			s.MarkExited()
		}
		return
	}
	env := sm.msg.Envelope
	switch {
	case env.IsResponse():
		r.handleResponse(sm.serverName, env)
	case env.IsNotification():
		r.handleNotification(sm.serverName, env)
	case env.IsRequest():
		r.handleServerRequest(sm.serverName, env)
	}
}

func (r *Router) handleServerRequest(serverName string, env transport.Envelope) {
	sess, ok := r.sessions[serverName]
	if !ok {
		return
	}
	if env.Method == "workspace/applyEdit" {
		var params protocol.ApplyWorkspaceEditParams
		_ = json.Unmarshal(env.Params, &params)
		open := len(params.Edit.Changes)+len(params.Edit.DocumentChanges) > 0
		for uri := range params.Edit.Changes {
			open = open && r.windowForURI(uri) != nil
		}
		for _, dc := range params.Edit.DocumentChanges {
			open = open && r.windowForURI(dc.TextDocument.URI) != nil
		}
		if open {
			r.applyWorkspaceEdit(params.Edit)
			_ = sess.Respond(*env.ID, protocol.ApplyWorkspaceEditResult{Applied: true}, nil)
			return
		}
	}
	sess.AnswerMinimal(env)
}

func (r *Router) handleNotification(serverName string, env transport.Envelope) {
	if env.Method != "textDocument/publishDiagnostics" {
		return
	}
	sess, ok := r.sessions[serverName]
	if !ok {
		return
	}
	var params protocol.PublishDiagnosticsParams
	if err := json.Unmarshal(env.Params, &params); err != nil {
		r.log.Warn("decode publishDiagnostics", zap.Error(err))
		return
	}
	sess.SetDiagnostics(params.URI, params.Diagnostics)
}

// handleResponse pops the PendingAction for env's id and renders the
// result per its Kind (spec.md §4.D "On server response").
func (r *Router) handleResponse(serverName string, env transport.Envelope) {
	sess, ok := r.sessions[serverName]
	if !ok {
		return
	}
	id, ok := env.ID.Int()
	if !ok {
		return
	}
	action, ok := sess.PopPending(id)
	if !ok {
		return
	}
	if action.Cancelled {
		return
	}

	ws := r.windows[action.WindowID]

	if env.Error != nil {
		if r.render != nil {
			_ = r.render.AppendOutput(action.Method, []string{fmt.Sprintf("%s: %s", action.Method, env.Error.Message)})
		}
		return
	}

	switch action.Kind {
	case lspsession.ActionDefinition, lspsession.ActionReferences:
		r.renderLocations(action, env.Result)
	case lspsession.ActionHover:
		r.renderHover(env.Result)
	case lspsession.ActionSignatureHelp:
		r.renderSignatureHelp(env.Result)
	case lspsession.ActionCompletion:
		r.renderCompletion(env.Result)
	case lspsession.ActionFormatThenApply:
		r.applyFormatResult(ws, sess, action, env.Result)
	case lspsession.ActionCodeActionApply:
		r.applyCodeActionResult(ws, env.Result)
	case lspsession.ActionRename:
		r.applyRenameResult(env.Result)
	}
}

// renderLocations decodes a textDocument/definition or .../references
// result, which is legally a single Location as well as a Location[]
// (a lone match needn't be wrapped in an array).
func (r *Router) renderLocations(action lspsession.PendingAction, raw json.RawMessage) {
	var locs []protocol.Location
	if err := json.Unmarshal(raw, &locs); err != nil {
		var loc protocol.Location
		if err := json.Unmarshal(raw, &loc); err != nil {
			r.log.Warn("decode locations", zap.Error(err))
			return
		}
		locs = []protocol.Location{loc}
	}
	lines := make([]string, 0, len(locs))
	for _, l := range locs {
		lines = append(lines, fmt.Sprintf("%s:%d:%d:", l.URI, l.Range.Start.Line+1, l.Range.Start.Character+1))
	}
	_ = r.render.AppendOutput(action.Method, lines)
}

func (r *Router) renderHover(raw json.RawMessage) {
	var hover protocol.Hover
	if err := json.Unmarshal(raw, &hover); err != nil {
		r.log.Warn("decode hover", zap.Error(err))
		return
	}
	_ = r.render.AppendOutput("hover", strings.Split(hover.Contents.Value, "\n"))
}

func (r *Router) renderSignatureHelp(raw json.RawMessage) {
	var help protocol.SignatureHelp
	if err := json.Unmarshal(raw, &help); err != nil {
		r.log.Warn("decode signatureHelp", zap.Error(err))
		return
	}
	lines := make([]string, 0, len(help.Signatures))
	for _, sig := range help.Signatures {
		lines = append(lines, sig.Label)
	}
	_ = r.render.AppendOutput("signatureHelp", lines)
}

func (r *Router) renderCompletion(raw json.RawMessage) {
	var list protocol.CompletionList
	if err := json.Unmarshal(raw, &list); err != nil {
		var items []protocol.CompletionItem
		if err2 := json.Unmarshal(raw, &items); err2 != nil {
			r.log.Warn("decode completion", zap.Error(err))
			return
		}
		list.Items = items
	}
	lines := make([]string, 0, len(list.Items))
	for _, it := range list.Items {
		lines = append(lines, it.Label)
	}
	_ = r.render.AppendOutput("completion", lines)
}

// applyFormatResult applies formatting edits if the document hasn't moved
// past the version the request was issued at, discarding a stale reply
// otherwise (spec.md §4.D "FormatThenApply", scenario 5).
func (r *Router) applyFormatResult(ws *windowState, sess *lspsession.Session, action lspsession.PendingAction, raw json.RawMessage) {
	if ws == nil {
		return
	}
	doc, ok := sess.Doc(protocol.DocumentURI(action.FormatURI))
	if !ok || int(doc.Version) != action.FormatVersion {
		return
	}
	var edits []protocol.TextEdit
	if err := json.Unmarshal(raw, &edits); err != nil || len(edits) == 0 {
		return
	}
	if err := ApplyEdits(ws.win, ws.idx, edits); err != nil {
		r.log.Warn("apply format edits", zap.Int("id", ws.id), zap.Error(err))
		return
	}
	body, err := ws.win.Body()
	if err != nil {
		return
	}
	text := string(body)
	ws.idx = newLineIndex(text)
	if err := sess.Save(protocol.DocumentURI(action.FormatURI), text); err != nil {
		r.log.Warn("didSave after format", zap.Int("id", ws.id), zap.Error(err))
	}
}

// applyCodeActionResult applies the edit of a returned CodeAction, or
// executes its Command, across every currently open window the result
// touches (spec.md §4.D "CodeActionApply").
func (r *Router) applyCodeActionResult(ws *windowState, raw json.RawMessage) {
	var actions []protocol.CodeAction
	if err := json.Unmarshal(raw, &actions); err == nil && len(actions) > 0 {
		for _, a := range actions {
			if a.Edit != nil {
				r.applyWorkspaceEdit(*a.Edit)
			}
			if a.Command != nil {
				r.executeCommand(ws, *a.Command)
			}
		}
		return
	}
	var cmds []protocol.Command
	if err := json.Unmarshal(raw, &cmds); err == nil {
		for _, c := range cmds {
			r.executeCommand(ws, c)
		}
	}
}

func (r *Router) applyRenameResult(raw json.RawMessage) {
	var edit protocol.WorkspaceEdit
	if err := json.Unmarshal(raw, &edit); err != nil {
		r.log.Warn("decode rename edit", zap.Error(err))
		return
	}
	r.applyWorkspaceEdit(edit)
}

// applyWorkspaceEdit applies edit's per-file changes to every affected
// window that is currently open; files not open are ignored, per
// spec.md §4.D's explicit "user must open them first."
func (r *Router) applyWorkspaceEdit(edit protocol.WorkspaceEdit) {
	changes := make(map[protocol.DocumentURI][]protocol.TextEdit, len(edit.Changes)+len(edit.DocumentChanges))
	for uri, edits := range edit.Changes {
		changes[uri] = edits
	}
	for _, dc := range edit.DocumentChanges {
		changes[dc.TextDocument.URI] = append(changes[dc.TextDocument.URI], dc.Edits...)
	}
	for uri, edits := range changes {
		ws := r.windowForURI(uri)
		if ws == nil {
			continue
		}
		if err := ApplyEdits(ws.win, ws.idx, edits); err != nil {
			r.log.Warn("apply workspace edit", zap.String("uri", string(uri)), zap.Error(err))
			continue
		}
		body, err := ws.win.Body()
		if err != nil {
			continue
		}
		text := string(body)
		ws.idx = newLineIndex(text)
		if ws.session != nil {
			_ = ws.session.Change(ws.uri, text)
		}
	}
}

func (r *Router) windowForURI(uri protocol.DocumentURI) *windowState {
	for _, ws := range r.windows {
		if ws.uri == uri {
			return ws
		}
	}
	return nil
}

// executeCommand fires workspace/executeCommand and discards the reply
// (SPEC_FULL.md §4.D.1).
func (r *Router) executeCommand(ws *windowState, cmd protocol.Command) {
	if ws == nil || ws.session == nil {
		return
	}
	action := lspsession.PendingAction{Kind: lspsession.ActionCodeActionApply, WindowID: ws.id}
	params := protocol.ExecuteCommandParams{Command: cmd.Command, Arguments: cmd.Arguments}
	if _, err := ws.session.SendRequest("workspace/executeCommand", params, action); err != nil {
		r.log.Warn("executeCommand", zap.String("command", cmd.Command), zap.Error(err))
	}
}
