package lspsession

// ActionKind tags a PendingAction with how its response should be
// interpreted (spec.md §3 PendingAction, §4.D router dispatch).
type ActionKind int

const (
	ActionInitialize ActionKind = iota
	ActionShutdown
	ActionDefinition
	ActionReferences
	ActionHover
	ActionCompletion
	ActionSignatureHelp
	ActionRename
	ActionFormatThenApply
	ActionCodeActionList
	ActionCodeActionApply
)

func (k ActionKind) String() string {
	switch k {
	case ActionInitialize:
		return "Initialize"
	case ActionShutdown:
		return "Shutdown"
	case ActionDefinition:
		return "Definition"
	case ActionReferences:
		return "References"
	case ActionHover:
		return "Hover"
	case ActionCompletion:
		return "Completion"
	case ActionSignatureHelp:
		return "SignatureHelp"
	case ActionRename:
		return "Rename"
	case ActionFormatThenApply:
		return "FormatThenApply"
	case ActionCodeActionList:
		return "CodeActionList"
	case ActionCodeActionApply:
		return "CodeActionApply"
	default:
		return "Unknown"
	}
}

// PendingAction records how to interpret the response to an outstanding
// request (spec.md §3). WindowID identifies the acme window the request
// was made on behalf of; FormatURI/FormatVersion are populated only for
// ActionFormatThenApply, letting the router discard a stale reply
// (spec.md §4.D "Stale format discard").
type PendingAction struct {
	Kind          ActionKind
	Method        string
	WindowID      int
	FormatURI     string
	FormatVersion int
	Cancelled     bool
}
