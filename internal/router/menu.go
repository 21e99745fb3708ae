package router

import (
	"go.uber.org/zap"

	"github.com/acmelsp/bridge/internal/ui"
)

// refreshMenu rebuilds the coordination window's tag from the current
// window set, focused window, and each bound session's capabilities
// (spec.md §3: "The coordination window's body contents are a pure
// function of {WindowState set, focused window, Session capabilities}").
func (r *Router) refreshMenu() {
	if r.render == nil {
		return
	}
	infos := make([]ui.WindowInfo, 0, len(r.windows))
	for _, ws := range r.windows {
		var cmds []string
		if ws.session != nil {
			cmds = capabilityCommands(ws.session)
		}
		infos = append(infos, ui.WindowInfo{ID: ws.id, Path: ws.path, Commands: cmds})
	}
	if err := r.render.RenderMenu(infos, r.focused); err != nil {
		r.log.Warn("render menu", zap.Error(err))
	}
}
