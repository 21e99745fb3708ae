package router

import (
	"testing"

	"go.lsp.dev/protocol"

	"github.com/acmelsp/bridge/internal/lspsession"
)

func TestTagPath(t *testing.T) {
	cases := []struct {
		tag  string
		want string
	}{
		{"/home/user/proj/main.go Del Snarf | Look ", "/home/user/proj/main.go"},
		{"/home/user/proj/main.go", "/home/user/proj/main.go"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := tagPath(c.tag); got != c.want {
			t.Errorf("tagPath(%q) = %q, want %q", c.tag, got, c.want)
		}
	}
}

func TestLanguageID(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/a/b/main.go", "go"},
		{"/a/b/script.py", "python"},
		{"/a/b/lib.rs", "rust"},
		{"/a/b/README.md", "md"},
	}
	for _, c := range cases {
		if got := languageID(c.path); got != c.want {
			t.Errorf("languageID(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestCapabilityCommandsOmitsUnsupported(t *testing.T) {
	s := &lspsession.Session{
		Capabilities: protocol.ServerCapabilities{
			DefinitionProvider: true,
			HoverProvider:      true,
		},
	}
	cmds := capabilityCommands(s)

	want := map[string]bool{cmdDefinition: true, cmdHover: true}
	if len(cmds) != len(want) {
		t.Fatalf("capabilityCommands = %v, want exactly %v", cmds, want)
	}
	for _, c := range cmds {
		if !want[c] {
			t.Errorf("unexpected command %q", c)
		}
	}
	for _, c := range cmds {
		if c == cmdRename {
			t.Errorf("rename should be omitted when renameProvider is absent")
		}
	}
}
