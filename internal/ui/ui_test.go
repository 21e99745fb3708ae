package ui

import "testing"

func TestBuildMenuTextOrdersByPathAndMarksFocused(t *testing.T) {
	windows := []WindowInfo{
		{ID: 2, Path: "/b/z.go", Commands: []string{"definition", "hover"}},
		{ID: 1, Path: "/a/a.go"},
	}
	got := buildMenuText(windows, 2)

	if got == "" {
		t.Fatal("buildMenuText returned empty string")
	}
	wantPrefix := "Get Put diag"
	if got[:len(wantPrefix)] != wantPrefix {
		t.Errorf("buildMenuText missing header, got %q", got)
	}

	aIdx := indexOf(got, "/a/a.go")
	bIdx := indexOf(got, "/b/z.go")
	if aIdx == -1 || bIdx == -1 {
		t.Fatalf("buildMenuText missing a path, got %q", got)
	}
	if aIdx > bIdx {
		t.Errorf("paths not sorted: got %q", got)
	}
	if indexOf(got, "*/b/z.go") == -1 {
		t.Errorf("focused window not marked with *, got %q", got)
	}
	if indexOf(got, "[definition hover]") == -1 {
		t.Errorf("commands not rendered, got %q", got)
	}
}

func TestBuildMenuTextNoWindows(t *testing.T) {
	got := buildMenuText(nil, 0)
	if got != "Get Put diag" {
		t.Errorf("buildMenuText(nil) = %q, want bare header", got)
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
