package config

import "testing"

func TestCompileDefaults(t *testing.T) {
	f := &File{
		Server: []Server{
			{Name: "gopls", Files: `\.go$`},
		},
	}
	scs, err := Compile(f)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(scs) != 1 {
		t.Fatalf("got %d servers, want 1", len(scs))
	}
	sc := scs[0]
	if sc.Executable != "gopls" {
		t.Errorf("Executable = %q, want defaulted to Name", sc.Executable)
	}
	if !sc.FormatOnPut {
		t.Errorf("FormatOnPut = false, want default true")
	}
}

func TestCompileExplicitFormatOnPut(t *testing.T) {
	no := false
	f := &File{
		Server: []Server{
			{Name: "rust-analyzer", Files: `\.rs$`, FormatOnPut: &no},
		},
	}
	scs, err := Compile(f)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if scs[0].FormatOnPut {
		t.Errorf("FormatOnPut = true, want explicit false honored")
	}
}

func TestCompileRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		srv  Server
	}{
		{"missing name", Server{Files: `\.go$`}},
		{"missing files", Server{Name: "gopls"}},
		{"bad regex", Server{Name: "gopls", Files: "(["}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Compile(&File{Server: []Server{c.srv}}); err == nil {
				t.Errorf("Compile(%+v) = nil error, want error", c.srv)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	scs, err := Compile(&File{Server: []Server{
		{Name: "gopls", Files: `\.go$`},
		{Name: "rust-analyzer", Files: `\.rs$`},
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		file string
		want string
		ok   bool
	}{
		{"main.go", "gopls", true},
		{"lib.rs", "rust-analyzer", true},
		{"README.md", "", false},
	}
	for _, c := range cases {
		sc, ok := Match(scs, c.file)
		if ok != c.ok {
			t.Errorf("Match(%q) ok = %v, want %v", c.file, ok, c.ok)
			continue
		}
		if ok && sc.Name != c.want {
			t.Errorf("Match(%q) = %q, want %q", c.file, sc.Name, c.want)
		}
	}
}
