// Package config handles loading and compiling the bridge's TOML
// configuration file: the set of language servers, the files each one
// handles, and its per-save behavior.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// File is the top-level structure of the bridge's config.toml.
type File struct {
	Server []Server `toml:"server"`
}

// Server is one [[server]] record: an LSP server to spawn and the files
// it is responsible for.
type Server struct {
	Name           string         `toml:"name"`
	Executable     string         `toml:"executable"`
	Files          string         `toml:"files"`
	RootURI        string         `toml:"root_uri"`
	WorkspaceFolders []string     `toml:"workspace_folders"`
	Options        map[string]any `toml:"options"`
	FormatOnPut    *bool          `toml:"format_on_put"`
	ActionsOnPut   []string       `toml:"actions_on_put"`
}

// Load reads and parses path as TOML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// ServerConfig is a Server with its executable defaulted, files pattern
// compiled, and format_on_put defaulted to true (spec.md §3).
type ServerConfig struct {
	Name             string
	Executable       string
	Files            *regexp.Regexp
	RootURI          string
	WorkspaceFolders []string
	Options          map[string]any
	FormatOnPut      bool
	ActionsOnPut     []string
}

// Compile validates and compiles every Server record in f.
//
// Files is required per server and must be a valid regexp; Name is
// required; Executable defaults to Name; FormatOnPut defaults to true
// when absent from the TOML.
func Compile(f *File) ([]ServerConfig, error) {
	out := make([]ServerConfig, 0, len(f.Server))
	for _, s := range f.Server {
		if s.Name == "" {
			return nil, fmt.Errorf("config: server entry missing required \"name\"")
		}
		if s.Files == "" {
			return nil, fmt.Errorf("config: server %q missing required \"files\"", s.Name)
		}
		re, err := regexp.Compile(s.Files)
		if err != nil {
			return nil, fmt.Errorf("config: server %q files pattern %q: %w", s.Name, s.Files, err)
		}
		exe := s.Executable
		if exe == "" {
			exe = s.Name
		}
		formatOnPut := true
		if s.FormatOnPut != nil {
			formatOnPut = *s.FormatOnPut
		}
		out = append(out, ServerConfig{
			Name:             s.Name,
			Executable:       exe,
			Files:            re,
			RootURI:          s.RootURI,
			WorkspaceFolders: s.WorkspaceFolders,
			Options:          s.Options,
			FormatOnPut:      formatOnPut,
			ActionsOnPut:     s.ActionsOnPut,
		})
	}
	return out, nil
}

// Match returns the first ServerConfig among servers whose Files pattern
// matches name, and true. If none match, it returns the zero value and
// false.
func Match(servers []ServerConfig, name string) (ServerConfig, bool) {
	for _, sc := range servers {
		if sc.Files.MatchString(name) {
			return sc, true
		}
	}
	return ServerConfig{}, false
}
