// Package config loads a plutoc project manifest: the stdlib path
// override, target triple, and dependency cache directory a project
// root's plutoc.yaml declares, so cmd/plutoc doesn't need every setting
// passed as a flag.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the decoded shape of plutoc.yaml.
type Manifest struct {
	// Entry is the module's main source file, relative to the manifest's
	// directory. Defaults to "main.pluto" if empty.
	Entry string `yaml:"entry"`

	// Stdlib overrides the default stdlib search root. Relative paths
	// are resolved against the manifest's directory.
	Stdlib string `yaml:"stdlib"`

	// DepsDir is where `.deps/<pkg>/...` third-party packages are
	// cached, mirroring the resolver's package-tier lookup.
	DepsDir string `yaml:"deps_dir"`

	// Target is the backend target triple a future codegen backend
	// would compile against (e.g. "x86_64-unknown-linux-gnu"). Unused
	// by this repo's IR-only pipeline, but part of the manifest schema
	// a real backend would read.
	Target string `yaml:"target"`

	// dir is the manifest file's own directory, for resolving the
	// relative fields above; not part of the YAML schema itself.
	dir string
}

const defaultEntry = "main.pluto"

// Load reads and parses the plutoc.yaml manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	if m.Entry == "" {
		m.Entry = defaultEntry
	}
	return &m, nil
}

// EntryPath returns the entry source file, resolved against the
// manifest's own directory (absolute only if that directory is).
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Entry)
}

// StdlibPath returns the resolved stdlib root, or "" if the manifest
// doesn't override it (the caller falls back to its own default).
func (m *Manifest) StdlibPath() string {
	if m.Stdlib == "" {
		return ""
	}
	return m.resolve(m.Stdlib)
}

// DepsPath returns the resolved dependency cache directory, defaulting
// to "<manifest dir>/.deps".
func (m *Manifest) DepsPath() string {
	if m.DepsDir == "" {
		return m.resolve(".deps")
	}
	return m.resolve(m.DepsDir)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.dir, p)
}
