package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "plutoc.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadDefaultsEntryWhenUnset(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "target: x86_64-unknown-linux-gnu\n")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := m.EntryPath(), filepath.Join(dir, "main.pluto"); got != want {
		t.Fatalf("EntryPath = %q, want %q", got, want)
	}
}

func TestLoadResolvesRelativeStdlibAgainstManifestDir(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "entry: src/app.pluto\nstdlib: vendor/stdlib\n")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := m.EntryPath(), filepath.Join(dir, "src/app.pluto"); got != want {
		t.Fatalf("EntryPath = %q, want %q", got, want)
	}
	if got, want := m.StdlibPath(), filepath.Join(dir, "vendor/stdlib"); got != want {
		t.Fatalf("StdlibPath = %q, want %q", got, want)
	}
}

func TestStdlibPathEmptyWhenManifestOmitsIt(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "entry: main.pluto\n")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.StdlibPath(); got != "" {
		t.Fatalf("StdlibPath = %q, want empty", got)
	}
}

func TestDepsPathDefaultsToDotDepsUnderManifestDir(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "entry: main.pluto\n")

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := m.DepsPath(), filepath.Join(dir, ".deps"); got != want {
		t.Fatalf("DepsPath = %q, want %q", got, want)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing manifest file")
	}
}
