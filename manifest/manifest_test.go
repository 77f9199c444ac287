package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[host]
name = "PersistentProgram"
width = 320
height = 200
fps = 60

[script]
path = "scripts/main.st"
watch = "notify"

[state]
file = "state.cbor"
save = true

[journal]
path = "reloads.db"

[server]
control = "127.0.0.1:7420"
health = "127.0.0.1:7421"

[log]
verbosity = 2
`
	if err := os.WriteFile(filepath.Join(dir, "olive.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Host.Width != 320 || m.Host.Height != 200 {
		t.Errorf("host size = %dx%d, want 320x200", m.Host.Width, m.Host.Height)
	}
	if m.Host.FPS != 60 {
		t.Errorf("fps = %d, want 60", m.Host.FPS)
	}
	if m.Script.Watch != "notify" {
		t.Errorf("watch = %q, want notify", m.Script.Watch)
	}
	if want := filepath.Join(m.Dir, "scripts", "main.st"); m.ScriptPath() != want {
		t.Errorf("script path = %q, want %q", m.ScriptPath(), want)
	}
	if !m.State.Save {
		t.Error("state save = false, want true")
	}
	if want := filepath.Join(m.Dir, "reloads.db"); m.JournalPath() != want {
		t.Errorf("journal path = %q, want %q", m.JournalPath(), want)
	}
	if m.Server.Control != "127.0.0.1:7420" {
		t.Errorf("control = %q", m.Server.Control)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", m.Log.Verbosity)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "olive.toml"), []byte("[host]\nwidth = 100\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Host.Width != 100 || m.Host.Height != 480 {
		t.Errorf("host size = %dx%d, want 100x480", m.Host.Width, m.Host.Height)
	}
	if m.Host.FPS != 30 {
		t.Errorf("default fps = %d, want 30", m.Host.FPS)
	}
	if m.Script.Path != "main.st" || m.Script.Watch != "stat" {
		t.Errorf("default script = %+v", m.Script)
	}
	if m.JournalPath() != "" {
		t.Errorf("journal should be disabled by default, got %q", m.JournalPath())
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown section", "[window]\ntitle = \"x\"\n", "window"},
		{"unknown key", "[script]\nfile = \"a.st\"\n", "file"},
		{"bad watch mode", "[script]\nwatch = \"poll\"\n", "watch"},
		{"fps out of range", "[host]\nfps = 0\n", "fps"},
		{"wrong type", "[host]\nwidth = \"wide\"\n", "width"},
		{"toml syntax", "[host\n", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if m.Dir != "" {
		t.Errorf("Dir = %q, want empty", m.Dir)
	}
	if m.ScriptPath() != "main.st" {
		t.Errorf("script path = %q, want main.st", m.ScriptPath())
	}
	if m.StatePath() != filepath.Join(".olive", "state.cbor") {
		t.Errorf("state path = %q", m.StatePath())
	}
}

func TestJournalMemory(t *testing.T) {
	m := &Manifest{Dir: "/app", Journal: Journal{Path: ":memory:"}}
	if m.JournalPath() != ":memory:" {
		t.Errorf("journal path = %q, want :memory:", m.JournalPath())
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := "[script]\npath = \"live.st\"\n"
	if err := os.WriteFile(filepath.Join(dir, "olive.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.ScriptPath() != filepath.Join(m.Dir, "live.st") {
		t.Errorf("script path = %q", m.ScriptPath())
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no olive.toml exists")
	}
}

func TestLoadFileAnyName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dev.toml")
	if err := os.WriteFile(path, []byte("[journal]\npath = \"j.db\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if want := filepath.Join(m.Dir, "j.db"); m.JournalPath() != want {
		t.Errorf("journal path = %q, want %q", m.JournalPath(), want)
	}
}
