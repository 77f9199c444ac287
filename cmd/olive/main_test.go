package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/olive/compiler"
	"github.com/chazu/olive/manifest"
)

func TestExampleScriptCompiles(t *testing.T) {
	unit, err := compiler.Compile(filepath.Join("..", "..", "examples", "main.st"), newPersistentProgram("PersistentProgram"))
	if err != nil {
		t.Fatalf("example script: %v", err)
	}

	h, err := newDemoHost("PersistentProgram", 64, 48)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := unit.Invoke(h); err != nil {
			t.Fatalf("invoke %d: %v", i, err)
		}
	}
	if v, _ := h.Get("counter"); v != int64(3) {
		t.Errorf("counter = %v, want 3", v)
	}
	if v, _ := h.Get("background"); v != "maroon" {
		t.Errorf("background = %v, want maroon", v)
	}
	cam, _ := h.Get("camera")
	if n := cam.(*Camera).frames; n != 3 {
		t.Errorf("camera frames = %d, want 3", n)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	m, err := manifest.Load(filepath.Join("..", "..", "examples"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Script.Watch != "notify" {
		t.Errorf("watch = %q, want notify", m.Script.Watch)
	}
}

func TestCameraRespond(t *testing.T) {
	c := NewCamera(320, 240)
	for _, tc := range []struct {
		sel  string
		want any
	}{
		{"nextFrame", int64(1)},
		{"nextFrame", int64(2)},
		{"frameCount", int64(2)},
		{"width", int64(320)},
		{"isOpen", true},
	} {
		got, err := c.Respond(tc.sel, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.sel, err)
		}
		if got != tc.want {
			t.Errorf("%s = %v, want %v", tc.sel, got, tc.want)
		}
	}
	if _, err := c.Respond("zoom:", []any{int64(2)}); err == nil {
		t.Error("zoom: should not be understood")
	}
}

func TestCameraIsReadOnlyToScripts(t *testing.T) {
	_, err := compiler.CompileSource("x.st", []byte("[:p <PersistentProgram> | p camera: nil]"), newPersistentProgram("PersistentProgram"))
	if err == nil {
		t.Fatal("assigning camera should not compile")
	}
}

func TestRunCheck(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.st")
	bad := filepath.Join(dir, "bad.st")
	if err := os.WriteFile(good, []byte("[:p | p counter: 1]"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("[:p | p flip]"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(dir, "olive.toml")
	if err := os.WriteFile(cfg, []byte("[host]\nfps = 10\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if code := runCheck([]string{"-config", cfg, good}); code != 0 {
		t.Errorf("check good = %d, want 0", code)
	}
	if code := runCheck([]string{"-config", cfg, good, bad}); code != 1 {
		t.Errorf("check bad = %d, want 1", code)
	}
	if code := runCheck(nil); code != 2 {
		t.Errorf("check without args = %d, want 2", code)
	}
}

func TestRunCheck_UsesConfiguredHostName(t *testing.T) {
	dir := t.TempDir()
	typed := filepath.Join(dir, "typed.st")
	stale := filepath.Join(dir, "stale.st")
	if err := os.WriteFile(typed, []byte("[:p <Sketch> | p counter: 1]"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("[:p <PersistentProgram> | p counter: 1]"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(dir, "olive.toml")
	if err := os.WriteFile(cfg, []byte("[host]\nname = \"Sketch\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if code := runCheck([]string{"-config", cfg, typed}); code != 0 {
		t.Errorf("check <Sketch> = %d, want 0", code)
	}
	if code := runCheck([]string{"-config", cfg, stale}); code != 1 {
		t.Errorf("check <PersistentProgram> = %d, want 1", code)
	}
}

func TestApplyFlags(t *testing.T) {
	m := manifest.Default()
	applyFlags(m, &options{verbosity: -1, fps: 5, watchMode: "notify", saveState: true}, []string{"live.st"})
	if !filepath.IsAbs(m.Script.Path) || filepath.Base(m.Script.Path) != "live.st" {
		t.Errorf("script path = %q", m.Script.Path)
	}
	if m.Host.FPS != 5 || m.Script.Watch != "notify" || !m.State.Save {
		t.Errorf("flags not applied: %+v", m)
	}
	if m.Log.Verbosity != 0 {
		t.Errorf("verbosity = %d, want unchanged 0", m.Log.Verbosity)
	}
}
