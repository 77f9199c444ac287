// Package manifest handles olive.toml configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
)

// FileName is the configuration file FindAndLoad looks for.
const FileName = "olive.toml"

//go:embed schema.cue
var schemaSource string

// Manifest represents an olive.toml configuration.
type Manifest struct {
	Host    Host    `toml:"host"`
	Script  Script  `toml:"script"`
	State   State   `toml:"state"`
	Journal Journal `toml:"journal"`
	Server  Server  `toml:"server"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the olive.toml file (set at load time).
	Dir string `toml:"-"`
}

// Host configures the host instance.
type Host struct {
	Name   string `toml:"name"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	FPS    int    `toml:"fps"`
}

// Script configures the watched script.
type Script struct {
	Path  string `toml:"path"`
	Watch string `toml:"watch"`
}

// State configures the persistent state file.
type State struct {
	File string `toml:"file"`
	// Save writes the state file on exit and loads it at startup.
	Save bool `toml:"save"`
}

// Journal configures the reload history database.
type Journal struct {
	Path string `toml:"path"`
}

// Server configures the network listeners. Empty addresses disable them.
type Server struct {
	Control string `toml:"control"`
	Health  string `toml:"health"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no olive.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses an olive.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file of any name. Relative paths in it
// resolve against its directory.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates configuration text. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	m.applyDefaults()
	return &m, nil
}

// Validate checks decoded configuration against the schema. Unknown
// sections and keys are errors.
func Validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// FindAndLoad walks up from startDir to find an olive.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.Host.Name == "" {
		m.Host.Name = "PersistentProgram"
	}
	if m.Host.Width == 0 {
		m.Host.Width = 640
	}
	if m.Host.Height == 0 {
		m.Host.Height = 480
	}
	if m.Host.FPS == 0 {
		m.Host.FPS = 30
	}
	if m.Script.Path == "" {
		m.Script.Path = "main.st"
	}
	if m.Script.Watch == "" {
		m.Script.Watch = "stat"
	}
	if m.State.File == "" {
		m.State.File = filepath.Join(".olive", "state.cbor")
	}
}

// Resolve returns p relative to the manifest directory unless it is absolute
// or the manifest was not loaded from a file.
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ScriptPath returns the resolved script path.
func (m *Manifest) ScriptPath() string {
	return m.Resolve(m.Script.Path)
}

// StatePath returns the resolved state file path.
func (m *Manifest) StatePath() string {
	return m.Resolve(m.State.File)
}

// JournalPath returns the resolved journal path, or "" when journaling is
// disabled. ":memory:" is passed through.
func (m *Manifest) JournalPath() string {
	if m.Journal.Path == ":memory:" {
		return m.Journal.Path
	}
	return m.Resolve(m.Journal.Path)
}
