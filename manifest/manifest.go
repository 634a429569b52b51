// Package manifest handles tlang.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"

	"github.com/chazu/tlang/pkg/bytecode"
)

// FileName is the name of the project configuration file.
const FileName = "tlang.toml"

// Defaults applied to fields left unset.
const (
	DefaultAddr     = "localhost:4270"
	DefaultWorkers  = 4
	DefaultLogLevel = "info"
)

// Manifest represents a tlang.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	VM      VMConfig     `toml:"vm"`
	Server  ServerConfig `toml:"server"`
	Log     LogConfig    `toml:"log"`

	// Dir is the directory containing the tlang.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// VMConfig configures the virtual machine.
type VMConfig struct {
	StackMax int  `toml:"stack-max"`
	Trace    bool `toml:"trace"`
}

// ServerConfig configures `tlang serve`.
type ServerConfig struct {
	Addr    string `toml:"addr"`
	Workers int    `toml:"workers"`
	Store   string `toml:"store"` // SQLite path; empty disables the chunk store
}

// LogConfig configures CLI logging.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// schemaSrc constrains a fully defaulted manifest.
const schemaSrc = `
project: {
	name:    string
	version: string
}
vm: {
	"stack-max": int & >=1 & <=65536
	trace:       bool
}
server: {
	addr:    string
	workers: int & >=1 & <=256
	store:   string
}
log: {
	level: "debug" | "info" | "warn" | "error"
	file:  string
}
`

var schema = sync.OnceValues(func() (*cue.Context, cue.Value) {
	ctx := cuecontext.New()
	return ctx, ctx.CompileString("close({" + schemaSrc + "})")
})

// Default returns a manifest with every default applied, rooted at the
// current directory.
func Default() *Manifest {
	m := &Manifest{Dir: "."}
	m.applyDefaults()
	return m
}

// Load parses the tlang.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file at an explicit path. Unknown keys
// and values outside the schema are errors.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: cannot read %s: %w", path, err)
	}

	var m Manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("manifest: parse error in %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("manifest: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("manifest: cannot resolve path %s: %w", path, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a tlang.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.VM.StackMax == 0 {
		m.VM.StackMax = bytecode.DefaultStackMax
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
	if m.Server.Workers == 0 {
		m.Server.Workers = DefaultWorkers
	}
	if m.Log.Level == "" {
		m.Log.Level = DefaultLogLevel
	}
}

// Validate checks the manifest against the configuration schema. Callers
// that override fields after loading (command-line flags) validate again.
func (m *Manifest) Validate() error {
	ctx, s := schema()
	if err := s.Err(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	value := ctx.Encode(m.asTree())
	if err := value.Err(); err != nil {
		return err
	}
	if err := s.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return errors.New(strings.ReplaceAll(err.Error(), "\n", "; "))
	}
	return nil
}

// asTree mirrors the TOML layout so schema paths match file keys.
func (m *Manifest) asTree() map[string]any {
	return map[string]any{
		"project": map[string]any{
			"name":    m.Project.Name,
			"version": m.Project.Version,
		},
		"vm": map[string]any{
			"stack-max": m.VM.StackMax,
			"trace":     m.VM.Trace,
		},
		"server": map[string]any{
			"addr":    m.Server.Addr,
			"workers": m.Server.Workers,
			"store":   m.Server.Store,
		},
		"log": map[string]any{
			"level": m.Log.Level,
			"file":  m.Log.File,
		},
	}
}

// resolve returns p relative to the manifest directory unless it is
// already absolute.
func (m *Manifest) resolve(p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// StorePath returns the chunk store path, or "" when no store is configured.
func (m *Manifest) StorePath() string {
	return m.resolve(m.Server.Store)
}

// LogFilePath returns the log file path, or "" when file logging is off.
func (m *Manifest) LogFilePath() string {
	return m.resolve(m.Log.File)
}
