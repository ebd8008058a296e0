// Package config handles pbrain.toml run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pbrainLang/pbrain/pkg/interpreter"
	"github.com/pbrainLang/pbrain/pkg/memory"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "pbrain.toml"

// Config represents a pbrain.toml file.
type Config struct {
	Memory Memory `toml:"memory"`
	Limits Limits `toml:"limits"`
	Debug  Debug  `toml:"debug"`

	// Dir is the directory containing the pbrain.toml file (set at load time).
	Dir string `toml:"-"`
}

// Memory configures the tape.
type Memory struct {
	Size      int    `toml:"size"`
	CellWidth int    `toml:"cell-width"`
	Overflow  string `toml:"overflow"` // "wrap" or "no-wrap"
}

// Limits bound a run.
type Limits struct {
	Threshold     int64    `toml:"threshold"`
	StdoutLimit   int      `toml:"stdout-limit"`
	CheckInterval int      `toml:"check-interval"`
	Timeout       Duration `toml:"timeout"`
}

// Debug configures debug sessions.
type Debug struct {
	Breakpoints []int `toml:"breakpoints"`
}

// Duration is a time.Duration written as a string such as "1.5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Memory: Memory{
			Size:      30000,
			CellWidth: 8,
			Overflow:  "wrap",
		},
		Limits: Limits{
			StdoutLimit:   interpreter.DefaultStdoutLimit,
			CheckInterval: interpreter.DefaultCheckInterval,
		},
	}
}

// Load parses a pbrain.toml file from the given directory.
func Load(dir string) (*Config, error) {
	c, err := LoadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// LoadFile parses a configuration file at an explicit path. Keys missing
// from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Dir = filepath.Dir(path)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a pbrain.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
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

// Validate checks every value against the machine limits.
func (c *Config) Validate() error {
	if c.Memory.Size < memory.MinSize || c.Memory.Size > memory.MaxSize {
		return fmt.Errorf("memory size %d outside [%d, %d]", c.Memory.Size, memory.MinSize, memory.MaxSize)
	}
	if _, err := c.Width(); err != nil {
		return err
	}
	if _, err := c.Overflow(); err != nil {
		return err
	}
	if c.Limits.Threshold < 0 {
		return fmt.Errorf("negative threshold %d", c.Limits.Threshold)
	}
	if c.Limits.StdoutLimit < 0 {
		return fmt.Errorf("negative stdout limit %d", c.Limits.StdoutLimit)
	}
	if c.Limits.CheckInterval < 0 {
		return fmt.Errorf("negative check interval %d", c.Limits.CheckInterval)
	}
	if c.Limits.Timeout.Duration < 0 {
		return fmt.Errorf("negative timeout %s", c.Limits.Timeout)
	}
	for _, b := range c.Debug.Breakpoints {
		if b < 0 {
			return fmt.Errorf("negative breakpoint offset %d", b)
		}
	}
	return nil
}

// Width returns the configured cell width.
func (c *Config) Width() (memory.Width, error) {
	switch c.Memory.CellWidth {
	case 8:
		return memory.Bits8, nil
	case 16:
		return memory.Bits16, nil
	}
	return 0, fmt.Errorf("unsupported cell width %d (want 8 or 16)", c.Memory.CellWidth)
}

// Overflow returns the configured overflow policy.
func (c *Config) Overflow() (memory.Overflow, error) {
	switch c.Memory.Overflow {
	case "wrap", "":
		return memory.Wrap, nil
	case "no-wrap", "nowrap":
		return memory.NoWrap, nil
	}
	return 0, fmt.Errorf("unknown overflow policy %q (want wrap or no-wrap)", c.Memory.Overflow)
}

// NewState allocates a zeroed tape as configured.
func (c *Config) NewState() (*memory.State, error) {
	width, err := c.Width()
	if err != nil {
		return nil, err
	}
	policy, err := c.Overflow()
	if err != nil {
		return nil, err
	}
	return memory.New(c.Memory.Size, width, policy)
}

// Options returns the engine limits.
func (c *Config) Options() interpreter.Options {
	return interpreter.Options{
		Threshold:     c.Limits.Threshold,
		StdoutLimit:   c.Limits.StdoutLimit,
		CheckInterval: c.Limits.CheckInterval,
	}
}
