// Package configfile reads and writes the persisted project configuration.
// The file lives at <project>/.skein/config.json and is the only
// filesystem artifact besides the database itself.
package configfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the per-project directory holding config and database.
	DirName = ".skein"
	// ConfigFileName is the project configuration file inside DirName.
	ConfigFileName = "config.json"
	// DatabaseFileName is the embedded store inside DirName.
	DatabaseFileName = "skein.db"
)

// Mode selects how callers reach the store.
type Mode string

// Operating modes. Ethereal opens the database in-process per call;
// server means a long-running daemon owns the connection (the daemon
// itself is a collaborator outside this repo).
const (
	ModeEthereal Mode = "ethereal"
	ModeServer   Mode = "server"
)

// Config is the persisted project configuration.
//
// EnabledPacks distinguishes "absent" (nil, defaults apply) from an
// explicitly empty list (only the core pack), so the field is a pointer
// slice kept exactly as unmarshaled.
type Config struct {
	Prefix       string    `json:"prefix"`
	Name         string    `json:"name,omitempty"`
	Version      int       `json:"version"`
	EnabledPacks *[]string `json:"enabled_packs,omitempty"`
	Mode         Mode      `json:"mode,omitempty"`
}

// Default returns a fresh config for a new project.
func Default(prefix, name string, version int) *Config {
	return &Config{Prefix: prefix, Name: name, Version: version, Mode: ModeEthereal}
}

// Packs returns the pack list to pass to workflow.Load: nil when the
// field is absent (defaults), the exact list otherwise.
func (c *Config) Packs() []string {
	if c.EnabledPacks == nil {
		return nil
	}
	if *c.EnabledPacks == nil {
		// JSON [] unmarshals to an empty non-nil slice, but guard anyway.
		return []string{}
	}
	return *c.EnabledPacks
}

// EffectiveMode normalizes the mode field. Unknown values fall back to
// ethereal; the warning is returned rather than logged so the caller
// decides where it surfaces.
func (c *Config) EffectiveMode() (Mode, string) {
	switch c.Mode {
	case ModeEthereal, ModeServer:
		return c.Mode, ""
	case "":
		return ModeEthereal, ""
	default:
		return ModeEthereal, fmt.Sprintf("unknown mode %q in config, falling back to %q", c.Mode, ModeEthereal)
	}
}

// Path returns the config file path under a project directory.
func Path(skeinDir string) string {
	return filepath.Join(skeinDir, ConfigFileName)
}

// DatabasePath returns the database path under a project directory.
func DatabasePath(skeinDir string) string {
	return filepath.Join(skeinDir, DatabaseFileName)
}

// Load reads the config from skeinDir. Returns (nil, nil) when the file
// does not exist.
func Load(skeinDir string) (*Config, error) {
	data, err := os.ReadFile(Path(skeinDir)) // #nosec G304 - controlled path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config atomically: marshal to a temp file in the same
// directory, fsync, rename over the target. On any failure the temp file
// is removed and the previous committed content is left fully intact.
func (c *Config) Save(skeinDir string) (err error) {
	if mkErr := os.MkdirAll(skeinDir, 0o750); mkErr != nil {
		return fmt.Errorf("creating config dir: %w", mkErr)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(skeinDir, ConfigFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, werr := tmp.Write(data); werr != nil {
		err = errors.Join(fmt.Errorf("writing temp config: %w", werr), tmp.Close())
		return err
	}
	if serr := tmp.Sync(); serr != nil {
		err = errors.Join(fmt.Errorf("syncing temp config: %w", serr), tmp.Close())
		return err
	}
	if cerr := tmp.Close(); cerr != nil {
		err = fmt.Errorf("closing temp config: %w", cerr)
		return err
	}
	if rerr := os.Chmod(tmpPath, 0o600); rerr != nil {
		err = fmt.Errorf("setting config permissions: %w", rerr)
		return err
	}
	if rerr := os.Rename(tmpPath, Path(skeinDir)); rerr != nil {
		err = fmt.Errorf("replacing config: %w", rerr)
		return err
	}
	return nil
}
