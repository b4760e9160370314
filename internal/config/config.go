// Package config loads and validates the optional .outprobe YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deixis/outprobe/internal/probe"
)

// FileName is the name of the configuration file looked up from the
// working directory upward.
const FileName = ".outprobe"

// Config holds the parsed .outprobe configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int    `yaml:"version"`
	RawTimeout   string `yaml:"timeout"`    // e.g. "30s"; empty waits indefinitely
	RawMaxOutput int    `yaml:"max_output"` // bytes; 0 is unbounded
	ReportDir    string `yaml:"report_dir"` // where run reports are kept
	Cases        []Case `yaml:"cases"`
}

// Case is one executable to probe.
type Case struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Expect string `yaml:"expect"` // default: "sees all"
}

// Want returns the expected substring, falling back to the default.
func (c Case) Want() string {
	if c.Expect != "" {
		return c.Expect
	}
	return probe.DefaultExpect
}

// Timeout returns the configured timeout, or 0 when none is set.
// Validate rejects values this cannot parse.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.RawTimeout)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// MaxOutputBytes returns the configured max output size, or 0 (unbounded).
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return 0
}

// ReportPath returns the report directory resolved against root, or ""
// if none is configured.
func (c *Config) ReportPath(root string) string {
	if c.ReportDir == "" || filepath.IsAbs(c.ReportDir) {
		return c.ReportDir
	}
	return filepath.Join(root, c.ReportDir)
}

// Validate reports a malformed timeout and cases with missing paths,
// missing names or duplicate names.
func (c *Config) Validate() error {
	var errs []error
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("timeout %q: want a duration such as 30s", c.RawTimeout))
		case d <= 0:
			errs = append(errs, fmt.Errorf("timeout %q: must be positive", c.RawTimeout))
		}
	}
	seen := make(map[string]bool, len(c.Cases))
	for i, cs := range c.Cases {
		if cs.Name == "" {
			errs = append(errs, fmt.Errorf("case %d: name is required", i))
		} else if seen[cs.Name] {
			errs = append(errs, fmt.Errorf("case %q: duplicate name", cs.Name))
		}
		seen[cs.Name] = true
		if cs.Path == "" {
			errs = append(errs, fmt.Errorf("case %d (%s): path is required", i, cs.Name))
		}
	}
	return errors.Join(errs...)
}

// LoadResult holds the parsed config and the discovered project root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory holding .outprobe or go.mod; falls back to workspace
}

// Load reads the .outprobe file from the project root.
// The root is the nearest directory at or above workspace that holds a
// .outprobe file, else the nearest holding go.mod, else workspace itself.
// If no .outprobe file exists, a default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRoot(workspace)
	if err != nil {
		root = workspace
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, RepoRoot: root}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", FileName, err)
	}
	return &LoadResult{Config: cfg, RepoRoot: root}, nil
}

// findRoot walks upward from dir looking for .outprobe, then for go.mod.
func findRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for _, marker := range []string{FileName, "go.mod"} {
		if root, ok := walkUp(dir, marker); ok {
			return root, nil
		}
	}
	return "", fmt.Errorf("no %s or go.mod found", FileName)
}

func walkUp(dir, marker string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
