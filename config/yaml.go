package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigEnv names a config file that is searched before the default locations.
const ConfigEnv = "TESLACAM_CONFIG"

const savedHeader = `# teslacam configuration
# Command-line flags override these values. Per-command arguments such as
# -event and -output are never stored.
`

// LoadConfigFile reads a YAML file over the defaults. Unknown keys are
// rejected so a misspelled option is reported instead of ignored, and a
// leading ~ in root and metadata_dir expands to the home directory.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Root = expandHome(cfg.Root)
	cfg.MetadataDir = expandHome(cfg.MetadataDir)
	return cfg, nil
}

// ConfigLocations lists the searched config files in priority order:
// $TESLACAM_CONFIG, the working directory, the user config directory,
// ~/.teslacam and /etc/teslacam.
func ConfigLocations() []string {
	var locations []string
	if p := os.Getenv(ConfigEnv); p != "" {
		locations = append(locations, p)
	}
	locations = append(locations, "./teslacam.yaml", "./teslacam.yml")
	if dir, err := os.UserConfigDir(); err == nil {
		locations = append(locations, filepath.Join(dir, "teslacam", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".teslacam", "config.yaml"),
			filepath.Join(home, ".teslacam", "config.yml"),
		)
	}
	return append(locations, "/etc/teslacam/config.yaml", "/etc/teslacam/config.yml")
}

// FindConfigFile returns the first existing config location, or "" when
// there is none.
func FindConfigFile() string {
	for _, path := range ConfigLocations() {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path
		}
	}
	return ""
}

// SaveConfigFile writes cfg as YAML with a short header. Request fields
// are not written.
func SaveConfigFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(savedHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
