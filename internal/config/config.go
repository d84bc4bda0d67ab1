package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// IndentSpaces controls pretty-printing of saved documents.
	// Zero means use the default of 2.
	IndentSpaces int `json:"indent_spaces,omitempty" yaml:"indent_spaces,omitempty"`

	// AllowedPaths is an allowlist of directories for export/import targets.
	// Paths outside ~/.arbor/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export/import targets.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" yaml:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open catalog connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle catalog connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type prefixes to disable ("doc", "catalog").
	DisabledTypes []string `json:"disabled_types,omitempty" yaml:"disabled_types,omitempty"`

	// WebBind and WebPort configure the document browser.
	WebBind string `json:"web_bind,omitempty" yaml:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty" yaml:"web_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		IndentSpaces: 2,
		WebBind:      "127.0.0.1",
		WebPort:      8742,
	}
}

// BaseDir returns the arbor home directory: $ARBOR_HOME if set, else ~/.arbor.
func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("ARBOR_HOME")); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".arbor"), nil
}

// Load loads configuration from baseDir/config.json, falling back to
// baseDir/config.yaml. Returns default config if neither file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.arbor.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(findConfigFile(baseDir))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.arbor) and repo (.arbor) directories.
// Repo config is found by walking upward from startDir to find the nearest .arbor directory
// holding a config file. Repo config takes precedence for scalar values; arrays are merged.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(findConfigFile(globalDir))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .arbor config file.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		if path := findConfigFile(filepath.Join(dir, ".arbor")); path != "" {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// findConfigFile returns the first existing config file in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.LogLevel = overlay.LogLevel
	if result.LogLevel == "" {
		result.LogLevel = base.LogLevel
	}

	result.IndentSpaces = overlay.IndentSpaces
	if result.IndentSpaces == 0 {
		result.IndentSpaces = base.IndentSpaces
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.WebBind = overlay.WebBind
	if result.WebBind == "" {
		result.WebBind = base.WebBind
	}

	result.WebPort = overlay.WebPort
	if result.WebPort == 0 {
		result.WebPort = base.WebPort
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
