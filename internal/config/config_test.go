package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IndentSpaces != DefaultConfig().IndentSpaces {
		t.Fatalf("IndentSpaces = %d, want %d", cfg.IndentSpaces, DefaultConfig().IndentSpaces)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"indent_spaces": 8}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IndentSpaces != 8 {
		t.Fatalf("IndentSpaces = %d, want %d", cfg.IndentSpaces, 8)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["doc_repair", "doc_import"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "doc_repair" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "doc_repair")
	}
	if cfg.DisabledTools[1] != "doc_import" {
		t.Errorf("DisabledTools[1] = %q, want %q", cfg.DisabledTools[1], "doc_import")
	}
}

func TestLoad_DisabledToolsEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 0 {
		t.Fatalf("DisabledTools = %v, want nil or empty", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	// Global config
	globalConfig := `{"indent_spaces": 4, "disabled_tools": ["doc_repair"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	// Repo config at repoRoot/.arbor/config.json
	arborDir := filepath.Join(repoRoot, ".arbor")
	if err := os.MkdirAll(arborDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"indent_spaces": 3, "disabled_tools": ["doc_import"]}`
	if err := os.WriteFile(filepath.Join(arborDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	// Repo overrides scalar
	if cfg.IndentSpaces != 3 {
		t.Errorf("IndentSpaces = %d, want 3 (repo override)", cfg.IndentSpaces)
	}

	// Arrays merged
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_OnlyGlobal(t *testing.T) {
	globalDir := t.TempDir()
	repoDir := t.TempDir() // No config file

	globalConfig := `{"indent_spaces": 4, "disabled_tools": ["doc_repair"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.IndentSpaces != 4 {
		t.Errorf("IndentSpaces = %d, want 4", cfg.IndentSpaces)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "doc_repair" {
		t.Errorf("DisabledTools = %v, want [doc_repair]", cfg.DisabledTools)
	}
}

func TestLoadWithRepo_OnlyRepo(t *testing.T) {
	globalDir := t.TempDir() // No config file
	repoRoot := t.TempDir()

	// Repo config at repoRoot/.arbor/config.json
	arborDir := filepath.Join(repoRoot, ".arbor")
	if err := os.MkdirAll(arborDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"disabled_tools": ["doc_import", "catalog_index"]}`
	if err := os.WriteFile(filepath.Join(arborDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, repoRoot)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	// Default value preserved
	if cfg.IndentSpaces != 2 {
		t.Errorf("IndentSpaces = %d, want 2 (default)", cfg.IndentSpaces)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	globalDir := t.TempDir()
	repoDir := t.TempDir()

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	// All defaults
	if cfg.IndentSpaces != 2 {
		t.Errorf("IndentSpaces = %d, want 2", cfg.IndentSpaces)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{IndentSpaces: 6, DBMaxOpenConns: 5}
	overlay := &Config{IndentSpaces: 3} // DBMaxOpenConns is 0 (zero value)

	result := Merge(base, overlay)

	if result.IndentSpaces != 3 {
		t.Errorf("IndentSpaces = %d, want 3 (overlay)", result.IndentSpaces)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	base := &Config{AllowUnsafePaths: true}
	overlay := &Config{AllowUnsafePaths: false}

	result := Merge(base, overlay)

	if !result.AllowUnsafePaths {
		t.Error("AllowUnsafePaths should be true (base OR overlay)")
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"doc_repair", "doc_import"}}
	overlay := &Config{DisabledTools: []string{"doc_import", "catalog_index"}}

	result := Merge(base, overlay)

	if len(result.DisabledTools) != 3 {
		t.Errorf("DisabledTools length = %d, want 3 (merged, deduped)", len(result.DisabledTools))
	}

	// Check all three are present
	has := make(map[string]bool)
	for _, s := range result.DisabledTools {
		has[s] = true
	}
	for _, want := range []string{"doc_repair", "doc_import", "catalog_index"} {
		if !has[want] {
			t.Errorf("DisabledTools missing %q", want)
		}
	}
}

func TestFindRepoConfig_InCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()
	arborDir := filepath.Join(tmpDir, ".arbor")
	if err := os.MkdirAll(arborDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	configPath := filepath.Join(arborDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	found := FindRepoConfig(tmpDir)
	if found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_InParentDir(t *testing.T) {
	// Create: tmpDir/.arbor/config.json
	//         tmpDir/subdir/deeper/
	tmpDir := t.TempDir()
	arborDir := filepath.Join(tmpDir, ".arbor")
	if err := os.MkdirAll(arborDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	configPath := filepath.Join(arborDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	subdir := filepath.Join(tmpDir, "subdir", "deeper")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	// Start from subdir, should find config in parent
	found := FindRepoConfig(subdir)
	if found != configPath {
		t.Errorf("FindRepoConfig() = %q, want %q", found, configPath)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	tmpDir := t.TempDir()
	// No .arbor directory

	found := FindRepoConfig(tmpDir)
	if found != "" {
		t.Errorf("FindRepoConfig() = %q, want empty string", found)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	// Create: tmpDir/.arbor/config.json with disabled_tools
	//         tmpDir/subdir/
	tmpDir := t.TempDir()
	globalDir := t.TempDir() // Separate global dir

	arborDir := filepath.Join(tmpDir, ".arbor")
	if err := os.MkdirAll(arborDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"disabled_tools": ["doc_repair"]}`
	if err := os.WriteFile(filepath.Join(arborDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	subdir := filepath.Join(tmpDir, "subdir")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	// Load from subdir, should find repo config in parent
	cfg, err := LoadWithRepo(globalDir, subdir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "doc_repair" {
		t.Errorf("DisabledTools = %v, want [doc_repair]", cfg.DisabledTools)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := "log_level: debug\nweb_port: 9000\nallowed_paths:\n  - /srv/notes\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.WebPort != 9000 {
		t.Errorf("WebPort = %d, want 9000", cfg.WebPort)
	}
	if cfg.WebBind != "127.0.0.1" {
		t.Errorf("WebBind = %q, want default 127.0.0.1", cfg.WebBind)
	}
	if len(cfg.AllowedPaths) != 1 || cfg.AllowedPaths[0] != "/srv/notes" {
		t.Errorf("AllowedPaths = %v, want [/srv/notes]", cfg.AllowedPaths)
	}
}

func TestLoad_JSONPreferredOverYAML(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{"log_level": "warn"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("log_level: error\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBaseDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARBOR_HOME", dir)

	got, err := BaseDir()
	if err != nil {
		t.Fatalf("BaseDir() error = %v", err)
	}
	if got != dir {
		t.Errorf("BaseDir() = %q, want %q", got, dir)
	}
}
