package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/errors"
)

func TestValidatePath_TraversalRejected(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	tests := []string{
		"../notes.ctd",
		"../../etc/notes.ctd",
		"/tmp/../etc/notes.ctd",
		"/tmp/safe/../../../etc/notes.ctd",
	}

	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			err := ValidatePath(path, PathCheckWrite, cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ValidatePath(%q) = %v, want INVALID_REQUEST", path, err)
			}
		})
	}
}

func TestValidatePath_ExtensionRequired(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/tmp/notes", true},
		{"/tmp/notes.ctz", true},
		{"/tmp/notes.xml", true},
		{"/tmp/NOTES.CTD", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path, PathCheckWrite, cfg)
			if tt.wantErr && !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ValidatePath(%q) = %v, want INVALID_REQUEST", tt.path, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidatePath(%q) unexpected error: %v", tt.path, err)
			}
		})
	}
}

func TestValidatePath_Empty(t *testing.T) {
	err := ValidatePath("  ", PathCheckRead, config.DefaultConfig())
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("ValidatePath() = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_DirectoryRestriction(t *testing.T) {
	t.Setenv("ARBOR_HOME", t.TempDir())

	err := ValidatePath(filepath.Join(t.TempDir(), "notes.ctd"), PathCheckWrite, config.DefaultConfig())
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("ValidatePath() = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_ExportsDirAllowed(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ARBOR_HOME", home)

	err := ValidatePath(filepath.Join(home, "exports", "notes.ctd"), PathCheckWrite, config.DefaultConfig())
	if err != nil {
		t.Errorf("ValidatePath() unexpected error: %v", err)
	}
}

func TestValidatePath_AllowedPaths(t *testing.T) {
	cfg, dir := testEnv(t)
	path := filepath.Join(dir, "notes.ctd")

	if err := ValidatePath(path, PathCheckWrite, cfg); err != nil {
		t.Fatalf("ValidatePath() unexpected error: %v", err)
	}

	// Relative entries are ignored.
	cfg.AllowedPaths = []string{"relative/dir"}
	if err := ValidatePath(path, PathCheckWrite, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("ValidatePath() = %v, want INVALID_REQUEST", err)
	}
}

func TestValidatePath_NestedPathRejected(t *testing.T) {
	cfg, dir := testEnv(t)
	nested := filepath.Join(dir, "sub")
	if err := os.MkdirAll(nested, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	path := writeDoc(t, nested, "notes.ctd", gardenDoc)

	for _, mode := range []PathCheckMode{PathCheckRead, PathCheckWrite} {
		if err := ValidatePath(path, mode, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("ValidatePath(mode %v) = %v, want INVALID_REQUEST", mode, err)
		}
	}
}

func TestValidatePath_FileNotFound_ReadMode(t *testing.T) {
	cfg, dir := testEnv(t)
	path := filepath.Join(dir, "missing.ctd")

	if err := ValidatePath(path, PathCheckRead, cfg); !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("ValidatePath(read) = %v, want FILE_NOT_FOUND", err)
	}
	if err := ValidatePath(path, PathCheckWrite, cfg); err != nil {
		t.Errorf("ValidatePath(write) unexpected error: %v", err)
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	cfg, dir := testEnv(t)
	target := writeDoc(t, t.TempDir(), "real.ctd", gardenDoc)
	link := filepath.Join(dir, "link.ctd")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if err := ValidatePath(link, PathCheckRead, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("ValidatePath(read) = %v, want INVALID_REQUEST", err)
	}

	cfg.AllowUnsafePaths = true
	if err := ValidatePath(link, PathCheckWrite, cfg); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("ValidatePath(write, unsafe) = %v, want INVALID_REQUEST", err)
	}
}

func TestContainsTraversal(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a/../b", true},
		{"..", true},
		{"a/..b/c", false},
		{"/tmp/notes.ctd", false},
	}

	for _, tt := range tests {
		if got := containsTraversal(tt.path); got != tt.want {
			t.Errorf("containsTraversal(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Garden", "Garden"},
		{"Garden Plans", "Garden-Plans"},
		{"../../etc/passwd", "etc-passwd"},
		{"a\\b/c", "a-b-c"},
		{"tab\there", "tabhere"},
		{"---", "unnamed"},
		{"", "unnamed"},
	}

	for _, tt := range tests {
		if got := SanitizeForFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeForFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
