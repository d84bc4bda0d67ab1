package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/arbor/internal/config"
	"github.com/hpungsan/arbor/internal/errors"
)

// DocumentExt is the extension of documents read and written by arbor.
const DocumentExt = ".ctd"

// PathCheckMode says whether a document path will be read or written.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // source documents
	PathCheckWrite                      // export targets and documents rewritten in place
)

// ValidatePath checks a document path before it is opened:
//   - no ".." components
//   - the .ctd extension
//   - the file sits directly in <base>/exports or in one of cfg.AllowedPaths,
//     unless cfg.AllowUnsafePaths is set
//   - neither the file nor its parent directory is a symlink
//
// Files in subdirectories of an allowed directory are rejected so that no
// intermediate component can be swapped for a symlink after the check. The
// final component is opened with O_NOFOLLOW.
func ValidatePath(path string, mode PathCheckMode, cfg *config.Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !strings.EqualFold(filepath.Ext(cleaned), DocumentExt) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have %s extension", DocumentExt))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		allowedDirs, err := allowedDirs(cfg)
		if err != nil {
			return err
		}
		parentDir := filepath.Dir(absPath)
		if !isDirectlyIn(parentDir, allowedDirs) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", allowedDirs))
		}
		if isSymlink(parentDir) {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == PathCheckRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	if isSymlink(absPath) {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// isSymlink reports whether path exists and is a symlink.
func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// allowedDirs returns the exports directory plus the absolute entries of
// cfg.AllowedPaths, with symlinked entries resolved.
func allowedDirs(cfg *config.Config) ([]string, error) {
	exportsDir, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{exportsDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, p)
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if isSymlink(abs) {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

// isDirectlyIn reports whether dir is exactly one of allowed.
func isDirectlyIn(dir string, allowed []string) bool {
	dir = filepath.Clean(dir)
	for _, a := range allowed {
		if dir == filepath.Clean(a) {
			return true
		}
	}
	return false
}

// DefaultExportsDir returns <base>/exports, where base is $ARBOR_HOME or ~/.arbor.
func DefaultExportsDir() (string, error) {
	base, err := config.BaseDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(base, "exports"), nil
}

// containsTraversal reports whether any component of path is "..", splitting
// on both the OS separator and forward slashes.
func containsTraversal(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
	for _, part := range parts {
		if part == ".." {
			return true
		}
	}
	return false
}

// SanitizeForFilename turns a node or document name into a safe file name
// stem: separators and ".." become dashes, control characters are dropped,
// dash runs collapse. An empty result becomes "unnamed".
func SanitizeForFilename(s string) string {
	s = strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		if r == ' ' {
			return '-'
		}
		return r
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "unnamed"
	}
	return s
}
