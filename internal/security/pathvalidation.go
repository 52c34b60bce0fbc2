// Package security validates paths built from untrusted identifiers.
// Run IDs are read back out of tracking databases that other hosts may
// have produced, so anything embedded in an output path is sanitized
// first and the final path checked against the directory it must stay
// inside.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory reports an error unless filePath stays
// inside safeDir once cleaned, made absolute and stripped of symlinks.
// safeDir must exist; filePath need not.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("resolve safe directory: %w", err)
	}

	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("resolve safe directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalSafeDir, canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", safeDir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %s escapes %s", filePath, safeDir)
	}
	return nil
}

// canonicalize resolves symlinks in absPath. When the path does not
// exist yet, symlinks are resolved on the nearest existing ancestor
// instead, so a link planted inside the safe directory cannot smuggle
// a new file out through it.
func canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	for dir := filepath.Dir(absPath); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, absPath)
			if err != nil {
				return absPath
			}
			return filepath.Join(resolved, rel)
		}
		if dir == filepath.Dir(dir) {
			// Hit the filesystem root without finding an existing dir.
			return absPath
		}
	}
}

// SanitizeFilename reduces an arbitrary identifier to a string safe to
// embed in a file name. ASCII letters, digits, dot, underscore and dash
// pass through; every other run of characters collapses to a single
// underscore. The result is capped at 128 characters and never empty.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	underscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
