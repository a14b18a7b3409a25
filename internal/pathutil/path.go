// Package pathutil relates workspace-relative and absolute note paths.
package pathutil

import (
	"path"
	"path/filepath"
	"strings"
)

// MarkdownExt is the only extension treated as a note.
const MarkdownExt = ".md"

// Normalize turns candidate into a workspace-relative path. Leading and
// trailing slashes are trimmed from both inputs; when the candidate starts
// with the root the root prefix is stripped. Any other candidate is returned
// trimmed but otherwise unchanged, so callers mixing conventions still get a
// usable path.
func Normalize(candidate, root string) string {
	c := strings.Trim(filepath.ToSlash(candidate), "/")
	r := strings.Trim(filepath.ToSlash(root), "/")
	if r == "" {
		return c
	}
	if c == r {
		return ""
	}
	if strings.HasPrefix(c, r+"/") {
		return c[len(r)+1:]
	}
	return c
}

// Abs joins a workspace-relative path onto the workspace root.
func Abs(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// Rel returns abs relative to root using forward slashes. ok is false when
// abs is outside root.
func Rel(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return rel, true
}

// IsMarkdown reports whether name has the note extension (case-insensitive).
func IsMarkdown(name string) bool {
	return strings.EqualFold(filepath.Ext(name), MarkdownExt)
}

// IsHidden reports whether the final element of name is a dotfile.
func IsHidden(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// Stem returns the file name without directory and extension.
func Stem(p string) string {
	base := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(base, path.Ext(base))
}

// InDir reports whether the relative path rel is dir itself or lives below
// it. The root "" contains everything.
func InDir(rel, dir string) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	return dir == "" || rel == dir || strings.HasPrefix(rel, dir+"/")
}
