package watcher

import (
	"path"
	"strings"
)

var ignoredSuffixes = []string{"~", ".swp", ".swx", ".swo", ".tmp", ".temp", ".bak"}

var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
	".idea":        true,
}

// Ignored reports whether a workspace-relative path should never produce an
// event: editor swap and backup files, dotfiles, and anything inside tool
// directories.
func Ignored(rel string) bool {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if ignoredDirs[part] {
			return true
		}
	}
	base := path.Base(rel)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, s := range ignoredSuffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}
	return false
}
