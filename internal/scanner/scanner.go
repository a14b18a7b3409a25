// Package scanner walks a workspace folder into a tree of directories and
// Markdown files.
package scanner

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/pathutil"
)

// MaxDepth caps directory recursion.
const MaxDepth = 64

// JournalDir names folders whose entries are journal pages: dated files
// sort newest first and take their file name as title.
const JournalDir = "Journal"

const journalLayout = "2006-01-02"

// Node is one entry of the scanned tree. Directories carry children.
type Node struct {
	Name     string              `json:"name"`
	Path     string              `json:"path"`
	File     models.FileSnapshot `json:"file"`
	Children []*Node             `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool { return n.File.IsDirectory }

// Tree is the result of a scan. FolderCounts maps a workspace-relative
// directory ("" for the root) to the number of Markdown files beneath it,
// including those in nested folders. Skipped lists the entries that could
// not be read; whatever lives at or below them is unknown for this scan.
type Tree struct {
	Root         *Node                 `json:"root"`
	Files        []models.FileSnapshot `json:"files"`
	Total        int                   `json:"total"`
	FolderCounts map[string]int        `json:"folder_counts"`
	Skipped      []string              `json:"skipped,omitempty"`
}

// Unscanned reports whether rel lies at or below an entry the scan skipped.
func (t *Tree) Unscanned(rel string) bool {
	for _, s := range t.Skipped {
		if pathutil.InDir(rel, s) {
			return true
		}
	}
	return false
}

// Scanner walks workspace roots.
type Scanner struct {
	logger *slog.Logger
}

// New returns a Scanner. A nil logger discards output.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{logger: logger}
}

type walk struct {
	s    *Scanner
	root string
	// ancestors holds the canonical paths of the directories being walked.
	ancestors map[string]bool
	tree      *Tree
}

// Scan walks root. Unreadable entries below the root are skipped; failing to
// read the root itself is an error.
func (s *Scanner) Scan(root string) (*Tree, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanner: stat root %s: %w: %w", root, apperr.ErrExternal, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanner: root %s is not a directory: %w", root, apperr.ErrValidation)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("scanner: read root %s: %w: %w", root, apperr.ErrExternal, err)
	}

	w := &walk{
		s:         s,
		root:      root,
		ancestors: make(map[string]bool),
		tree:      &Tree{FolderCounts: make(map[string]int)},
	}
	rootNode := &Node{
		Name: filepath.Base(root),
		File: models.FileSnapshot{IsDirectory: true, ModifiedAt: info.ModTime()},
	}
	w.dir(rootNode, root, "", 0)
	w.tree.Root = rootNode
	w.tree.Total = len(w.tree.Files)
	return w.tree, nil
}

// dir fills node with the contents of abs and returns the number of
// Markdown files beneath it.
func (w *walk) dir(node *Node, abs, rel string, depth int) int {
	if depth > MaxDepth {
		w.s.logger.Debug("scanner: max depth reached", slog.String("path", rel))
		w.skip(rel)
		return 0
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		w.s.logger.Debug("scanner: resolve dir failed", slog.String("path", rel), slog.String("error", err.Error()))
		w.skip(rel)
		return 0
	}
	// Only a link back to a directory being walked is a cycle. Sibling
	// aliases of the same folder are walked under each of their names.
	if w.ancestors[canonical] {
		w.s.logger.Debug("scanner: symlink cycle", slog.String("path", rel))
		return 0
	}
	w.ancestors[canonical] = true
	defer delete(w.ancestors, canonical)

	entries, err := os.ReadDir(abs)
	if err != nil {
		w.s.logger.Debug("scanner: read dir failed", slog.String("path", rel), slog.String("error", err.Error()))
		w.skip(rel)
		return 0
	}

	var dirs, files []*Node
	count := 0
	for _, e := range entries {
		name := e.Name()
		if pathutil.IsHidden(name) {
			continue
		}
		childAbs := filepath.Join(abs, name)
		childRel := path.Join(rel, name)

		// os.Stat follows symlinks so linked folders are walked too.
		info, err := os.Stat(childAbs)
		if err != nil {
			w.s.logger.Debug("scanner: stat failed", slog.String("path", childRel), slog.String("error", err.Error()))
			w.skip(childRel)
			continue
		}
		snap := models.FileSnapshot{
			Path:        childRel,
			IsDirectory: info.IsDir(),
			Size:        info.Size(),
			ModifiedAt:  info.ModTime(),
		}
		child := &Node{Name: name, Path: childRel, File: snap}

		if info.IsDir() {
			count += w.dir(child, childAbs, childRel, depth+1)
			dirs = append(dirs, child)
			continue
		}
		if !pathutil.IsMarkdown(name) {
			continue
		}
		files = append(files, child)
		count++
		w.tree.Files = append(w.tree.Files, snap)
	}

	sortByName(dirs)
	if isJournalDir(rel) {
		sortJournal(files)
	} else {
		sortByName(files)
	}
	node.Children = append(dirs, files...)
	w.tree.FolderCounts[rel] = count
	return count
}

func (w *walk) skip(rel string) {
	w.tree.Skipped = append(w.tree.Skipped, rel)
}

func sortByName(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
}

// sortJournal orders dated entries newest first, then undated ones
// alphabetically.
func sortJournal(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		di, okI := journalDate(nodes[i].Name)
		dj, okJ := journalDate(nodes[j].Name)
		switch {
		case okI && okJ:
			if di.Equal(dj) {
				return nodes[i].Name < nodes[j].Name
			}
			return di.After(dj)
		case okI:
			return true
		case okJ:
			return false
		default:
			return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
		}
	})
}

func journalDate(name string) (time.Time, bool) {
	t, err := time.Parse(journalLayout, pathutil.Stem(name))
	return t, err == nil
}

func isJournalDir(rel string) bool {
	return rel != "" && path.Base(rel) == JournalDir
}

// IsJournal reports whether rel is a page directly inside a folder named
// Journal, at any depth.
func IsJournal(rel string) bool {
	return isJournalDir(path.Dir(rel))
}
