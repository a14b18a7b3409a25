// Package hierarchy answers ancestry questions over the notebook tree.
// Stored data may contain cycles; every walk carries a visited set.
package hierarchy

import (
	"context"
	"errors"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// Source reads notebooks.
type Source interface {
	GetNotebook(ctx context.Context, id string) (models.Notebook, error)
	ChildNotebooks(ctx context.Context, parentID string) ([]models.Notebook, error)
}

// AncestorIDs returns the chain of parent ids of id, nearest first.
// A missing parent ends the walk.
func AncestorIDs(ctx context.Context, src Source, id string) ([]string, error) {
	nb, err := src.GetNotebook(ctx, id)
	if err != nil {
		return nil, err
	}
	visited := map[string]bool{id: true}
	var out []string
	for nb.ParentID != nil {
		pid := *nb.ParentID
		if visited[pid] {
			break
		}
		visited[pid] = true
		out = append(out, pid)

		nb, err = src.GetNotebook(ctx, pid)
		if errors.Is(err, apperr.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DescendantIDs returns every notebook below id in breadth-first order.
// id itself is never included.
func DescendantIDs(ctx context.Context, src Source, id string) ([]string, error) {
	visited := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		kids, err := src.ChildNotebooks(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, k := range kids {
			if visited[k.ID] {
				continue
			}
			visited[k.ID] = true
			out = append(out, k.ID)
			queue = append(queue, k.ID)
		}
	}
	return out, nil
}

// IsDescendant reports whether candidate lies below id.
func IsDescendant(ctx context.Context, src Source, id, candidate string) (bool, error) {
	ids, err := DescendantIDs(ctx, src, id)
	if err != nil {
		return false, err
	}
	for _, d := range ids {
		if d == candidate {
			return true, nil
		}
	}
	return false, nil
}
