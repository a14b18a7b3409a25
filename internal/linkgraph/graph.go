package linkgraph

import (
	"context"
	"fmt"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// GraphQuery selects the part of a workspace graph to return. Without a
// Center the whole graph is returned; with one, only notes within Depth
// undirected hops of it.
type GraphQuery struct {
	WorkspaceID    string `json:"workspace_id"`
	Center         string `json:"center,omitempty"`
	Depth          int    `json:"depth"`
	IncludeOrphans bool   `json:"include_orphans"`
}

// GraphData builds the node and edge set for q. Node weight is the note's
// in plus out degree across the workspace.
func (ix *Index) GraphData(ctx context.Context, q GraphQuery) (models.GraphData, error) {
	notes, err := ix.store.ListNotes(ctx, q.WorkspaceID, false)
	if err != nil {
		return models.GraphData{}, fmt.Errorf("linkgraph: graph notes: %w", err)
	}
	links, err := ix.store.WorkspaceEdges(ctx, q.WorkspaceID)
	if err != nil {
		return models.GraphData{}, fmt.Errorf("linkgraph: graph edges: %w", err)
	}

	nodes := make(map[string]models.Note, len(notes))
	for _, n := range notes {
		nodes[n.ID] = n
	}
	forward := make(map[string][]string)
	backward := make(map[string][]string)
	degree := make(map[string]int)
	for _, l := range links {
		forward[l.SourceNoteID] = append(forward[l.SourceNoteID], l.TargetNoteID)
		backward[l.TargetNoteID] = append(backward[l.TargetNoteID], l.SourceNoteID)
		degree[l.SourceNoteID]++
		degree[l.TargetNoteID]++
	}

	var keep map[string]bool
	if q.Center != "" {
		if _, ok := nodes[q.Center]; !ok {
			return models.GraphData{}, fmt.Errorf("linkgraph: center note %s: %w", q.Center, apperr.ErrNotFound)
		}
		keep = neighborhood(q.Center, max(q.Depth, 0), forward, backward)
	} else {
		keep = make(map[string]bool, len(nodes))
		for id := range nodes {
			if q.IncludeOrphans || degree[id] > 0 {
				keep[id] = true
			}
		}
	}

	out := models.GraphData{Nodes: []models.GraphNode{}, Edges: []models.GraphEdge{}}
	for _, n := range notes {
		if !keep[n.ID] {
			continue
		}
		out.Nodes = append(out.Nodes, models.GraphNode{
			ID:     n.ID,
			Title:  n.Title,
			Path:   n.FilePath,
			Weight: degree[n.ID],
		})
	}
	for _, l := range links {
		if keep[l.SourceNoteID] && keep[l.TargetNoteID] {
			out.Edges = append(out.Edges, models.GraphEdge{Source: l.SourceNoteID, Target: l.TargetNoteID})
		}
	}
	return out, nil
}

// neighborhood walks links in both directions from start, at most depth
// hops, and returns the visited set.
func neighborhood(start string, depth int, forward, backward map[string][]string) map[string]bool {
	visited := map[string]bool{start: true}
	frontier := []string{start}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, cur := range frontier {
			for _, list := range [][]string{forward[cur], backward[cur]} {
				for _, nb := range list {
					if !visited[nb] {
						visited[nb] = true
						next = append(next, nb)
					}
				}
			}
		}
		frontier = next
	}
	return visited
}
