package models

// GraphNode is a note as seen by the graph view. Weight is in + out degree.
type GraphNode struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Path   string `json:"path,omitempty"`
	Weight int    `json:"weight"`
}

// GraphEdge is a directed link in the graph view.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphData is the node/edge set returned to visualisations.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// TagCount is a tag with the number of live notes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
