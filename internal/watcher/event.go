package watcher

// Kind classifies a debounced change.
type Kind int

const (
	Created Kind = iota + 1
	Updated
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// MarshalText lets events serialise with readable kinds.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one debounced change under a watched workspace. Path is
// workspace-relative with forward slashes.
type Event struct {
	WorkspaceID string `json:"workspace_id"`
	Kind        Kind   `json:"kind"`
	Path        string `json:"path"`
}

// merge folds next into a pending change for the same path.
func merge(prev, next Kind) Kind {
	switch {
	case next == Deleted:
		return Deleted
	case prev == Created && next == Updated:
		return Created
	case next == Created && (prev == Deleted || prev == Updated):
		return Updated
	default:
		return next
	}
}
