package project

// Project represents a board that groups tickets.
//
// The remote authority identifies projects by `_id`; CreatedAt is the raw
// timestamp string as returned by the remote side.
type Project struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// ListResult is the remote authority's project listing shape.
type ListResult struct {
	List  []Project `json:"list"`
	Count int       `json:"count"`
}
