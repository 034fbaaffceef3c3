package ticket

// Status represents the workflow column a ticket sits in
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Statuses returns all statuses in board column order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

// Valid reports whether the status is one of the known workflow states.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Ticket represents a single board item.
//
// CreatedAt and UpdatedAt are epoch milliseconds; zero means the remote
// authority never reported the field.
type Ticket struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	Description string `json:"description"`
	Status      Status `json:"status"`
	CreatedBy   string `json:"createdBy,omitempty"`
	UpdatedBy   string `json:"updatedBy,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
	UpdatedAt   int64  `json:"updatedAt,omitempty"`
}

// Patch describes a partial update to a ticket. Nil fields are left
// untouched by the remote authority.
type Patch struct {
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Merge combines an existing ticket with a newer version of the same
// ticket. Fields present on the newer version win; absent (zero) fields
// retain the existing value. ID and ProjectID never change once set.
func Merge(old, incoming Ticket) Ticket {
	merged := old

	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if incoming.Status != "" {
		merged.Status = incoming.Status
	}
	if incoming.CreatedBy != "" {
		merged.CreatedBy = incoming.CreatedBy
	}
	if incoming.UpdatedBy != "" {
		merged.UpdatedBy = incoming.UpdatedBy
	}
	if incoming.CreatedAt != 0 {
		merged.CreatedAt = incoming.CreatedAt
	}
	if incoming.UpdatedAt != 0 {
		merged.UpdatedAt = incoming.UpdatedAt
	}

	if merged.ID == "" {
		merged.ID = incoming.ID
	}
	if merged.ProjectID == "" {
		merged.ProjectID = incoming.ProjectID
	}

	return merged
}
