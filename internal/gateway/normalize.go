package gateway

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rpggio/boardsync/internal/domain/ticket"
)

// rawTicket mirrors the loose wire shape the remote authority returns.
// Identity and project fields arrive under aliased names depending on the
// endpoint; timestamps arrive as RFC3339 strings or epoch numbers.
type rawTicket struct {
	MongoID     string          `json:"_id"`
	ID          string          `json:"id"`
	ProjectID   string          `json:"projectId"`
	Project     string          `json:"project"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	CreatedBy   string          `json:"createdBy"`
	UpdatedBy   string          `json:"updatedBy"`
	CreatedAt   json.RawMessage `json:"createdAt"`
	UpdatedAt   json.RawMessage `json:"updatedAt"`
}

// normalizeTicket maps every known alias into the canonical entity model.
// Ambiguous shapes stop here; the store only ever sees canonical tickets.
func normalizeTicket(raw rawTicket) ticket.Ticket {
	id := raw.MongoID
	if id == "" {
		id = raw.ID
	}
	projectID := raw.ProjectID
	if projectID == "" {
		projectID = raw.Project
	}

	status := ticket.Status(raw.Status)
	if !status.Valid() {
		status = ticket.StatusTodo
	}

	return ticket.Ticket{
		ID:          id,
		ProjectID:   projectID,
		Description: raw.Description,
		Status:      status,
		CreatedBy:   raw.CreatedBy,
		UpdatedBy:   raw.UpdatedBy,
		CreatedAt:   parseEpochMillis(raw.CreatedAt),
		UpdatedAt:   parseEpochMillis(raw.UpdatedAt),
	}
}

func normalizeTickets(raws []rawTicket) []ticket.Ticket {
	out := make([]ticket.Ticket, len(raws))
	for i, raw := range raws {
		out[i] = normalizeTicket(raw)
	}
	return out
}

// parseEpochMillis accepts an epoch-milliseconds number or an RFC3339
// string and returns epoch milliseconds; zero means absent or unparseable.
func parseEpochMillis(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return 0
		}
		return ts.UnixMilli()
	}

	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return millis
}
