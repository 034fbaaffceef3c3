// Package gateway issues mutations against the remote authority and
// normalizes its heterogeneous response shapes into the entity model.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rpggio/boardsync/internal/domain/project"
	"github.com/rpggio/boardsync/internal/domain/ticket"
)

// DefaultTimeout bounds every gateway call.
const DefaultTimeout = 10 * time.Second

// Broadcaster is the push channel's outbound path. Mutations notify it
// best-effort so other clients on the same project receive the event; a
// failed or dropped emit never fails the local operation.
type Broadcaster interface {
	Emit(event string, payload any)
}

// TicketBroadcast is the outbound ticketUpdate payload.
type TicketBroadcast struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"projectId,omitempty"`
	Description string        `json:"description,omitempty"`
	Status      ticket.Status `json:"status,omitempty"`
	UpdatedBy   string        `json:"updatedBy,omitempty"`
	UpdatedAt   int64         `json:"updatedAt,omitempty"`
	Deleted     bool          `json:"deleted,omitempty"`
	Type        string        `json:"type"`
}

// Options configures optional client collaborators.
type Options struct {
	// Timeout bounds each request; DefaultTimeout when zero.
	Timeout time.Duration
	// Broadcaster receives best-effort outbound events after successful
	// mutations. May be nil.
	Broadcaster Broadcaster
	// OnUnauthorized runs when the remote authority returns 401, before
	// ErrUnauthorized is returned. May be nil.
	OnUnauthorized func()
	Logger         *slog.Logger
}

// Client talks to the remote authority's REST surface.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	token          func() string
	validate       *validator.Validate
	broadcaster    Broadcaster
	onUnauthorized func()
	logger         *slog.Logger
}

// NewClient creates a gateway client. token supplies the current bearer
// credential on every call; an empty return sends no Authorization header.
func NewClient(baseURL string, token func() string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		token:          token,
		validate:       validator.New(),
		broadcaster:    opts.Broadcaster,
		onUnauthorized: opts.OnUnauthorized,
		logger:         logger,
	}
}

type createTicketRequest struct {
	ProjectID   string        `json:"projectId" validate:"required"`
	Description string        `json:"description" validate:"required"`
	Status      ticket.Status `json:"status" validate:"oneof=todo in-progress done"`
}

type ticketEnvelope struct {
	Data rawTicket `json:"data"`
}

type ticketListEnvelope struct {
	Data []rawTicket `json:"data"`
}

// Create creates a ticket in the given project. The description must be
// non-empty after trimming; violations fail before any network call.
func (c *Client) Create(ctx context.Context, projectID, description string) (ticket.Ticket, error) {
	req := createTicketRequest{
		ProjectID:   strings.TrimSpace(projectID),
		Description: strings.TrimSpace(description),
		Status:      ticket.StatusTodo,
	}
	if err := c.validateStruct(req); err != nil {
		return ticket.Ticket{}, err
	}

	var env ticketEnvelope
	if err := c.do(ctx, "create", http.MethodPost, "/ticket/create", nil, req, &env); err != nil {
		return ticket.Ticket{}, err
	}

	created := normalizeTicket(env.Data)
	if created.ID == "" {
		return ticket.Ticket{}, &RemoteError{Status: http.StatusOK, Message: "created ticket missing id"}
	}
	if created.ProjectID == "" {
		created.ProjectID = req.ProjectID
	}

	c.emit(TicketBroadcast{
		ID:          created.ID,
		ProjectID:   created.ProjectID,
		Description: created.Description,
		Status:      created.Status,
		Type:        "created",
	})
	return created, nil
}

// Update applies a partial update and returns the authoritative merged
// ticket as the remote side reports it; the remote may set fields (such as
// updatedBy and updatedAt) the request never carried.
func (c *Client) Update(ctx context.Context, id string, patch ticket.Patch) (ticket.Ticket, error) {
	if strings.TrimSpace(id) == "" {
		return ticket.Ticket{}, &ValidationError{Field: "id", Message: "ticket id is required"}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return ticket.Ticket{}, &ValidationError{Field: "status", Message: fmt.Sprintf("invalid status: %s", *patch.Status)}
	}

	var env ticketEnvelope
	if err := c.do(ctx, "update", http.MethodPut, "/ticket/update/"+url.PathEscape(id), nil, patch, &env); err != nil {
		return ticket.Ticket{}, err
	}

	updated := normalizeTicket(env.Data)
	if updated.ID == "" {
		updated.ID = id
	}

	broadcast := TicketBroadcast{
		ID:        updated.ID,
		ProjectID: updated.ProjectID,
		UpdatedBy: updated.UpdatedBy,
		UpdatedAt: updated.UpdatedAt,
		Type:      "updated",
	}
	if patch.Description != nil {
		broadcast.Description = *patch.Description
	}
	if patch.Status != nil {
		broadcast.Status = *patch.Status
	}
	c.emit(broadcast)
	return updated, nil
}

// Delete removes a ticket. A remote not-found is treated as a successful
// no-op: from the caller's perspective the ticket is gone either way.
func (c *Client) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "id", Message: "ticket id is required"}
	}

	err := c.do(ctx, "delete", http.MethodDelete, "/ticket/delete/"+url.PathEscape(id), nil, nil, nil)
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound {
		c.logger.Debug("delete target already gone", "id", id)
		err = nil
	}
	if err != nil {
		return err
	}

	c.emit(TicketBroadcast{ID: id, Deleted: true, Type: "deleted"})
	return nil
}

// List fetches the full ordered ticket collection for a project.
func (c *Client) List(ctx context.Context, projectID string) ([]ticket.Ticket, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, &ValidationError{Field: "projectId", Message: "project id is required"}
	}

	query := url.Values{"projectId": {projectID}}
	var env ticketListEnvelope
	if err := c.do(ctx, "list", http.MethodGet, "/ticket/list", query, nil, &env); err != nil {
		return nil, err
	}
	return normalizeTickets(env.Data), nil
}

// ListProjects fetches all projects visible to the current credential.
func (c *Client) ListProjects(ctx context.Context) (project.ListResult, error) {
	var result project.ListResult
	if err := c.do(ctx, "listProjects", http.MethodGet, "/project/list", nil, nil, &result); err != nil {
		return project.ListResult{}, err
	}
	return result, nil
}

type createProjectRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateProject creates a new project board.
func (c *Client) CreateProject(ctx context.Context, name string) (project.Project, error) {
	req := createProjectRequest{Name: strings.TrimSpace(name)}
	if err := c.validateStruct(req); err != nil {
		return project.Project{}, err
	}

	var created project.Project
	if err := c.do(ctx, "createProject", http.MethodPost, "/project/create", nil, req, &created); err != nil {
		return project.Project{}, err
	}
	return created, nil
}

func (c *Client) validateStruct(req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{
			Field:   strings.ToLower(fe.Field()[:1]) + fe.Field()[1:],
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		}
	}
	return &ValidationError{Field: "request", Message: err.Error()}
}

type remoteFailure struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do performs one HTTP exchange and maps the response onto the gateway
// error taxonomy.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("remote authority rejected credential", "op", op)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrUnauthorized
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure remoteFailure
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		message := failure.Message
		if message == "" {
			message = failure.Error
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &RemoteError{Status: resp.StatusCode, Message: message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &RemoteError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed %s response: %v", op, err)}
		}
	}
	return nil
}

func (c *Client) emit(payload TicketBroadcast) {
	if c.broadcaster == nil {
		return
	}
	c.broadcaster.Emit("ticketUpdate", payload)
}
