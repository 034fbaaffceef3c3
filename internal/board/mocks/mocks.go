// Package mocks provides testify mocks for the board session's
// collaborator interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rpggio/boardsync/internal/domain/ticket"
)

// Gateway is a mock for board.Gateway.
type Gateway struct {
	mock.Mock
}

func (m *Gateway) Create(ctx context.Context, projectID, description string) (ticket.Ticket, error) {
	args := m.Called(ctx, projectID, description)
	return args.Get(0).(ticket.Ticket), args.Error(1)
}

func (m *Gateway) Update(ctx context.Context, id string, patch ticket.Patch) (ticket.Ticket, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(ticket.Ticket), args.Error(1)
}

func (m *Gateway) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Gateway) List(ctx context.Context, projectID string) ([]ticket.Ticket, error) {
	args := m.Called(ctx, projectID)
	if tickets, ok := args.Get(0).([]ticket.Ticket); ok {
		return tickets, args.Error(1)
	}
	return nil, args.Error(1)
}

// PushChannel is a mock for board.PushChannel.
type PushChannel struct {
	mock.Mock
}

func (m *PushChannel) JoinProject(projectID string) {
	m.Called(projectID)
}

func (m *PushChannel) LeaveProject(projectID string) {
	m.Called(projectID)
}

// SnapshotCache is a mock for board.SnapshotCache.
type SnapshotCache struct {
	mock.Mock
}

func (m *SnapshotCache) SaveSnapshot(projectID string, tickets []ticket.Ticket) error {
	args := m.Called(projectID, tickets)
	return args.Error(0)
}

func (m *SnapshotCache) LoadSnapshot(projectID string) ([]ticket.Ticket, error) {
	args := m.Called(projectID)
	if tickets, ok := args.Get(0).([]ticket.Ticket); ok {
		return tickets, args.Error(1)
	}
	return nil, args.Error(1)
}
