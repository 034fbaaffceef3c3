package functional_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/boardsync/internal/board"
	"github.com/rpggio/boardsync/internal/domain/notification"
	"github.com/rpggio/boardsync/internal/domain/ticket"
	"github.com/rpggio/boardsync/internal/gateway"
	"github.com/rpggio/boardsync/internal/push"
	"github.com/rpggio/boardsync/internal/testserver"
)

type client struct {
	session *board.Session
	adapter *push.Adapter
	gw      *gateway.Client
}

// newClient wires a full client stack (gateway, push adapter, session)
// against the test authority, the same way cmd/boardsync does.
func newClient(t *testing.T, ts *testserver.TestServer, user string, pollInterval time.Duration) *client {
	t.Helper()

	token := ts.MintToken(t, user)
	tokenFn := func() string { return token }

	var session *board.Session
	adapter := push.NewAdapter(ts.WSURL(), tokenFn, push.Handlers{
		OnCreated: func(tk ticket.Ticket) { session.HandleTicketCreated(tk) },
		OnUpdated: func(tk ticket.Ticket) { session.HandleTicketUpdated(tk) },
		OnDeleted: func(id string) { session.HandleTicketDeleted(id) },
	}, nil)

	gw := gateway.NewClient(ts.APIURL(), tokenFn, gateway.Options{Broadcaster: adapter})

	session = board.NewSession(board.Config{
		Gateway:      gw,
		Push:         adapter,
		PollInterval: pollInterval,
	})

	adapter.Connect(context.Background())
	t.Cleanup(adapter.Close)
	require.Eventually(t, func() bool {
		return adapter.State() == push.StateConnected
	}, 3*time.Second, 10*time.Millisecond)

	return &client{session: session, adapter: adapter, gw: gw}
}

// enterAndJoin binds the client to a project and waits until both the
// initial fetch and the room subscription have landed.
func enterAndJoin(t *testing.T, ts *testserver.TestServer, c *client, projectID string, count, room int) {
	t.Helper()
	c.session.EnterProject(context.Background(), projectID)
	c.waitForCount(t, projectID, count)
	require.Eventually(t, func() bool {
		return ts.RoomSize(projectID) >= room
	}, 3*time.Second, 10*time.Millisecond)
}

func (c *client) waitForCount(t *testing.T, projectID string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.session.Store().Snapshot(projectID).Len() == want
	}, 3*time.Second, 10*time.Millisecond)
}

func TestBoard_CreateFlowsToOtherClient(t *testing.T) {
	ts := testserver.New(t)
	projectID := ts.SeedProject("Alpha")

	alice := newClient(t, ts, "alice", time.Hour)
	bob := newClient(t, ts, "bob", time.Hour)

	enterAndJoin(t, ts, alice, projectID, 0, 1)
	enterAndJoin(t, ts, bob, projectID, 0, 2)

	created, err := alice.session.CreateTicket(context.Background(), projectID, "fix bug")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, ticket.StatusTodo, created.Status)
	require.Equal(t, "alice", created.CreatedBy)

	// Alice sees her confirmed ticket under Todo.
	require.Len(t, alice.session.Snapshot().Group(ticket.StatusTodo), 1)

	// Bob receives the push event without any fetch.
	bob.waitForCount(t, projectID, 1)
	bobView := bob.session.Store().Snapshot(projectID)
	require.Equal(t, created.ID, bobView.Group(ticket.StatusTodo)[0].ID)
	require.Equal(t, "fix bug", bobView.Group(ticket.StatusTodo)[0].Description)

	// Both feeds carry exactly one entry for the mutation.
	require.Len(t, alice.session.Feed().List(), 1)
	require.Eventually(t, func() bool {
		return len(bob.session.Feed().List()) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestBoard_StatusMoveFlowsToOtherClient(t *testing.T) {
	ts := testserver.New(t)
	projectID := ts.SeedProject("Alpha")

	alice := newClient(t, ts, "alice", time.Hour)
	bob := newClient(t, ts, "bob", time.Hour)

	enterAndJoin(t, ts, alice, projectID, 0, 1)
	enterAndJoin(t, ts, bob, projectID, 0, 2)

	created, err := alice.session.CreateTicket(context.Background(), projectID, "ship it")
	require.NoError(t, err)
	bob.waitForCount(t, projectID, 1)

	err = alice.session.OnDrop(context.Background(), created.ID, ticket.StatusTodo, ticket.StatusDone, 0, 0)
	require.NoError(t, err)

	aliceView := alice.session.Snapshot()
	require.Empty(t, aliceView.Group(ticket.StatusTodo))
	require.Len(t, aliceView.Group(ticket.StatusDone), 1)
	// The remote confirmation stamped the actor.
	require.Equal(t, "alice", aliceView.Group(ticket.StatusDone)[0].UpdatedBy)

	require.Eventually(t, func() bool {
		view := bob.session.Store().Snapshot(projectID)
		return len(view.Group(ticket.StatusDone)) == 1 && len(view.Group(ticket.StatusTodo)) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestBoard_DeleteFlowsToOtherClient(t *testing.T) {
	ts := testserver.New(t)
	projectID := ts.SeedProject("Alpha")

	alice := newClient(t, ts, "alice", time.Hour)
	bob := newClient(t, ts, "bob", time.Hour)

	enterAndJoin(t, ts, alice, projectID, 0, 1)
	enterAndJoin(t, ts, bob, projectID, 0, 2)

	created, err := alice.session.CreateTicket(context.Background(), projectID, "obsolete")
	require.NoError(t, err)
	bob.waitForCount(t, projectID, 1)

	require.NoError(t, alice.session.DeleteTicket(context.Background(), created.ID))

	require.Equal(t, 0, alice.session.Snapshot().Len())
	bob.waitForCount(t, projectID, 0)

	// Deleting again remains a success: the remote 404 maps to a no-op.
	require.NoError(t, alice.gw.Delete(context.Background(), created.ID))
}

func TestBoard_DriftCorrectionPicksUpMissedMutations(t *testing.T) {
	ts := testserver.New(t)
	projectID := ts.SeedProject("Alpha")

	// Bob polls aggressively; the writer has no push channel at all, so
	// only the drift-correction fetch can surface its mutation.
	bob := newClient(t, ts, "bob", 50*time.Millisecond)
	bob.session.EnterProject(context.Background(), projectID)
	bob.waitForCount(t, projectID, 0)

	writerToken := ts.MintToken(t, "writer")
	writer := gateway.NewClient(ts.APIURL(), func() string { return writerToken }, gateway.Options{})
	_, err := writer.Create(context.Background(), projectID, "out of band")
	require.NoError(t, err)

	bob.waitForCount(t, projectID, 1)
}

func TestBoard_PushEchoDoesNotDuplicateNotifications(t *testing.T) {
	ts := testserver.New(t)
	projectID := ts.SeedProject("Alpha")

	alice := newClient(t, ts, "alice", time.Hour)
	alice.session.EnterProject(context.Background(), projectID)
	alice.waitForCount(t, projectID, 0)

	created, err := alice.session.CreateTicket(context.Background(), projectID, "once only")
	require.NoError(t, err)

	// Simulate the echo of Alice's own mutation arriving over push.
	alice.session.HandleTicketCreated(ticket.Ticket{
		ID: created.ID, ProjectID: projectID, Description: "once only", Status: ticket.StatusTodo,
	})

	require.Len(t, alice.session.Feed().List(), 1)
	require.Equal(t, 1, alice.session.Snapshot().Len())
	require.Equal(t,
		notification.DeriveID(notification.KindCreated, created.ID),
		alice.session.Feed().List()[0].ID,
	)
}

func TestBoard_RejectsInvalidCredential(t *testing.T) {
	ts := testserver.New(t)
	ts.SeedProject("Alpha")

	var invalidated bool
	gw := gateway.NewClient(ts.APIURL(), func() string { return "garbage" }, gateway.Options{
		OnUnauthorized: func() { invalidated = true },
	})

	_, err := gw.ListProjects(context.Background())
	require.ErrorIs(t, err, gateway.ErrUnauthorized)
	require.True(t, invalidated)
}

func TestBoard_ProjectLifecycle(t *testing.T) {
	ts := testserver.New(t)

	token := ts.MintToken(t, "alice")
	gw := gateway.NewClient(ts.APIURL(), func() string { return token }, gateway.Options{})

	created, err := gw.CreateProject(context.Background(), "Beta")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	listed, err := gw.ListProjects(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, listed.Count)
	require.Equal(t, "Beta", listed.List[0].Name)
}
