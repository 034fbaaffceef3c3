package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"

	"github.com/rpggio/boardsync/internal/board"
	"github.com/rpggio/boardsync/internal/config"
	"github.com/rpggio/boardsync/internal/domain/ticket"
	"github.com/rpggio/boardsync/internal/gateway"
	"github.com/rpggio/boardsync/internal/push"
	"github.com/rpggio/boardsync/internal/sqlite"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	db, err := sqlite.New(cfg.State.Path)
	if err != nil {
		logger.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	state := sqlite.NewStateStore(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokenFn := func() string {
		token, err := state.Token()
		if err != nil {
			logger.Warn("token read failed", "error", err)
			return ""
		}
		if token != "" && tokenExpired(token) {
			return ""
		}
		return token
	}

	// The adapter's typed handlers delegate to the session, which is wired
	// just below; events only flow after Connect.
	var session *board.Session
	adapter := push.NewAdapter(cfg.Push.URL, tokenFn, push.Handlers{
		OnCreated: func(t ticket.Ticket) { session.HandleTicketCreated(t) },
		OnUpdated: func(t ticket.Ticket) { session.HandleTicketUpdated(t) },
		OnDeleted: func(id string) { session.HandleTicketDeleted(id) },
	}, logger)

	client := gateway.NewClient(cfg.API.BaseURL, tokenFn, gateway.Options{
		Timeout:     cfg.API.Timeout,
		Broadcaster: adapter,
		OnUnauthorized: func() {
			_ = state.ClearToken()
			fmt.Println("session expired; run 'login <token>' to continue")
		},
		Logger: logger,
	})

	session = board.NewSession(board.Config{
		Gateway:      client,
		Push:         adapter,
		Cache:        state,
		PollInterval: cfg.Sync.PollInterval,
		OnError: func(err error) {
			fmt.Printf("error: %v\n", err)
		},
		Logger: logger,
	})

	adapter.Connect(ctx)
	defer adapter.Close()

	app := &app{
		ctx:     ctx,
		client:  client,
		session: session,
		state:   state,
	}
	app.run()
}

type app struct {
	ctx     context.Context
	client  *gateway.Client
	session *board.Session
	state   *sqlite.StateStore
}

func (a *app) run() {
	fmt.Println("boardsync: type 'help' for commands")

	scanner := bufio.NewScanner(os.Stdin)
	for a.ctx.Err() == nil {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		a.dispatch(fields[0], fields[1:])
	}
}

func (a *app) dispatch(cmd string, args []string) {
	switch cmd {
	case "help":
		fmt.Println(`commands:
  login <token>           store a bearer credential
  logout                  clear the stored credential
  projects                list projects
  new-project <name>      create a project
  open <projectId>        switch the active board
  board                   render the active board
  create <description>    create a ticket on the active board
  move <ticketId> <status>  move a ticket (todo | in-progress | done)
  delete <ticketId>       delete a ticket
  notifs                  show notifications
  read-all                mark all notifications read`)
	case "login":
		if len(args) != 1 {
			fmt.Println("usage: login <token>")
			return
		}
		if err := a.state.SetToken(args[0]); err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println("credential stored")
	case "logout":
		a.session.LeaveProject()
		if err := a.state.ClearToken(); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	case "projects":
		result, err := a.client.ListProjects(a.ctx)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		for _, proj := range result.List {
			fmt.Printf("  %s  %s\n", proj.ID, proj.Name)
		}
		fmt.Printf("%d project(s)\n", result.Count)
	case "new-project":
		if len(args) == 0 {
			fmt.Println("usage: new-project <name>")
			return
		}
		proj, err := a.client.CreateProject(a.ctx, strings.Join(args, " "))
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("created project %s\n", proj.ID)
	case "open":
		if len(args) != 1 {
			fmt.Println("usage: open <projectId>")
			return
		}
		a.session.EnterProject(a.ctx, args[0])
		fmt.Printf("active board: %s\n", args[0])
	case "board":
		a.renderBoard()
	case "create":
		if len(args) == 0 {
			fmt.Println("usage: create <description>")
			return
		}
		projectID := a.session.ActiveProject()
		if projectID == "" {
			fmt.Println("open a project first")
			return
		}
		created, err := a.session.CreateTicket(a.ctx, projectID, strings.Join(args, " "))
		if err != nil {
			return
		}
		fmt.Printf("created ticket %s\n", created.ID)
	case "move":
		a.move(args)
	case "delete":
		if len(args) != 1 {
			fmt.Println("usage: delete <ticketId>")
			return
		}
		if err := a.session.DeleteTicket(a.ctx, args[0]); err == nil {
			fmt.Println("deleted")
		}
	case "notifs":
		for _, n := range a.session.Feed().List() {
			marker := " "
			if !n.Read {
				marker = "*"
			}
			fmt.Printf("%s %s  %s\n", marker, time.UnixMilli(n.Timestamp).Format(time.TimeOnly), n.Message)
		}
		fmt.Printf("%d unread\n", a.session.Feed().UnreadCount())
	case "read-all":
		a.session.Feed().MarkAllRead()
	default:
		fmt.Printf("unknown command %q; type 'help'\n", cmd)
	}
}

// move translates the command into the same drop contract a drag gesture
// uses, so the optimistic-update path is shared.
func (a *app) move(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: move <ticketId> <status>")
		return
	}
	destination := ticket.Status(args[1])
	if !destination.Valid() {
		fmt.Println("status must be one of: todo, in-progress, done")
		return
	}

	snap := a.session.Snapshot()
	for _, status := range ticket.Statuses() {
		for i, item := range snap.Group(status) {
			if item.ID == args[0] {
				_ = a.session.OnDrop(a.ctx, item.ID, status, destination, i, len(snap.Group(destination)))
				return
			}
		}
	}
	fmt.Println("ticket not on the active board")
}

func (a *app) renderBoard() {
	projectID := a.session.ActiveProject()
	if projectID == "" {
		fmt.Println("open a project first")
		return
	}
	if a.session.ConnectionLost() {
		fmt.Println("(connection lost, showing last-known state)")
	}

	snap := a.session.Snapshot()
	for _, status := range ticket.Statuses() {
		fmt.Printf("-- %s --\n", status)
		for _, item := range snap.Group(status) {
			fmt.Printf("  %s  %s\n", item.ID, item.Description)
		}
	}
}

// tokenExpired inspects the credential's exp claim without verifying the
// signature; verification is the remote authority's job.
func tokenExpired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now())
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
