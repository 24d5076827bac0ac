package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Kale254/final/internal/budget"
	"github.com/Kale254/final/internal/config"
	"github.com/Kale254/final/internal/gate"
	"github.com/Kale254/final/internal/identity"
	"github.com/Kale254/final/internal/storeclient"
)

const budgetPath = "/"

const helpText = `Commands:
  signup <email> <password>   create an account and log in
  login <email> <password>    log in
  logout                      log out
  whoami                      show the logged-in user
  list                        show your budget items and total
  add <amount> <label...>     add a budget item
  rm <id>                     remove a budget item
  total                       show your total allocated budget
  refresh                     renew the session and reload items
  help                        show this text
  quit                        leave`

// app is one interactive session: a single identity, its engine and the gate
// in front of the budget screen.
type app struct {
	out     io.Writer
	logger  *slog.Logger
	session *identity.Session
	engine  *budget.Engine
	gate    *gate.Gate

	// pending is the query string of the last login redirect.
	pending string
}

func newApp(cfg *config.Client, resync budget.Resync, logger *slog.Logger, out io.Writer) *app {
	session := identity.New(cfg.AuthURL, identity.WithLogger(logger))
	store := storeclient.New(cfg.StoreURL,
		storeclient.WithTokenSource(session),
		storeclient.WithLogger(logger),
	)

	return &app{
		out:     out,
		logger:  logger,
		session: session,
		engine:  budget.New(store, session, budget.WithLogger(logger), budget.WithResync(resync)),
		gate:    gate.New(session),
	}
}

// run reads commands until EOF, quit or ctx is done.
func (a *app) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(a.out, "Budget tracker. Type 'help' for commands.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := a.exec(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (a *app) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(a.out, helpText)
	case "signup", "login":
		a.authenticate(ctx, cmd, args)
	case "logout":
		a.logout(ctx)
	case "whoami":
		if user := a.session.CurrentUser(); user != nil {
			fmt.Fprintf(a.out, "%s (%s)\n", user.Email, user.ID)
		} else {
			fmt.Fprintln(a.out, "Not logged in.")
		}
	case "refresh":
		a.refresh(ctx)
	case "list", "add", "rm", "total":
		a.budgetCommand(ctx, cmd, args)
	default:
		fmt.Fprintf(a.out, "Unknown command %q. Type 'help' for commands.\n", cmd)
	}
	return false
}

func (a *app) authenticate(ctx context.Context, cmd string, args []string) {
	if len(args) != 2 {
		fmt.Fprintf(a.out, "Usage: %s <email> <password>\n", cmd)
		return
	}

	var err error
	if cmd == "signup" {
		_, err = a.session.Signup(ctx, args[0], args[1])
	} else {
		_, err = a.session.Login(ctx, args[0], args[1])
	}
	if err != nil {
		a.logger.Debug("Authentication failed", "command", cmd, "error", err)
		fmt.Fprintln(a.out, identity.UserMessage(err))
		return
	}

	user := a.session.CurrentUser()
	fmt.Fprintf(a.out, "Logged in as %s.\n", user.Email)

	target := gate.RedirectTarget(a.pending)
	a.pending = ""
	if target == budgetPath {
		a.budgetCommand(ctx, "list", nil)
	}
}

func (a *app) logout(ctx context.Context) {
	ok, err := a.session.Logout(ctx)
	a.engine.Clear()
	switch {
	case !ok:
		fmt.Fprintln(a.out, "Not logged in.")
	case err != nil:
		fmt.Fprintln(a.out, "Logged out locally; the server did not confirm.")
	default:
		fmt.Fprintln(a.out, "Logged out.")
	}
}

func (a *app) refresh(ctx context.Context) {
	user, err := a.session.Refresh(ctx)
	if err != nil {
		fmt.Fprintln(a.out, identity.UserMessage(err))
	}
	if user == nil {
		a.engine.Clear()
		fmt.Fprintln(a.out, "Not logged in.")
		return
	}
	if err := a.engine.Refresh(ctx, user.ID); err != nil {
		fmt.Fprintf(a.out, "Could not load budget items: %v\n", err)
		return
	}
	a.printItems(user.ID)
}

// budgetCommand runs the commands that live behind the gate.
func (a *app) budgetCommand(ctx context.Context, cmd string, args []string) {
	decision := a.gate.Check(budgetPath)
	if !decision.Allowed() {
		a.pending = strings.TrimPrefix(decision.Redirect, gate.LoginPath+"?")
		fmt.Fprintln(a.out, "Please log in or sign up first.")
		return
	}
	userID := decision.User.ID

	if err := a.engine.Sync(ctx); err != nil {
		fmt.Fprintf(a.out, "Could not load budget items: %v\n", err)
	}

	switch cmd {
	case "list":
		a.printItems(userID)
	case "total":
		fmt.Fprintf(a.out, "Total Budget: %s\n", money(a.engine.TotalFor(userID)))
	case "add":
		a.add(ctx, userID, args)
	case "rm":
		if len(args) != 1 {
			fmt.Fprintln(a.out, "Usage: rm <id>")
			return
		}
		if err := a.engine.RemoveItem(ctx, args[0]); err != nil {
			fmt.Fprintf(a.out, "Could not remove %s: %v\n", args[0], err)
			return
		}
		a.printItems(userID)
	}
}

func (a *app) add(ctx context.Context, userID string, args []string) {
	amount := math.NaN()
	label := ""
	if len(args) > 0 {
		if v, err := strconv.ParseFloat(args[0], 64); err == nil {
			amount = v
		}
		label = strings.Join(args[1:], " ")
	}

	_, err := a.engine.AddItem(ctx, label, amount, userID)
	var ve *budget.ValidationError
	switch {
	case errors.As(err, &ve):
		fmt.Fprintln(a.out, ve.Message)
		return
	case errors.Is(err, budget.ErrNotReady):
		fmt.Fprintln(a.out, "Budget items are still loading. Try again.")
		return
	case err != nil:
		fmt.Fprintf(a.out, "Could not add item: %v\n", err)
	}
	a.printItems(userID)
}

func (a *app) printItems(userID string) {
	items := a.engine.Items(userID)
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No budget items yet.")
	}
	for _, item := range items {
		fmt.Fprintf(a.out, "  [%s] %s - Budget: %s\n", item.ID, item.Item, money(item.Budget))
	}
	fmt.Fprintf(a.out, "Total Budget: %s\n", money(a.engine.TotalFor(userID)))
}

// money renders an amount with two decimal places.
func money(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}
