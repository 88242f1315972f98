package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context) error
	Show(ctx context.Context, date string) error
	Set(ctx context.Context, o SetOptions) error
	Submit(ctx context.Context, date string) error
	Reset(ctx context.Context, date string) error
	Week(ctx context.Context) error
	Sync(ctx context.Context) error
	Assess(ctx context.Context, args []string) error
	Terms(ctx context.Context, accept bool) error
	Export(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the journal CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The loop exits on scanner EOF or
// when the user types "exit" or "quit".
//
//	today | show [date]  - show a day
//	mood <mood>          - set today's mood
//	reason <reason>      - set today's reason
//	note <text...>       - replace today's notes
//	submit | reset       - seal or clear today
//	week                 - last seven days
//	sync                 - pull recent days and push pending ones
//	assess [answers...]  - weekly self-check
//	terms [accept]       - terms of use
//	export               - download link for the whole journal
//	login [token] | logout
//	exit | quit
//
// Errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("journal %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		rest := strings.Join(args, " ")

		var err error
		switch cmd {
		case "help":
			printlnFn("Available commands: today, show, mood, reason, note, submit, reset, week, sync, assess, terms, export, login, logout, exit")
			if !a.isLoggedIn() {
				printlnFn("Not signed in: entries stay on this device until you login.")
			}

		case "login":
			err = a.Login(ctx, rest)
		case "logout":
			err = a.Logout(ctx)

		case "today":
			err = a.Show(ctx, "")
		case "show":
			err = a.Show(ctx, rest)

		case "mood", "reason":
			if rest == "" {
				printlnFn("Usage:", cmd, "<value>")
				continue
			}
			o := SetOptions{}
			if cmd == "mood" {
				o.Mood = rest
			} else {
				o.Reason = rest
			}
			err = a.Set(ctx, o)
		case "note", "notes":
			err = a.Set(ctx, SetOptions{Notes: &rest})

		case "submit":
			err = a.Submit(ctx, rest)
		case "reset":
			err = a.Reset(ctx, rest)
		case "week":
			err = a.Week(ctx)
		case "sync":
			err = a.Sync(ctx)
		case "assess":
			err = a.Assess(ctx, args)
		case "terms":
			err = a.Terms(ctx, rest == "accept")
		case "export":
			err = a.Export(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}

// Repl runs the interactive loop with the online watcher until ctx is done or
// the user exits.
func (a *App) Repl(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printlnFn("Welcome to the journal (type 'help' for commands)")

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	go a.StartStorageWatcher(ctx)

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
	return nil
}
