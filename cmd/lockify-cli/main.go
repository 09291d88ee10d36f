package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lockify/internal/client"
	"lockify/internal/client/cli"
)

func main() {
	var server, sessionPath string

	flag.StringVar(&server, "server", envOr("LOCKIFY_SERVER", "http://localhost:8080"), "Lockify API address")
	flag.StringVar(&sessionPath, "session", os.Getenv("LOCKIFY_SESSION"), "path to the session file")
	flag.Parse()

	if sessionPath == "" {
		p, err := client.DefaultSessionPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		sessionPath = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := client.NewSessionStore(sessionPath)
	if _, err := sessions.Hydrate(); err != nil {
		fmt.Fprintf(os.Stderr, "discarding unreadable session: %v\n", err)
		_ = sessions.Clear()
	}

	var password cli.PasswordReader
	if cli.IsTerminal() {
		password = cli.TerminalPassword(os.Stdout)
	}

	app := cli.New(client.New(server, sessions), os.Stdin, os.Stdout, password)

	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
