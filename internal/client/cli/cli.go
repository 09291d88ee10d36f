// Package cli is the interactive terminal front end of the Lockify client.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"lockify/internal/client"

	"golang.org/x/term"
)

const (
	ModeLogin    = "login"
	ModeRegister = "register"
)

var errQuit = errors.New("quit")

// PasswordReader reads a secret without echoing it.
type PasswordReader func(prompt string) (string, error)

type App struct {
	client   *client.Client
	in       *bufio.Scanner
	out      io.Writer
	mode     string
	password PasswordReader
	timeout  time.Duration
}

func New(c *client.Client, in io.Reader, out io.Writer, password PasswordReader) *App {
	a := &App{
		client:  c,
		in:      bufio.NewScanner(in),
		out:     out,
		mode:    ModeLogin,
		timeout: 15 * time.Second,
	}

	a.password = password
	if a.password == nil {
		a.password = a.readLine
	}

	return a
}

// TerminalPassword reads from the controlling terminal with echo off.
func TerminalPassword(out io.Writer) PasswordReader {
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)

		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}

		return string(b), nil
	}
}

// IsTerminal reports whether stdin is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (a *App) Mode() string {
	return a.mode
}

// Run reads commands until EOF or quit.
func (a *App) Run(ctx context.Context) error {
	a.greet()

	for {
		fmt.Fprint(a.out, a.prompt())

		if !a.in.Scan() {
			return a.in.Err()
		}

		line := strings.TrimSpace(a.in.Text())
		if line == "" {
			continue
		}

		if err := a.Exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}

			fmt.Fprintf(a.out, "error: %s\n", describe(err))
		}
	}
}

// Exec runs one command line.
func (a *App) Exec(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	cmd, args := args[0], args[1:]

	switch cmd {
	case "quit", "exit":
		return errQuit
	case "help":
		a.help()
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.client.Session().SignedIn() {
		return a.execSignedIn(ctx, cmd, args)
	}

	return a.execSignedOut(ctx, cmd, args)
}

func (a *App) execSignedOut(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "mode":
		if a.mode == ModeLogin {
			a.mode = ModeRegister
		} else {
			a.mode = ModeLogin
		}
		fmt.Fprintf(a.out, "switched to %s\n", a.mode)

		return nil
	case "verify":
		if len(args) != 1 {
			return errors.New("usage: verify <token>")
		}
		if err := a.client.Verify(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "email verified, you can log in now")

		return nil
	case "resend":
		if len(args) != 1 {
			return errors.New("usage: resend <email>")
		}
		if err := a.client.ResendVerification(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "verification email sent")

		return nil
	}

	if cmd != a.mode {
		return fmt.Errorf("unknown command %q in %s mode (type help)", cmd, a.mode)
	}

	switch a.mode {
	case ModeLogin:
		if len(args) != 1 {
			return errors.New("usage: login <email>")
		}

		pass, err := a.password("password: ")
		if err != nil {
			return err
		}

		sess, err := a.client.Login(ctx, args[0], pass)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "welcome, %s\n", sess.User.FirstName)
	case ModeRegister:
		if len(args) != 3 {
			return errors.New("usage: register <firstName> <email> <male|female|other>")
		}

		pass, err := a.password("password: ")
		if err != nil {
			return err
		}

		acc, err := a.client.Register(ctx, args[0], args[1], pass, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "account %s created, check your inbox for the verification link\n", acc.Email)

		a.mode = ModeLogin
	}

	return nil
}

func (a *App) execSignedIn(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "whoami":
		u := a.client.Session().User
		fmt.Fprintf(a.out, "%s <%s>\n", u.FirstName, u.Email)
	case "list":
		entries, err := a.client.List(ctx)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Fprintln(a.out, "no saved passwords")
			return nil
		}

		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tURL\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.URL, e.Description)
		}

		return tw.Flush()
	case "get":
		if len(args) != 1 {
			return errors.New("usage: get <id>")
		}

		e, err := a.client.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "url: %s\npassword: %s\ndescription: %s\n", e.URL, e.Password, e.Description)
	case "add", "update":
		return a.saveEntry(ctx, cmd, args)
	case "delete":
		if len(args) != 1 {
			return errors.New("usage: delete <id>")
		}
		if err := a.client.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "deleted")
	case "delete-all":
		n, err := a.client.DeleteAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted %d entries\n", n)
	case "delete-account":
		if err := a.client.DeleteAccount(ctx); err != nil {
			return err
		}
		a.mode = ModeLogin
		fmt.Fprintln(a.out, "account deleted")
	case "logout":
		if err := a.client.Logout(); err != nil {
			return err
		}
		a.mode = ModeLogin
		fmt.Fprintln(a.out, "signed out")
	default:
		return fmt.Errorf("unknown command %q (type help)", cmd)
	}

	return nil
}

// saveEntry handles "add <url> [description...]" and "update <id> <url> [description...]".
func (a *App) saveEntry(ctx context.Context, cmd string, args []string) error {
	var id string

	if cmd == "update" {
		if len(args) < 2 {
			return errors.New("usage: update <id> <url> [description]")
		}
		id, args = args[0], args[1:]
	} else if len(args) < 1 {
		return errors.New("usage: add <url> [description]")
	}

	pass, err := a.password("site password: ")
	if err != nil {
		return err
	}

	in := client.EntryInput{
		URL:         args[0],
		Password:    pass,
		Description: strings.Join(args[1:], " "),
	}

	if cmd == "update" {
		e, err := a.client.Update(ctx, id, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "updated %s\n", e.ID)

		return nil
	}

	e, err := a.client.Add(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved as %s\n", e.ID)

	return nil
}

func (a *App) readLine(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)

	if !a.in.Scan() {
		if err := a.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}

	return strings.TrimSpace(a.in.Text()), nil
}

func (a *App) prompt() string {
	if s := a.client.Session(); s.SignedIn() {
		return s.User.Email + "> "
	}

	return a.mode + "> "
}

func (a *App) greet() {
	if s := a.client.Session(); s.SignedIn() {
		fmt.Fprintf(a.out, "signed in as %s\n", s.User.Email)
		return
	}

	fmt.Fprintln(a.out, "not signed in, type help for commands")
}

func (a *App) help() {
	if a.client.Session().SignedIn() {
		fmt.Fprintln(a.out, `commands:
  list                              list saved passwords
  get <id>                          show one entry
  add <url> [description]           save a password
  update <id> <url> [description]   replace an entry
  delete <id>                       delete an entry
  delete-all                        delete every entry
  delete-account                    delete the account and its entries
  whoami | logout | quit`)
		return
	}

	fmt.Fprintf(a.out, `commands (%s mode):
  mode                                         toggle between login and register
  login <email>                                sign in
  register <firstName> <email> <gender>        create an account
  verify <token>                               confirm the email address
  resend <email>                               send a new verification link
  quit
`, a.mode)
}

func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	if errors.Is(err, client.ErrNotSignedIn) {
		return "session expired, please log in again"
	}

	return err.Error()
}
