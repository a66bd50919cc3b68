package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"fieldops.dev/punchclock/config"
	"fieldops.dev/punchclock/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "manage the stored session token",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "store a token issued by the session manager (read from stdin)",
				Action: Login,
			},
			{
				Name:   "logout",
				Usage:  "remove the stored token",
				Action: Logout,
			},
		},
	}
}

func Login(ctx context.Context, cmd *cli.Command) error {
	l := log.FromContext(ctx)

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	token, err := readToken(os.Stdin, cmd.Root().Writer)
	if err != nil {
		return err
	}

	store := FileToken{Path: cfg.Session.TokenFile}
	if err := store.Save(token); err != nil {
		l.Error("failed to store token", "err", err, "path", store.Path)
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, "Logged in.")
	return nil
}

func Logout(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := (FileToken{Path: cfg.Session.TokenFile}).Clear(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.Root().Writer, "Logged out.")
	return nil
}

func readToken(in *os.File, out io.Writer) (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		fmt.Fprint(out, "Token: ")
		raw, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	return scanToken(in)
}

func scanToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
