// Package session supplies the bearer token HR requests are made with.
// Tokens are opaque here: they are stored and forwarded, never parsed,
// validated or refreshed.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrNoToken = errors.New("no session token; run `punchclock session login`")

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a token fixed at startup, usually from configuration.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// FileToken reads the token from a file on every call, so a session
// manager can swap it without restarting anything.
type FileToken struct {
	Path string
}

func (f FileToken) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (f FileToken) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoToken
	}

	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	// write then rename so readers never see half a token
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".token-*")
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.WriteString(token + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.Path)
}

// Clear removes the token. A missing file is not an error.
func (f FileToken) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

// FromConfig prefers an explicit token over the token file.
func FromConfig(token, path string) TokenSource {
	if token != "" {
		return StaticToken(token)
	}
	return FileToken{Path: path}
}
