package broker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"fieldops.dev/punchclock/punch/models"
	"golang.org/x/term"
)

// StaticPermissions answers from configuration, e.g. on a kiosk where
// access was granted once at install time.
type StaticPermissions map[models.Resource]bool

func GrantAll() StaticPermissions {
	return StaticPermissions{
		models.ResourceLocation: true,
		models.ResourceCamera:   true,
	}
}

func (s StaticPermissions) Request(ctx context.Context, resource models.Resource) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s[resource], nil
}

var prompts = map[models.Resource]struct{ title, message string }{
	models.ResourceLocation: {"Location Permission", "This app needs access to your location."},
	models.ResourceCamera:   {"Camera Permission", "This app needs access to your camera."},
}

var ErrNotInteractive = errors.New("no terminal to ask for permission")

// PromptPermissions asks on a terminal every time. Nothing is
// remembered, so a refusal only affects the current attempt. Answers
// are read by a single goroutine; a prompt abandoned through its context
// leaves the next answer to the next prompt.
type PromptPermissions struct {
	in  io.Reader
	out io.Writer
	// reports whether a human is on the other end of in
	interactive func() bool

	once  sync.Once
	lines chan string
	// set before lines is closed
	readErr error
}

func NewPromptPermissions(in io.Reader, out io.Writer) *PromptPermissions {
	return &PromptPermissions{
		in:          in,
		out:         out,
		interactive: func() bool { return true },
		lines:       make(chan string),
	}
}

func (p *PromptPermissions) startReader() {
	p.once.Do(func() {
		go func() {
			r := bufio.NewReader(p.in)
			for {
				line, err := r.ReadString('\n')
				if line != "" {
					p.lines <- line
				}
				if err != nil {
					p.readErr = err
					close(p.lines)
					return
				}
			}
		}()
	})
}

// NewTerminalPermissions prompts on stdin/stdout and denies outright
// when stdin is not a terminal.
func NewTerminalPermissions() *PromptPermissions {
	p := NewPromptPermissions(os.Stdin, os.Stdout)
	p.interactive = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	return p
}

func (p *PromptPermissions) Request(ctx context.Context, resource models.Resource) (bool, error) {
	if !p.interactive() {
		return false, ErrNotInteractive
	}

	prompt, ok := prompts[resource]
	if !ok {
		prompt.title = strings.ToUpper(string(resource[:1])) + string(resource[1:]) + " Permission"
		prompt.message = fmt.Sprintf("This app needs access to your %s.", resource)
	}
	fmt.Fprintf(p.out, "%s: %s Allow? [y/N] ", prompt.title, prompt.message)

	p.startReader()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return false, ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			if errors.Is(p.readErr, io.EOF) {
				return false, nil
			}
			return false, p.readErr
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes", "ok":
			return true, nil
		}
		return false, nil
	}
}
