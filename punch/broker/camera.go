package broker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"fieldops.dev/punchclock/punch/models"
)

// CommandCamera shells out to a capture tool (fswebcam, libcamera-still,
// termux-camera-photo, ...). The arguments may use {output} for the
// file the tool should write and {lens} for the requested lens.
//
// The photo is written into a private temp dir that is removed once the
// bytes are read, so it never reaches a shared gallery.
type CommandCamera struct {
	Args []string
	// maps a lens to the tool's device argument, e.g. front -> /dev/video1
	Devices map[Lens]string
	// where the private temp dir is created; os.TempDir() when empty
	TempRoot string
}

func (c *CommandCamera) Capture(ctx context.Context, opts CaptureOptions) (*models.Photo, error) {
	if len(c.Args) == 0 {
		return nil, &models.CaptureCancelledError{Detail: "no capture command configured"}
	}
	if opts.SaveToLibrary {
		return nil, &models.CaptureCancelledError{Detail: "saving to a photo library is not supported"}
	}

	dir, err := os.MkdirTemp(c.TempRoot, "punchclock-capture-")
	if err != nil {
		return nil, &models.CaptureCancelledError{Detail: "could not prepare capture", Err: err}
	}
	defer os.RemoveAll(dir)

	output := filepath.Join(dir, fmt.Sprintf("selfie-%d.jpg", time.Now().Unix()))
	lens := string(opts.Lens)
	if dev, ok := c.Devices[opts.Lens]; ok {
		lens = dev
	}

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		a = strings.ReplaceAll(a, "{output}", output)
		a = strings.ReplaceAll(a, "{lens}", lens)
		args[i] = a
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &models.CaptureCancelledError{Detail: "capture cancelled", Err: ctx.Err()}
		}
		detail := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if detail == "" && errors.As(err, &exitErr) {
			detail = fmt.Sprintf("capture command exited with status %d", exitErr.ExitCode())
		} else if detail == "" {
			detail = err.Error()
		}
		return nil, &models.CaptureCancelledError{Detail: detail, Err: err}
	}

	path, err := findCapture(dir, output)
	if err != nil {
		return nil, &models.CaptureCancelledError{Detail: "capture command produced no photo", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.CaptureCancelledError{Detail: "could not read captured photo", Err: err}
	}

	return LoadPhoto(filepath.Base(path), data)
}

// findCapture prefers the requested output path but accepts any image
// the tool left in dir, since some tools append their own suffix.
func findCapture(dir, want string) (string, error) {
	if _, err := os.Stat(want); err == nil {
		return want, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() && isImageName(e.Name()) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", os.ErrNotExist
}

// FileCamera picks up a photo some other app already captured. A
// missing file reads as the worker not having taken one.
type FileCamera struct {
	Path string
	// delete the file after reading so it cannot be submitted twice
	Consume bool
}

func (f *FileCamera) Capture(ctx context.Context, opts CaptureOptions) (*models.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.CaptureCancelledError{Detail: "capture cancelled", Err: err}
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &models.CaptureCancelledError{Detail: "no photo was taken", Err: err}
		}
		return nil, &models.CaptureCancelledError{Detail: "could not read photo", Err: err}
	}

	photo, err := LoadPhoto(filepath.Base(f.Path), data)
	if err != nil {
		return nil, err
	}

	if f.Consume {
		if err := os.Remove(f.Path); err != nil {
			photo.Release()
			return nil, &models.CaptureCancelledError{Detail: "could not consume photo", Err: err}
		}
	}
	return photo, nil
}
