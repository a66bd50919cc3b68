package broker

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"fieldops.dev/punchclock/punch/models"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var formatTypes = map[string]struct{ mime, ext string }{
	"jpeg": {"image/jpeg", ".jpg"},
	"png":  {"image/png", ".png"},
	"gif":  {"image/gif", ".gif"},
	"webp": {"image/webp", ".webp"},
	"bmp":  {"image/bmp", ".bmp"},
	"tiff": {"image/tiff", ".tiff"},
}

// LoadPhoto checks that data is a decodable image and fills in its MIME
// type and dimensions. The file name gets the right extension if it
// lacks one.
func LoadPhoto(name string, data []byte) (*models.Photo, error) {
	if len(data) == 0 {
		return nil, &models.CaptureCancelledError{Detail: "captured photo is empty"}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &models.CaptureCancelledError{
			Detail: "captured file is not a supported image",
			Err:    fmt.Errorf("decoding %s: %w", name, err),
		}
	}

	ft, ok := formatTypes[format]
	if !ok {
		return nil, &models.CaptureCancelledError{Detail: fmt.Sprintf("unsupported image format %q", format)}
	}

	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "selfie"
	}
	if filepath.Ext(name) == "" {
		name += ft.ext
	}

	return &models.Photo{
		Name:        name,
		ContentType: ft.mime,
		Data:        data,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}
