package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = StaticToken("").Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFileToken(t *testing.T) {
	ctx := context.Background()
	f := FileToken{Path: filepath.Join(t.TempDir(), "nested", "token")}

	_, err := f.Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, f.Save("  1|s3cr3t  \n"))
	tok, err := f.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1|s3cr3t", tok)

	info, err := os.Stat(f.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// rotated by another process, picked up on the next call
	require.NoError(t, os.WriteFile(f.Path, []byte("2|rotated"), 0o600))
	tok, err = f.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2|rotated", tok)

	require.NoError(t, f.Clear())
	_, err = f.Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.NoError(t, f.Clear())

	assert.ErrorIs(t, f.Save("   "), ErrNoToken)
}

func TestFromConfig(t *testing.T) {
	assert.Equal(t, StaticToken("abc"), FromConfig("abc", "/tmp/token"))
	assert.Equal(t, FileToken{Path: "/tmp/token"}, FromConfig("", "/tmp/token"))
}

func TestScanToken(t *testing.T) {
	tok, err := scanToken(strings.NewReader("xyz\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	tok, err = scanToken(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", tok)

	_, err = scanToken(strings.NewReader("\n"))
	assert.ErrorIs(t, err, ErrNoToken)
}
