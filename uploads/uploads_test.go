package uploads

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	now := time.UnixMilli(1718000000000)

	name := FileName("My Holiday Photo.PNG", now)
	assert.Regexp(t, regexp.MustCompile(`^my-holiday-photo1718000000000\d{1,6}\.PNG$`), name)

	name = FileName("archive.tar.gz", now)
	assert.Regexp(t, regexp.MustCompile(`^archive1718000000000\d{1,6}\.gz$`), name)

	name = FileName("README", now)
	assert.Regexp(t, regexp.MustCompile(`^readme1718000000000\d{1,6}$`), name)
}

func TestLocalURLAndRemove(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	l, err := NewLocal(log, dir, "/uploads/")
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/uploads/a.png", l.URL("http", "example.com", "a.png"))
	assert.Equal(t, filepath.Join(dir, "a.png"), l.LocalPath("a.png"))

	path := l.LocalPath("a.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	l.Remove(path, "")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
}
