package uploads

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local stores uploaded files on disk and serves them under a public path.
type Local struct {
	dir        string
	publicPath string
	log        *slog.Logger
}

func NewLocal(log *slog.Logger, dir, publicPath string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{
		dir:        dir,
		publicPath: strings.TrimSuffix(publicPath, "/"),
		log:        log,
	}, nil
}

func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) PublicPath() string {
	return l.publicPath
}

// FileName turns "My Photo.PNG" into "my-photo1718000000000123.PNG".
func FileName(original string, now time.Time) string {
	ext := ""
	if i := strings.LastIndex(original, "."); i >= 0 {
		ext = original[i:]
	}
	base := strings.Join(strings.Split(strings.ToLower(original), " "), "-")
	base = strings.SplitN(base, ".", 2)[0]

	return fmt.Sprintf("%s%d%d%s", base, now.UnixMilli(), rand.Intn(100000)+1, ext)
}

// LocalPath is where a stored file lives on disk.
func (l *Local) LocalPath(name string) string {
	return filepath.Join(l.dir, name)
}

// URL is the absolute URL a client uses to fetch the stored file.
func (l *Local) URL(scheme, host, name string) string {
	return fmt.Sprintf("%s://%s%s/%s", scheme, host, l.publicPath, name)
}

// Remove deletes stored files in the background. Failures are logged only.
func (l *Local) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		go func(path string) {
			if err := os.Remove(path); err != nil {
				l.log.ErrorContext(context.Background(), "uploads - remove - failed", "path", path, "err", err)
				return
			}
			l.log.Info("uploads - remove - removed", "path", path)
		}(p)
	}
}
