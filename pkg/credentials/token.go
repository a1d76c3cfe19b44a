package credentials

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// TokenSource yields the bearer token for the next request. An empty token
// means no Authorization header is sent.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed token, typically read from the environment at
// startup.
type StaticToken string

func (t StaticToken) Token() string {
	return strings.TrimSpace(string(t))
}

// Chain returns the first non-empty token from its sources, in order.
type Chain []TokenSource

func (c Chain) Token() string {
	for _, src := range c {
		if src == nil {
			continue
		}
		if tok := src.Token(); tok != "" {
			return tok
		}
	}
	return ""
}

// FileToken serves the trimmed contents of a token file and re-reads it
// whenever the file is written, created or renamed into place. It watches the
// parent directory so editors and token refreshers that replace the file
// atomically are picked up.
type FileToken struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	token string

	done chan struct{}
	once sync.Once
}

// NewFileToken reads path and starts watching it for changes. A missing file
// is not an error: the token is empty until the file appears.
func NewFileToken(path string, logger *slog.Logger) (*FileToken, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving token file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating token file watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching token file directory: %w", err)
	}

	ft := &FileToken{
		path:    abs,
		logger:  logger,
		watcher: watcher,
		done:    make(chan struct{}),
	}

	if err := ft.reload(); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go ft.watch()

	return ft, nil
}

// Token returns the most recently read token.
func (f *FileToken) Token() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.token
}

// Path returns the absolute path of the watched file.
func (f *FileToken) Path() string {
	return f.path
}

// Close stops watching the file.
func (f *FileToken) Close() error {
	var err error
	f.once.Do(func() {
		err = f.watcher.Close()
		<-f.done
	})
	return err
}

func (f *FileToken) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading token file: %w", err)
	}

	f.mu.Lock()
	f.token = strings.TrimSpace(string(data))
	f.mu.Unlock()

	return nil
}

func (f *FileToken) watch() {
	defer close(f.done)

	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}

			if err := f.reload(); err != nil {
				f.logger.Warn("could not reload token file", "path", f.path, "error", err)
				continue
			}
			f.logger.Debug("reloaded token file", "path", f.path)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("token file watcher error", "error", err)
		}
	}
}
