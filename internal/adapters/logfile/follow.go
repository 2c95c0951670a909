package logfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follow streams bytes appended to the log to out until ctx is
// cancelled. The watch is on the parent directory rather than the file
// itself, so a log created or replaced after Follow starts is picked
// up.
func (l *Log) Follow(ctx context.Context, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var offset int64
	if info, err := os.Stat(l.path); err == nil {
		offset = info.Size()
	}

	target := filepath.Base(l.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// A replaced or truncated file restarts from the top.
			if info, err := os.Stat(l.path); err == nil && info.Size() < offset {
				offset = 0
			}
			n, err := l.copyFrom(out, offset)
			if err != nil {
				continue
			}
			offset += n

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// copyFrom copies log bytes from offset to EOF into out and returns the
// number of bytes copied.
func (l *Log) copyFrom(out io.Writer, offset int64) (int64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	return io.Copy(out, f)
}
