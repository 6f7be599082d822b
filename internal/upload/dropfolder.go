package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DropFolderOptions controls the drop-folder watcher.
type DropFolderOptions struct {
	Dir             string
	// IncludeExisting feeds files already present at startup.
	IncludeExisting bool
	// Settle is how long a file must stay unchanged before it is handed on.
	// Zero uses 500ms.
	Settle          time.Duration
	Logger          logrus.FieldLogger
}

// DropFolder is the terminal stand-in for drag and drop: files created in a
// watched directory are handed to a sink, typically Session.Drop.
type DropFolder struct {
	opts DropFolderOptions
	sink func([]File)

	mu      sync.Mutex
	seen    map[string]bool
	pending map[string]time.Time
}

// NewDropFolder creates a watcher for opts.Dir.
func NewDropFolder(opts DropFolderOptions, sink func([]File)) *DropFolder {
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	opts.Logger = opts.Logger.WithField("component", "dropfolder")
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	return &DropFolder{
		opts:    opts,
		sink:    sink,
		seen:    make(map[string]bool),
		pending: make(map[string]time.Time),
	}
}

// Run watches the directory until ctx is done.
func (d *DropFolder) Run(ctx context.Context) error {
	if err := os.MkdirAll(d.opts.Dir, 0755); err != nil {
		return fmt.Errorf("create drop dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()

	if err := w.Add(d.opts.Dir); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}

	if d.opts.IncludeExisting {
		if err := d.scanOnce(); err != nil {
			return err
		}
	} else {
		d.markExisting()
	}

	d.opts.Logger.WithField("dir", d.opts.Dir).Info("Watching drop folder")
	ticker := time.NewTicker(d.opts.Settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			d.handle(ev)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				d.opts.Logger.WithError(err).Warn("Drop folder watch error")
			}
		case now := <-ticker.C:
			d.flush(now)
		}
	}
}

func (d *DropFolder) handle(ev fsnotify.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		if d.seen[ev.Name] {
			return
		}
		// Restart the settle window on every write so half-copied files are
		// not inspected.
		d.pending[ev.Name] = time.Now()
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		delete(d.seen, ev.Name)
		delete(d.pending, ev.Name)
	}
}

func (d *DropFolder) flush(now time.Time) {
	d.mu.Lock()
	var ready []string
	for path, last := range d.pending {
		if now.Sub(last) >= d.opts.Settle {
			ready = append(ready, path)
			delete(d.pending, path)
			d.seen[path] = true
		}
	}
	d.mu.Unlock()

	if len(ready) == 0 {
		return
	}
	files := make([]File, 0, len(ready))
	for _, p := range ready {
		st, err := os.Stat(p)
		if err != nil || st.IsDir() {
			continue
		}
		files = append(files, Inspect(p))
	}
	if len(files) > 0 {
		d.opts.Logger.WithField("files", len(files)).Debug("Dropped files detected")
		d.sink(files)
	}
}

func (d *DropFolder) scanOnce() error {
	entries, err := os.ReadDir(d.opts.Dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	var files []File
	d.mu.Lock()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(d.opts.Dir, e.Name())
		d.seen[path] = true
		files = append(files, Inspect(path))
	}
	d.mu.Unlock()
	if len(files) > 0 {
		d.sink(files)
	}
	return nil
}

func (d *DropFolder) markExisting() {
	entries, err := os.ReadDir(d.opts.Dir)
	if err != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entries {
		if !e.IsDir() {
			d.seen[filepath.Join(d.opts.Dir, e.Name())] = true
		}
	}
}
