package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/cgast/questcheck/pkg/mission"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads a file catalog when it changes on disk. A catalog that
// fails to load is logged and skipped, so the last good one stays live.
type Watcher struct {
	path     string
	isDir    bool
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration
}

// NewWatcher starts watching path, a catalog file or directory. Editors
// often replace files by rename, so a single file is watched through its
// parent directory.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		isDir:    info.IsDir(),
		watcher:  fw,
		logger:   logger,
		debounce: defaultDebounce,
	}, nil
}

// relevant reports whether a change to name can affect the catalog.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	if !w.isDir {
		return name == w.path
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Run delivers each successfully reloaded catalog to onReload until ctx is
// done. Bursts of changes are coalesced into one reload.
func (w *Watcher) Run(ctx context.Context, onReload func(*mission.Catalog)) error {
	defer w.watcher.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("catalog changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watch error", zap.Error(err))

		case <-fire:
			fire = nil
			cat, err := mission.LoadCatalog(w.path)
			if err != nil {
				w.logger.Warn("catalog reload failed, keeping previous", zap.Error(err))
				continue
			}
			onReload(cat)
		}
	}
}
