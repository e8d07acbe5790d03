package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher 监听工作区变化，合并一个去抖窗口内的事件后回调变更路径（相对根目录）
type Watcher struct {
	svc      *Service
	watcher  *fsnotify.Watcher
	debounce time.Duration
	notify   func(paths []string)

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewWatcher(svc *Service, debounce time.Duration, notify func(paths []string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	w := &Watcher{
		svc:      svc,
		watcher:  fw,
		debounce: debounce,
		notify:   notify,
		pending:  make(map[string]struct{}),
	}
	if err := w.addTree(svc.Root()); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree fsnotify 不支持递归监听，逐个目录注册
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.svc.skipped(d.Name()) {
			return fs.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			zap.L().Debug("Watch directory failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// Run 阻塞直到 ctx 取消
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.track(event) {
				continue
			}
			if !armed {
				timer.Reset(w.debounce)
				armed = true
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("Workspace watcher error", zap.Error(err))
		case <-timer.C:
			armed = false
			w.flush()
		}
	}
}

func (w *Watcher) track(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if w.inSkippedDir(event.Name) {
		return false
	}
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				zap.L().Debug("Watch new directory failed", zap.String("path", event.Name), zap.Error(err))
			}
		}
	}

	w.mu.Lock()
	w.pending[w.svc.resolver.Relative(event.Name)] = struct{}{}
	w.mu.Unlock()
	return true
}

func (w *Watcher) inSkippedDir(path string) bool {
	rel, err := filepath.Rel(w.svc.Root(), path)
	if err != nil {
		return false
	}
	dir := rel
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		if w.svc.skipped(filepath.Base(dir)) {
			return true
		}
		dir = filepath.Dir(dir)
	}
	return false
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	slices.Sort(paths)
	if w.notify != nil {
		w.notify(paths)
	}
}
