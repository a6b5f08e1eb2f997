package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// Library 音乐目录的文件列表，通过 fsnotify 保持最新
type Library struct {
	dir     string
	watcher *fsnotify.Watcher

	mu    sync.RWMutex
	files []string
}

// NewLibrary scans dir once and starts watching it for changes.
func NewLibrary(dir string) (*Library, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	lib := &Library{dir: dir, watcher: watcher}
	if err := lib.rescan(); err != nil {
		watcher.Close()
		return nil, err
	}
	return lib, nil
}

// Files returns the current playable file names.
func (l *Library) Files() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.files...)
}

// Run 处理文件系统事件，直到 ctx 结束
func (l *Library) Run(ctx context.Context) {
	defer l.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if !IsSupported(event.Name) {
				continue
			}
			if err := l.rescan(); err != nil {
				logger.Warn("music library rescan failed", logger.ErrorField(err))
				continue
			}
			logger.Debug("music library updated",
				logger.String("event", event.Op.String()),
				logger.String("file", event.Name),
				logger.Int("tracks", len(l.Files())))
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("music library watcher error", logger.ErrorField(err))
		}
	}
}

func (l *Library) rescan() error {
	files, err := ListFiles(l.dir)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.files = files
	l.mu.Unlock()
	return nil
}
