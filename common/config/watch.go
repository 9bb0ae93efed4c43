package config

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/favbox/h1engine/common/hlog"
	"github.com/fsnotify/fsnotify"
)

// LimitsWatcher 持有从文件加载的 Limits，并在文件变更时原子替换。
//
// 连接任务每次交换开始时读取一次快照，已在进行中的交换不受重载影响。
type LimitsWatcher struct {
	path     string
	current  atomic.Pointer[Limits]
	watcher  *fsnotify.Watcher
	onChange func(Limits)
	once     sync.Once
	done     chan struct{}
}

// WatchLimits 加载 path 并开始监视其变更。onChange 可为 nil，每次成功重载后调用。
//
// 监视的是文件所在目录，以兼容编辑器先写临时文件再重命名的保存方式。
func WatchLimits(path string, onChange func(Limits)) (*LimitsWatcher, error) {
	limits, err := LoadLimits(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	w := &LimitsWatcher{
		path:     filepath.Clean(path),
		watcher:  watcher,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.current.Store(&limits)
	hlog.SystemLogger().Debugf("[LimitsWatcher] 正在监视限制文件：%s", w.path)
	go w.loop()
	return w, nil
}

// Limits 返回当前生效的限制快照。
func (w *LimitsWatcher) Limits() Limits {
	return *w.current.Load()
}

// Close 停止监视。
func (w *LimitsWatcher) Close() (err error) {
	w.once.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return
}

func (w *LimitsWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			hlog.SystemLogger().Errorf("[LimitsWatcher] 监视出错：%v", err)
		}
	}
}

func (w *LimitsWatcher) reload() {
	limits, err := LoadLimits(w.path)
	if err != nil {
		// 保留旧值，避免写到一半的文件让引擎失去限制
		hlog.SystemLogger().Warnf("[LimitsWatcher] 重载 %s 失败，沿用旧值：%v", w.path, err)
		return
	}
	w.current.Store(&limits)
	hlog.SystemLogger().Infof("[LimitsWatcher] 限制已重载：max_header_bytes=%d, max_body_bytes=%d, keep_alive_enabled=%t",
		limits.MaxHeaderBytes, limits.MaxBodyBytes, limits.KeepAliveEnabled)
	if w.onChange != nil {
		w.onChange(limits)
	}
}
