package dropwatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"apiview/internal/bootstrap/logging"
	"apiview/internal/errs"
)

const defaultSettle = 500 * time.Millisecond

// Watcher reports files dropped into a directory once they stop changing.
type Watcher struct {
	dir    string
	settle time.Duration
	accept func(path string) bool
}

// New builds a watcher over dir. accept filters paths; nil accepts all.
func New(dir string, settle time.Duration, accept func(path string) bool) *Watcher {
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{
		dir:    strings.TrimSpace(dir),
		settle: settle,
		accept: accept,
	}
}

// Run blocks until ctx is done. Handler errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, handle func(ctx context.Context, path string) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if handle == nil {
		return errors.New("handler is required")
	}
	if w.dir == "" {
		return errors.New("watch directory is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "dropwatch"), slog.String("dir", w.dir))

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fsnotify watcher")
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return errs.Wrapf(err, "watch %s", w.dir)
	}
	logging.Info(logCtx, "watching drop directory")

	ready := make(chan settledFile, 16)
	files := newDebouncer(ctx, w.settle, ready)
	defer files.stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(logCtx, "drop directory watch stopped")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if w.accept != nil && !w.accept(ev.Name) {
				continue
			}
			files.touch(ev.Name)
		case file := <-ready:
			if !files.claim(file) {
				continue
			}
			if err := handle(ctx, file.name); err != nil {
				logging.Warn(logCtx, "drop file handling failed", slog.String("path", file.name), slog.Any("err", errs.Loggable(err)))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "fsnotify error", slog.Any("err", errs.Loggable(err)))
		}
	}
}

type settledFile struct {
	name string
	gen  uint64
}

type pendingFile struct {
	timer *time.Timer
	gen   uint64
}

// debouncer delays a file until it has been quiet for settle. A file is
// delivered once per quiet period: deliveries overtaken by a later event are
// refused by claim. Methods are called from the watch loop only.
type debouncer struct {
	ctx     context.Context
	settle  time.Duration
	ready   chan<- settledFile
	pending map[string]*pendingFile
	gen     uint64
}

func newDebouncer(ctx context.Context, settle time.Duration, ready chan<- settledFile) *debouncer {
	return &debouncer{
		ctx:     ctx,
		settle:  settle,
		ready:   ready,
		pending: make(map[string]*pendingFile),
	}
}

func (d *debouncer) touch(name string) {
	if p, ok := d.pending[name]; ok && p.timer.Stop() {
		p.timer.Reset(d.settle)
		return
	}
	d.gen++
	file := settledFile{name: name, gen: d.gen}
	d.pending[name] = &pendingFile{
		gen: file.gen,
		timer: time.AfterFunc(d.settle, func() {
			select {
			case d.ready <- file:
			case <-d.ctx.Done():
			}
		}),
	}
}

// claim reports whether file is the current delivery for its name and
// forgets the name if so.
func (d *debouncer) claim(file settledFile) bool {
	p, ok := d.pending[file.name]
	if !ok || p.gen != file.gen {
		return false
	}
	delete(d.pending, file.name)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
}
