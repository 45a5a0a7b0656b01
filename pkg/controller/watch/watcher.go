package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/catapult/pkg/infra/manifest"
)

const defaultDebounce = time.Second

// Watcher reloads the pipeline manifest when the file changes on disk.
// Runs already in flight keep the manifest they started with.
type Watcher struct {
	path     string
	apply    func(*model.Manifest)
	watcher  *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
}

// Option is a functional option for Watcher configuration
type Option func(*Watcher)

// WithDebounce overrides the delay between a file event and the reload
func WithDebounce(d time.Duration) Option {
	return func(x *Watcher) {
		x.debounce = d
	}
}

// NewWatcher creates a watcher for the manifest at path. Every manifest
// that loads and validates is handed to the apply callback.
func NewWatcher(path string, apply func(*model.Manifest), options ...Option) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create file watcher", goerr.T(types.ErrTagConfig))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, goerr.Wrap(err, "failed to resolve manifest path",
			goerr.V("path", path), goerr.T(types.ErrTagConfig))
	}

	return &Watcher{
		path:     abs,
		apply:    apply,
		watcher:  w,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the manifest. The watch is on the directory,
// since editors replace files instead of writing them in place.
func (x *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(x.path)
	if err := x.watcher.Add(dir); err != nil {
		return goerr.Wrap(err, "failed to watch manifest directory",
			goerr.V("dir", dir), goerr.T(types.ErrTagConfig))
	}

	ctxlog.From(ctx).Info("Watching pipeline manifest", "path", x.path)

	go x.loop(ctx)
	return nil
}

// Stop ends the watch
func (x *Watcher) Stop() error {
	close(x.done)
	return x.watcher.Close()
}

func (x *Watcher) loop(ctx context.Context) {
	logger := ctxlog.From(ctx)
	base := filepath.Base(x.path)

	timer := time.NewTimer(x.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-x.done:
			return

		case event, ok := <-x.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				if event.Op&fsnotify.Remove != 0 {
					logger.Warn("Manifest file removed, keeping current pipeline", "path", x.path)
				}
				continue
			}

			logger.Debug("Manifest change detected", "path", event.Name, "op", event.Op.String())
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(x.debounce)

		case <-timer.C:
			x.reload(ctx)

		case err, ok := <-x.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("Manifest watcher error", "error", err)
		}
	}
}

// reload loads the manifest and applies it. A manifest that fails to
// load or validate leaves the current pipeline in place.
func (x *Watcher) reload(ctx context.Context) {
	logger := ctxlog.From(ctx)

	m, err := manifest.Load(x.path)
	if err != nil {
		logger.Error("Failed to reload manifest, keeping current pipeline",
			"error", err,
			"path", x.path,
		)
		return
	}

	x.apply(m)
	logger.Info("Reloaded pipeline manifest", "path", x.path, "stages", len(m.Stages))
}
