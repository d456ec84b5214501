// Package scanwatch feeds files dropped into a folder through a scan
// session. Images go through the detector; .txt files hold one raw read
// per line, as dumped by external scanners.
package scanwatch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"baken/pkg/capture"
)

// Completion is one ticket assembled from dropped files.
type Completion struct {
	Code   string
	Halves []capture.Half
	// Files holds the file each half came from, in slot order.
	Files []string
}

// Handler receives every completed ticket. Errors are logged.
type Handler func(ctx context.Context, c Completion) error

type Options struct {
	Dir string
	// ProcessedDir receives handled files. Defaults to Dir/processed.
	ProcessedDir string
	Workers      int
	// FramesPerSec caps how many files are analysed per second.
	FramesPerSec float64
	// Once processes the files already present and returns.
	Once     bool
	Detector *capture.Detector
	Session  *capture.Session
	Log      *zap.Logger
}

// Watcher owns the session; workers only detect concurrently.
type Watcher struct {
	opts    Options
	handle  Handler
	limiter *rate.Limiter
	log     *zap.Logger

	mu     sync.Mutex
	origin map[string]string // held digits -> file name
}

// Debounce settings for filesystem events.
const (
	pollInterval = 250 * time.Millisecond
	stableAfter  = 300 * time.Millisecond
)

func New(opts Options, h Handler) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, eris.New("scanwatch: directory required")
	}
	if opts.Session == nil {
		return nil, eris.New("scanwatch: session required")
	}
	if h == nil {
		return nil, eris.New("scanwatch: handler required")
	}
	if opts.ProcessedDir == "" {
		opts.ProcessedDir = filepath.Join(opts.Dir, "processed")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	limit := rate.Inf
	if opts.FramesPerSec > 0 {
		limit = rate.Limit(opts.FramesPerSec)
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		opts:    opts,
		handle:  h,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With(zap.String("dir", opts.Dir)),
		origin:  make(map[string]string),
	}, nil
}

// Run processes the files already in the folder, then watches it until
// ctx is cancelled (or returns right away with Once).
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return eris.Wrapf(err, "create %s", w.opts.Dir)
	}
	if err := os.MkdirAll(w.opts.ProcessedDir, 0o755); err != nil {
		return eris.Wrapf(err, "create %s", w.opts.ProcessedDir)
	}
	initial, err := listFiles(w.opts.Dir)
	if err != nil {
		return err
	}
	w.log.Info("scanning drop folder", zap.Int("files", len(initial)), zap.Bool("once", w.opts.Once))

	if w.opts.Once {
		ch := make(chan string, len(initial))
		for _, name := range initial {
			ch <- name
		}
		close(ch)
		w.runWorkerPool(ctx, ch)
		return ctx.Err()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "create watcher")
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		return eris.Wrapf(err, "watch %s", w.opts.Dir)
	}

	fileCh := make(chan string, 256)
	go func() {
		defer close(fileCh)
		for _, name := range initial {
			select {
			case fileCh <- name:
			case <-ctx.Done():
				return
			}
		}
		w.debounce(ctx, fw, fileCh)
	}()
	w.runWorkerPool(ctx, fileCh)
	return nil
}

// debounce forwards created files once they stopped changing.
func (w *Watcher) debounce(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) {
	pending := map[string]time.Time{}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !isSupportedExt(name) {
				continue
			}
			pending[name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			var ready []string
			for name, t := range pending {
				if now.Sub(t) > stableAfter {
					ready = append(ready, name)
					delete(pending, name)
				}
			}
			sort.Strings(ready)
			for _, name := range ready {
				select {
				case out <- name:
				case <-ctx.Done():
					return
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) runWorkerPool(ctx context.Context, fileCh <-chan string) {
	var wg sync.WaitGroup
	for i := 0; i < w.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				if ctx.Err() != nil {
					continue
				}
				w.processFile(ctx, name)
			}
		}()
	}
	wg.Wait()
}
