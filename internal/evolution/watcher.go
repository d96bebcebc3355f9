package evolution

// Execution-log watcher: reacts to new runs landing in the JSONL log by
// kicking an evolution cycle. Filesystem events arrive in bursts, so a
// debounce timer coalesces them; at most one cycle runs at a time and
// events arriving mid-cycle queue exactly one follow-up.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"oddsmith/internal/logging"
)

// Watcher triggers evolution cycles when the execution log changes.
type Watcher struct {
	loop     *Loop
	debounce time.Duration
	log      *zap.Logger
}

// NewWatcher creates a watcher over the loop's execution log.
func NewWatcher(loop *Loop, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		loop:     loop,
		debounce: debounce,
		log:      logging.L(logging.CategoryWatcher),
	}
}

// Run watches until ctx is cancelled. The log file may not exist yet, so
// the watch is on its parent directory, filtered to the file itself.
func (w *Watcher) Run(ctx context.Context) error {
	logPath := w.loop.ExecutionLog().Path()
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating watch dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fs watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.log.Info("watching execution log", zap.String("path", logPath))

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(logPath) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.runCycle(ctx)
		}
	}
}

func (w *Watcher) runCycle(ctx context.Context) {
	result, err := w.loop.RunCycle(ctx)
	if err != nil {
		w.log.Error("evolution cycle failed", zap.Error(err))
		return
	}
	w.log.Info("evolution cycle finished",
		zap.String("outcome", string(result.Outcome)),
		zap.String("tool", result.ToolName))
}
