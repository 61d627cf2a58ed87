package scenario

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce absorbs the burst of events an editor save produces.
const debounce = 500 * time.Millisecond

// Watch calls onChange with the reloaded scenario each time path is
// written. It watches the parent directory so editors that save by rename
// are seen too. It blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(Scenario)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	reload := func() {
		sc, err := Load(abs)
		if err != nil {
			log.Printf("scenario: reload %s: %v", abs, err)
			return
		}
		log.Printf("scenario: %s changed, reloading", abs)
		onChange(sc)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("scenario: watcher error: %v", err)
		}
	}
}

// PlayAndWatch plays the scenario at path, and restarts it from the top
// whenever the file changes. It blocks until ctx is cancelled.
func (r *Runner) PlayAndWatch(ctx context.Context, path string) error {
	var (
		mu     sync.Mutex
		cancel context.CancelFunc
		closed bool
		wg     sync.WaitGroup
	)
	start := func(sc Scenario) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		if cancel != nil {
			cancel()
		}
		var playCtx context.Context
		playCtx, cancel = context.WithCancel(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Play(playCtx, sc)
		}()
	}

	sc, err := Load(path)
	if err != nil {
		return err
	}
	start(sc)

	err = Watch(ctx, path, start)

	mu.Lock()
	closed = true
	if cancel != nil {
		cancel()
	}
	mu.Unlock()
	wg.Wait()
	return err
}
