package processor

import (
	"context"
	"sync"
	"time"
)

// MonitorFunc is invoked after each tick, typically to advance an
// orchestration. Returning done=true ends the loop early.
type MonitorFunc func(ctx context.Context) (done bool, err error)

// RunnerConfig bounds one background processing loop.
type RunnerConfig struct {
	// MaxIterations caps how many tick+monitor rounds the loop runs.
	MaxIterations int
	// Delay is the wait between iterations. The wait is cancellation-aware.
	Delay time.Duration
	// Monitor is called after each tick. Optional.
	Monitor MonitorFunc
	// Logger receives the loop's activity. Defaults to a no-op logger.
	Logger *DebugLogger
}

// Runner is an explicit, tracked background worker: a bounded loop of
// tick-then-monitor rounds with a cancellation-aware sleep in between. It
// replaces fire-and-forget goroutines so loop failures land in an
// observable sink instead of being swallowed.
type Runner struct {
	processor *AutoProcessor
	cfg       RunnerConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewRunner creates a Runner for the given processor.
func NewRunner(p *AutoProcessor, cfg RunnerConfig) *Runner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = NopLogger()
	}
	return &Runner{processor: p, cfg: cfg}
}

// Launch starts the loop in a tracked goroutine and returns immediately so
// the triggering request can return. A runner launches at most one loop at
// a time.
func (r *Runner) Launch(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go func() {
		defer func() {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			close(r.done)
		}()
		r.loop(loopCtx)
	}()

	return true
}

// Stop cancels a running loop and waits for it to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	running := r.running
	r.mu.Unlock()

	if !running {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Wait blocks until the current loop exits. Returns immediately when no
// loop is running.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	running := r.running
	r.mu.Unlock()

	if !running || done == nil {
		return
	}
	<-done
}

func (r *Runner) loop(ctx context.Context) {
	log := r.cfg.Logger
	log.Log("runner started: max %d iterations, delay %s", r.cfg.MaxIterations, r.cfg.Delay)

	for i := 1; i <= r.cfg.MaxIterations; i++ {
		if ctx.Err() != nil {
			log.Log("runner cancelled at iteration %d", i)
			return
		}

		result, err := r.processor.Tick(ctx)
		if err != nil {
			log.Log("iteration %d: tick error: %v", i, err)
		} else {
			log.Log("iteration %d: processed=%d succeeded=%d failed=%d",
				i, result.Processed, result.Succeeded, result.Failed)
		}

		if r.cfg.Monitor != nil {
			done, err := r.cfg.Monitor(ctx)
			if err != nil {
				log.Log("iteration %d: monitor error: %v", i, err)
			}
			if done {
				log.Log("runner finished: monitor reported done at iteration %d", i)
				return
			}
		}

		if i < r.cfg.MaxIterations {
			select {
			case <-time.After(r.cfg.Delay):
			case <-ctx.Done():
				log.Log("runner cancelled during delay at iteration %d", i)
				return
			}
		}
	}

	log.Log("runner finished: iteration budget exhausted")
}
