// Package processor drives queued work in externally triggered passes.
// The deployment model guarantees no long-lived process, so there is no
// internal timer: an outside scheduler calls Tick, and every pass is
// idempotent and safe to invoke concurrently because queue claims are
// conditional updates in the store.
package processor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/maestrohq/maestro/internal/cache"
	"github.com/maestrohq/maestro/internal/engine"
	"github.com/maestrohq/maestro/internal/lifecycle"
	"github.com/maestrohq/maestro/internal/queue"
	"github.com/maestrohq/maestro/internal/state"
	"github.com/maestrohq/maestro/pkg/models"
)

// DefaultInterval is the cadence recorded for the external trigger when no
// other interval is configured.
const DefaultInterval = 30 * time.Second

// TickResult summarizes one processing pass.
type TickResult struct {
	// Processed is the number of queue entries claimed this pass.
	Processed int `json:"processed"`
	// Succeeded is the number of entries whose execution completed.
	Succeeded int `json:"succeeded"`
	// Failed is the number of entries whose execution did not complete.
	Failed int `json:"failed"`
	// Errors lists entry-level failures. One entry's failure never aborts
	// the pass.
	Errors []string `json:"errors,omitempty"`
}

// Status is a snapshot of the processor's control state.
type Status struct {
	// Enabled is the logical on/off flag consulted by the external trigger.
	Enabled bool `json:"enabled"`
	// IntervalSeconds is the cadence the external trigger should honor.
	IntervalSeconds int `json:"interval_seconds"`
	// LastTickAt is when the last pass ran, if any.
	LastTickAt *time.Time `json:"last_tick_at,omitempty"`
	// LastTickResult is the summary of the last pass, if any.
	LastTickResult *TickResult `json:"last_tick_result,omitempty"`
}

// AutoProcessor pulls queued entries per agent and drives the execution
// engine synchronously.
type AutoProcessor struct {
	store     *state.DB
	queue     *queue.Service
	engine    *engine.Engine
	lifecycle *lifecycle.Service
	agents    *cache.Cache

	mu         sync.RWMutex
	enabled    bool
	interval   time.Duration
	lastTickAt *time.Time
	lastResult *TickResult
}

// New creates an AutoProcessor. It starts disabled.
func New(store *state.DB, q *queue.Service, eng *engine.Engine, lc *lifecycle.Service) *AutoProcessor {
	return &AutoProcessor{
		store:     store,
		queue:     q,
		engine:    eng,
		lifecycle: lc,
		agents:    cache.New(cache.DefaultTTL),
		interval:  DefaultInterval,
	}
}

// Start flips the processor to enabled. Idempotent.
func (p *AutoProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		p.enabled = true
		log.Printf("[processor] enabled, interval %s", p.interval)
	}
}

// Stop flips the processor to disabled. Running passes finish; no new work
// is claimed by triggers that honor the flag. Idempotent.
func (p *AutoProcessor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		p.enabled = false
		log.Printf("[processor] disabled")
	}
}

// Enabled reports the logical on/off flag.
func (p *AutoProcessor) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// SetInterval records the desired cadence for the external trigger. The
// processor does not run its own clock.
func (p *AutoProcessor) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
}

// Interval returns the recorded cadence.
func (p *AutoProcessor) Interval() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.interval
}

// GetStatus returns a snapshot of the processor's control state.
func (p *AutoProcessor) GetStatus() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{
		Enabled:         p.enabled,
		IntervalSeconds: int(p.interval / time.Second),
	}
	if p.lastTickAt != nil {
		t := *p.lastTickAt
		s.LastTickAt = &t
	}
	if p.lastResult != nil {
		r := *p.lastResult
		s.LastTickResult = &r
	}
	return s
}

// Tick performs one bounded processing pass: for every active agent, claim
// the oldest pending entry and run it synchronously. Safe to call
// repeatedly and concurrently; the pending->processing claim is atomic, so
// a redundant caller simply loses the race and skips the entry.
func (p *AutoProcessor) Tick(ctx context.Context) (*TickResult, error) {
	result := &TickResult{}

	agents, err := p.activeAgents()
	if err != nil {
		return nil, fmt.Errorf("list active agents: %w", err)
	}

	for _, agent := range agents {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := p.processAgent(ctx, &agent, result); err != nil {
			// Captured, not propagated: the pass continues.
			result.Errors = append(result.Errors, fmt.Sprintf("agent %s: %v", agent.Name, err))
			log.Printf("[processor] agent %s: %v", agent.Name, err)
		}
	}

	now := time.Now()
	p.mu.Lock()
	p.lastTickAt = &now
	p.lastResult = result
	p.mu.Unlock()

	return result, nil
}

// activeAgents returns the active agent set, cached briefly so rapid ticks
// don't re-query an unchanged roster.
func (p *AutoProcessor) activeAgents() ([]models.Agent, error) {
	if cached, ok := p.agents.Get("agents/active"); ok {
		return cached.([]models.Agent), nil
	}
	agents, err := p.store.ListAgents(true)
	if err != nil {
		return nil, err
	}
	p.agents.Set("agents/active", agents)
	return agents, nil
}

// InvalidateAgents drops the cached agent roster, forcing the next pass to
// re-read it. Call after registering or deactivating agents.
func (p *AutoProcessor) InvalidateAgents() {
	p.agents.Invalidate("agents/")
}

// processAgent claims and runs the next entry for one agent.
func (p *AutoProcessor) processAgent(ctx context.Context, agent *models.Agent, result *TickResult) error {
	entry, err := p.queue.NextInQueue(agent.ID)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	claimed, err := p.store.ClaimQueueEntry(entry.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another tick claimed it first.
		return nil
	}
	result.Processed++

	execResult, err := p.engine.ExecuteTask(ctx, entry.TaskID, entry.AgentID)
	if err != nil {
		// Infrastructure failure: treat like a failed attempt.
		execResult = &models.ExecutionResult{Success: false, Error: err.Error()}
		result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", entry.TaskID, err))
	}

	return p.finalizeEntry(entry, execResult, result)
}

// finalizeEntry updates the claimed queue entry from the engine result and
// folds the outcome into the agent's aggregate stats.
func (p *AutoProcessor) finalizeEntry(entry *models.QueueEntry, execResult *models.ExecutionResult, result *TickResult) error {
	if execResult.Paused {
		// The run was parked by a user; hand the entry back so a later
		// tick or resume can finish it. The attempt stays consumed, so a
		// pause on the final attempt pins the entry instead of leaving it
		// claimable past the bound.
		to := models.QueuePending
		if entry.Attempts+1 >= entry.MaxAttempts {
			to = models.QueueFailed
		}
		_, err := p.store.FinishQueueEntry(entry.ID, to)
		return err
	}

	if execResult.Success {
		if _, err := p.store.FinishQueueEntry(entry.ID, models.QueueCompleted); err != nil {
			return err
		}
		result.Succeeded++
		return p.store.RecordAgentOutcome(entry.AgentID, true)
	}

	result.Failed++

	// Attempts was incremented by the claim.
	attempts := entry.Attempts + 1
	to := models.QueuePending
	if attempts >= entry.MaxAttempts || execResult.Cancelled {
		to = models.QueueFailed
	}
	if _, err := p.store.FinishQueueEntry(entry.ID, to); err != nil {
		return err
	}

	if to == models.QueueFailed {
		if _, err := p.lifecycle.Transition(entry.TaskID, models.TaskStatusBlocked,
			fmt.Sprintf("failed after %d attempts", attempts)); err != nil {
			log.Printf("[processor] task %s not moved to blocked: %v", entry.TaskID, err)
		}
	}

	return p.store.RecordAgentOutcome(entry.AgentID, false)
}
