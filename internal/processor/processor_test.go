package processor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maestrohq/maestro/internal/engine"
	"github.com/maestrohq/maestro/internal/lifecycle"
	"github.com/maestrohq/maestro/internal/queue"
	"github.com/maestrohq/maestro/internal/state"
	"github.com/maestrohq/maestro/pkg/models"
)

// testCapability serves a role with a single caller-supplied step.
type testCapability struct {
	role models.AgentRole
	run  func(context.Context, *models.Task) (string, error)
}

func (c *testCapability) Role() models.AgentRole { return c.role }

func (c *testCapability) Steps(_ *models.Task) []engine.Step {
	return []engine.Step{{Name: "work", Run: c.run}}
}

func stepCapability(role models.AgentRole, run func(context.Context, *models.Task) (string, error)) engine.Capability {
	return &testCapability{role: role, run: run}
}

type testHarness struct {
	db        *state.DB
	queue     *queue.Service
	engine    *engine.Engine
	registry  *engine.Registry
	lifecycle *lifecycle.Service
	processor *AutoProcessor
}

func setupHarness(t *testing.T) *testHarness {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	lc := lifecycle.NewService(db)
	q := queue.NewService(db)
	registry := engine.DefaultRegistry()
	eng := engine.New(db, lc, registry)
	eng.SetStepDelay(0)

	return &testHarness{
		db:        db,
		queue:     q,
		engine:    eng,
		registry:  registry,
		lifecycle: lc,
		processor: New(db, q, eng, lc),
	}
}

func (h *testHarness) seedAgent(t *testing.T, name string, role models.AgentRole) *models.Agent {
	t.Helper()
	agent := &models.Agent{
		ID:        uuid.New().String(),
		Name:      name,
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := h.db.CreateAgent(agent); err != nil {
		t.Fatalf("CreateAgent failed: %v", err)
	}
	h.processor.InvalidateAgents()
	return agent
}

func (h *testHarness) seedQueuedTask(t *testing.T, title string, agent *models.Agent, maxAttempts int) *models.Task {
	t.Helper()
	task := &models.Task{Title: title}
	if err := h.lifecycle.Create(task); err != nil {
		t.Fatalf("Create task failed: %v", err)
	}
	if _, err := h.queue.Enqueue(task.ID, agent.ID, maxAttempts); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return task
}

func TestStartStop_Idempotent(t *testing.T) {
	h := setupHarness(t)

	if h.processor.Enabled() {
		t.Error("processor should start disabled")
	}
	h.processor.Start()
	h.processor.Start()
	if !h.processor.Enabled() {
		t.Error("processor not enabled after Start")
	}
	h.processor.Stop()
	h.processor.Stop()
	if h.processor.Enabled() {
		t.Error("processor not disabled after Stop")
	}
}

func TestSetInterval(t *testing.T) {
	h := setupHarness(t)

	h.processor.SetInterval(5 * time.Second)
	if got := h.processor.Interval(); got != 5*time.Second {
		t.Errorf("Interval = %s, want 5s", got)
	}
	// Non-positive falls back to the default.
	h.processor.SetInterval(0)
	if got := h.processor.Interval(); got != DefaultInterval {
		t.Errorf("Interval = %s, want default %s", got, DefaultInterval)
	}
}

func TestTick_Empty(t *testing.T) {
	h := setupHarness(t)
	h.seedAgent(t, "idle", models.RolePixel)

	result, err := h.processor.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("Processed = %d, want 0", result.Processed)
	}

	status := h.processor.GetStatus()
	if status.LastTickAt == nil {
		t.Error("LastTickAt not recorded")
	}
}

func TestTick_ProcessesOneEntryPerAgent(t *testing.T) {
	h := setupHarness(t)
	agent := h.seedAgent(t, "worker", models.RoleArchitecton)

	first := h.seedQueuedTask(t, "first", agent, 3)
	second := h.seedQueuedTask(t, "second", agent, 3)

	result, err := h.processor.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if result.Processed != 1 || result.Succeeded != 1 {
		t.Fatalf("result = %+v, want exactly one success", result)
	}

	// FIFO: the first task ran, the second is still pending.
	e1, _ := h.queue.Get(first.ID)
	e2, _ := h.queue.Get(second.ID)
	if e1.Status != models.QueueCompleted {
		t.Errorf("first entry = %q, want completed", e1.Status)
	}
	if e2.Status != models.QueuePending {
		t.Errorf("second entry = %q, want pending", e2.Status)
	}

	got, _ := h.db.GetTask(first.ID)
	if got.Status != models.TaskStatusDone {
		t.Errorf("first task = %q, want done", got.Status)
	}
}

func TestTick_MultipleAgentsInOnePass(t *testing.T) {
	h := setupHarness(t)
	builder := h.seedAgent(t, "builder", models.RoleArchitecton)
	designer := h.seedAgent(t, "designer", models.RolePixel)

	h.seedQueuedTask(t, "backend work", builder, 3)
	h.seedQueuedTask(t, "frontend work", designer, 3)

	result, err := h.processor.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if result.Processed != 2 || result.Succeeded != 2 {
		t.Errorf("result = %+v, want two successes", result)
	}
}

func TestTick_RetriesUntilSuccess(t *testing.T) {
	h := setupHarness(t)
	agent := h.seedAgent(t, "flaky", models.RoleSentinel)

	runs := 0
	h.registry.Register(stepCapability(models.RoleSentinel, func(context.Context, *models.Task) (string, error) {
		runs++
		if runs <= 2 {
			return "", errors.New("transient failure")
		}
		return "finally", nil
	}))

	task := h.seedQueuedTask(t, "flaky task", agent, 3)

	// First two ticks fail and hand the entry back as pending.
	for i := 1; i <= 2; i++ {
		result, err := h.processor.Tick(context.Background())
		if err != nil {
			t.Fatalf("Tick %d failed: %v", i, err)
		}
		if result.Failed != 1 {
			t.Fatalf("tick %d result = %+v, want one failure", i, result)
		}
		entry, _ := h.queue.Get(task.ID)
		if entry.Status != models.QueuePending {
			t.Fatalf("after tick %d entry = %q, want pending for retry", i, entry.Status)
		}
		if entry.Attempts != i {
			t.Fatalf("after tick %d attempts = %d, want %d", i, entry.Attempts, i)
		}
	}

	// Third attempt succeeds.
	result, err := h.processor.Tick(context.Background())
	if err != nil {
		t.Fatalf("third Tick failed: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("third tick result = %+v, want success", result)
	}
	entry, _ := h.queue.Get(task.ID)
	if entry.Status != models.QueueCompleted {
		t.Errorf("entry = %q, want completed", entry.Status)
	}
}

func TestTick_ExhaustedAttemptsBlockTask(t *testing.T) {
	h := setupHarness(t)
	agent := h.seedAgent(t, "doomed", models.RoleSentinel)

	h.registry.Register(stepCapability(models.RoleSentinel, func(context.Context, *models.Task) (string, error) {
		return "", errors.New("permanent failure")
	}))

	task := h.seedQueuedTask(t, "hopeless task", agent, 2)

	for i := 0; i < 2; i++ {
		if _, err := h.processor.Tick(context.Background()); err != nil {
			t.Fatalf("Tick failed: %v", err)
		}
	}

	entry, _ := h.queue.Get(task.ID)
	if entry.Status != models.QueueFailed {
		t.Fatalf("entry = %q, want failed after max attempts", entry.Status)
	}

	got, _ := h.db.GetTask(task.ID)
	if got.Status != models.TaskStatusBlocked {
		t.Errorf("task = %q, want blocked", got.Status)
	}

	ag, _ := h.db.GetAgent(agent.ID)
	if ag.TasksCompleted != 2 {
		t.Errorf("TasksCompleted = %d, want 2 recorded outcomes", ag.TasksCompleted)
	}
	if ag.SuccessRate != 0 {
		t.Errorf("SuccessRate = %f, want 0", ag.SuccessRate)
	}
}

func TestTick_ConcurrentNoDoubleClaim(t *testing.T) {
	h := setupHarness(t)
	agent := h.seedAgent(t, "contested", models.RoleArchitecton)
	task := h.seedQueuedTask(t, "single entry", agent, 3)

	const tickers = 4
	results := make([]*TickResult, tickers)
	var wg sync.WaitGroup
	for i := 0; i < tickers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := h.processor.Tick(context.Background())
			if err != nil {
				t.Errorf("Tick failed: %v", err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		if r != nil {
			total += r.Processed
		}
	}
	if total != 1 {
		t.Errorf("total processed across concurrent ticks = %d, want 1", total)
	}

	entry, _ := h.queue.Get(task.ID)
	if entry.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", entry.Attempts)
	}
}

func TestRunner_BoundedLoop(t *testing.T) {
	h := setupHarness(t)
	agent := h.seedAgent(t, "looper", models.RoleArchitecton)
	task := h.seedQueuedTask(t, "loop work", agent, 3)

	h.processor.Start()
	runner := NewRunner(h.processor, RunnerConfig{
		MaxIterations: 3,
		Delay:         time.Millisecond,
		Logger:        NopLogger(),
	})

	if !runner.Launch(context.Background()) {
		t.Fatal("Launch refused")
	}
	// A second launch while running is refused.
	if runner.Launch(context.Background()) {
		t.Error("second Launch should be refused while running")
	}
	runner.Wait()

	if runner.Running() {
		t.Error("Running() = true after Wait")
	}
	entry, _ := h.queue.Get(task.ID)
	if entry.Status != models.QueueCompleted {
		t.Errorf("entry = %q, want completed after loop", entry.Status)
	}
}

func TestRunner_MonitorStopsEarly(t *testing.T) {
	h := setupHarness(t)

	ticks := 0
	h.processor.Start()
	runner := NewRunner(h.processor, RunnerConfig{
		MaxIterations: 50,
		Delay:         time.Millisecond,
		Logger:        NopLogger(),
		Monitor: func(context.Context) (bool, error) {
			ticks++
			return ticks >= 2, nil
		},
	})

	runner.Launch(context.Background())
	runner.Wait()

	if ticks != 2 {
		t.Errorf("monitor observed %d iterations, want early stop at 2", ticks)
	}
}

func TestRunner_StopCancels(t *testing.T) {
	h := setupHarness(t)

	h.processor.Start()
	runner := NewRunner(h.processor, RunnerConfig{
		MaxIterations: 1000,
		Delay:         50 * time.Millisecond,
		Logger:        NopLogger(),
	})

	runner.Launch(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return; cancellation-aware sleep broken")
	}
}

func TestTick_PausedRunNeverExceedsAttemptBound(t *testing.T) {
	h := setupHarness(t)
	agent := h.seedAgent(t, "parker", models.RoleSentinel)

	h.registry.Register(stepCapability(models.RoleSentinel, func(_ context.Context, tk *models.Task) (string, error) {
		exec, err := h.db.GetLatestExecutionByTask(tk.ID)
		if err != nil {
			return "", err
		}
		if err := h.engine.PauseExecution(exec.ID); err != nil {
			return "", err
		}
		return "parked", nil
	}))

	task := h.seedQueuedTask(t, "always parked", agent, 2)

	// The first pause hands the entry back with its attempt consumed.
	if _, err := h.processor.Tick(context.Background()); err != nil {
		t.Fatalf("first Tick failed: %v", err)
	}
	entry, _ := h.queue.Get(task.ID)
	if entry.Status != models.QueuePending {
		t.Fatalf("after first tick entry = %q, want pending", entry.Status)
	}
	if entry.Attempts != 1 {
		t.Fatalf("after first tick attempts = %d, want 1", entry.Attempts)
	}

	// A pause on the final attempt pins the entry instead of leaving it
	// claimable past the bound.
	if _, err := h.processor.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick failed: %v", err)
	}
	entry, _ = h.queue.Get(task.ID)
	if entry.Status != models.QueueFailed {
		t.Errorf("after second tick entry = %q, want failed", entry.Status)
	}
	if entry.Attempts > entry.MaxAttempts {
		t.Errorf("attempts = %d exceeds max %d", entry.Attempts, entry.MaxAttempts)
	}

	// Nothing is left to claim.
	result, err := h.processor.Tick(context.Background())
	if err != nil {
		t.Fatalf("third Tick failed: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("third tick processed %d entries, want 0", result.Processed)
	}
	entry, _ = h.queue.Get(task.ID)
	if entry.Attempts != entry.MaxAttempts {
		t.Errorf("attempts = %d, want pinned at %d", entry.Attempts, entry.MaxAttempts)
	}
}
