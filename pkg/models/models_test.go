package models

import "testing"

func TestStatusValidity(t *testing.T) {
	if !TaskStatusReview.Valid() || TaskStatus("shipped").Valid() {
		t.Error("TaskStatus.Valid misclassified")
	}
	if !PriorityUrgent.Valid() || TaskPriority("asap").Valid() {
		t.Error("TaskPriority.Valid misclassified")
	}
	if !RolePixel.Valid() || AgentRole("wizard").Valid() {
		t.Error("AgentRole.Valid misclassified")
	}
	if !QueueProcessing.Valid() || QueueStatus("stuck").Valid() {
		t.Error("QueueStatus.Valid misclassified")
	}
	if !ExecPaused.Valid() || ExecutionStatus("sleeping").Valid() {
		t.Error("ExecutionStatus.Valid misclassified")
	}
	if !OrchExecuting.Valid() || OrchestrationStatus("thinking").Valid() {
		t.Error("OrchestrationStatus.Valid misclassified")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []QueueStatus{QueueCompleted, QueueFailed} {
		if !s.Terminal() {
			t.Errorf("QueueStatus %s should be terminal", s)
		}
	}
	for _, s := range []QueueStatus{QueuePending, QueueProcessing} {
		if s.Terminal() {
			t.Errorf("QueueStatus %s should not be terminal", s)
		}
	}

	for _, s := range []ExecutionStatus{ExecCompleted, ExecFailed, ExecCancelled} {
		if !s.Terminal() {
			t.Errorf("ExecutionStatus %s should be terminal", s)
		}
	}
	for _, s := range []ExecutionStatus{ExecQueued, ExecRunning, ExecPaused} {
		if s.Terminal() {
			t.Errorf("ExecutionStatus %s should not be terminal", s)
		}
	}

	if !OrchCompleted.Terminal() || !OrchFailed.Terminal() {
		t.Error("terminal orchestration statuses misclassified")
	}
	if OrchPlanning.Terminal() || OrchExecuting.Terminal() {
		t.Error("live orchestration statuses misclassified as terminal")
	}
}

func TestClampProgress(t *testing.T) {
	cases := []struct{ in, want int }{
		{-5, 0}, {0, 0}, {42, 42}, {100, 100}, {150, 100},
	}
	for _, c := range cases {
		if got := ClampProgress(c.in); got != c.want {
			t.Errorf("ClampProgress(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestPlanAggregates(t *testing.T) {
	plan := Plan{
		Phases: []Phase{
			{Name: "Design", Subtasks: []SubtaskSpec{{Title: "a", Role: RoleArchitecton, EstimatedHours: 2}}},
			{Name: "Build", Subtasks: []SubtaskSpec{
				{Title: "b", Role: RoleArchitecton, EstimatedHours: 4},
				{Title: "c", Role: RolePixel, EstimatedHours: 4},
			}},
		},
	}
	if plan.SubtaskCount() != 3 {
		t.Errorf("SubtaskCount = %d, want 3", plan.SubtaskCount())
	}
	if plan.SumHours() != 10 {
		t.Errorf("SumHours = %f, want 10", plan.SumHours())
	}
}
