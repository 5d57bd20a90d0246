package core

import "fmt"

// ExecutionBudget bounds an executor run. All limits must be positive;
// exceeding any one of them terminates the run with a bounded failure instead
// of looping indefinitely. The zero value is invalid on purpose so callers
// cannot accidentally run unbounded.
type ExecutionBudget struct {
	// MaxRetriesPerStep limits retries of a single reasoning step before the
	// step is abandoned.
	MaxRetriesPerStep int
	// TotalMaxRetries limits retries accumulated across the whole run.
	TotalMaxRetries int
	// MaxIterations limits reasoning iterations per run.
	MaxIterations int
}

// DefaultBudget returns the budget applied by the request facade.
func DefaultBudget() ExecutionBudget {
	return ExecutionBudget{MaxRetriesPerStep: 3, TotalMaxRetries: 10, MaxIterations: 20}
}

// Validate returns an error unless all three limits are positive.
func (b ExecutionBudget) Validate() error {
	if b.MaxRetriesPerStep <= 0 {
		return fmt.Errorf("max retries per step must be positive, got %d", b.MaxRetriesPerStep)
	}
	if b.TotalMaxRetries <= 0 {
		return fmt.Errorf("total max retries must be positive, got %d", b.TotalMaxRetries)
	}
	if b.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", b.MaxIterations)
	}
	return nil
}

// BudgetTracker accounts retries and iterations against an ExecutionBudget.
// It is used by a single run goroutine and needs no locking.
type BudgetTracker struct {
	budget       ExecutionBudget
	iterations   int
	stepRetries  int
	totalRetries int
}

// NewBudgetTracker creates a tracker for one run.
func NewBudgetTracker(budget ExecutionBudget) *BudgetTracker {
	return &BudgetTracker{budget: budget}
}

// StartIteration counts a new reasoning iteration and resets the per-step
// retry counter. It returns an error once the iteration limit is exceeded.
func (t *BudgetTracker) StartIteration() error {
	t.iterations++
	t.stepRetries = 0
	if t.iterations > t.budget.MaxIterations {
		return fmt.Errorf("exceeded max iterations: %d", t.budget.MaxIterations)
	}
	return nil
}

// RecordRetry counts a failed step against both the per-step and the total
// retry limits. It reports whether the current step should be abandoned and
// returns an error once the run-wide retry limit is exceeded.
func (t *BudgetTracker) RecordRetry() (abandonStep bool, err error) {
	t.stepRetries++
	t.totalRetries++
	if t.totalRetries > t.budget.TotalMaxRetries {
		return true, fmt.Errorf("exceeded total max retries: %d", t.budget.TotalMaxRetries)
	}
	return t.stepRetries > t.budget.MaxRetriesPerStep, nil
}

// Iterations returns the number of iterations started so far.
func (t *BudgetTracker) Iterations() int { return t.iterations }

// TotalRetries returns the retries accumulated across the run.
func (t *BudgetTracker) TotalRetries() int { return t.totalRetries }
