// ABOUTME: Bounded fan-out helper for stages that issue independent LLM calls concurrently.
// ABOUTME: Tasks write results into caller-owned slots by index so merges are deterministic.
package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FanOut runs tasks concurrently with at most limit in flight. The first
// task error cancels the rest and is returned. Tasks receive the group
// context and must write their results into caller-owned, index-keyed slots
// so the merged result is the same regardless of completion order.
func FanOut(ctx context.Context, limit int, tasks []func(context.Context) error) error {
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return task(gctx)
		})
	}
	return g.Wait()
}

// BudgetGuard enforces a remaining-budget ceiling across concurrent branch
// work. The pre-call check plus post-call charge prevents racing branches
// from overshooting the hard budget by more than one in-flight call each.
type BudgetGuard struct {
	mu        sync.Mutex
	remaining float64
}

// NewBudgetGuard creates a guard with the given remaining budget in USD.
func NewBudgetGuard(remainingUSD float64) *BudgetGuard {
	return &BudgetGuard{remaining: remainingUSD}
}

// Check returns ErrBudgetExhausted if no budget remains for another call.
func (b *BudgetGuard) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return ErrBudgetExhausted
	}
	return nil
}

// Charge records the actual cost of a completed call.
func (b *BudgetGuard) Charge(costUSD float64) {
	if costUSD <= 0 {
		return
	}
	b.mu.Lock()
	b.remaining -= costUSD
	b.mu.Unlock()
}

// Remaining returns the budget left in USD. May be negative after a final
// call lands over the line; callers treat non-positive as exhausted.
func (b *BudgetGuard) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
