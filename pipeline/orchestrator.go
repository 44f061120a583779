// ABOUTME: Pipeline orchestrator: sequences stages in dependency order with budget, retry,
// ABOUTME: repair, checkpoint-then-advance, and resume semantics. Failures are data, not panics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
)

// Clock abstracts time for the orchestrator so retry backoff is testable.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Sleep waits for d, returning early if the context is cancelled.
func (systemClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Orchestrator executes stage definitions against a GenerationState. All
// collaborators are injected; it holds no process-wide state.
type Orchestrator struct {
	registry *Registry
	store    CheckpointStore
	clock    Clock
	retry    RetryPolicy
	events   EventHandler
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the system clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithRetryPolicy sets the infrastructure retry policy for stage execution.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// WithEventHandler sets the lifecycle event callback.
func WithEventHandler(h EventHandler) Option {
	return func(o *Orchestrator) { o.events = h }
}

// NewOrchestrator creates an orchestrator over the given stage registry and
// checkpoint store.
func NewOrchestrator(registry *Registry, store CheckpointStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		store:    store,
		clock:    systemClock{},
		retry:    RetryPolicyStandard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the definitions from state.StageIndex forward under the hard
// budget. Configuration and dependency errors return as Go errors before or
// between stages, never consuming budget; every execution failure is encoded
// in the returned state's Status and ErrorLog so the caller can always
// persist and resume. Cancellation is honored at stage boundaries only.
func (o *Orchestrator) Run(ctx context.Context, state *GenerationState, defs []StageDefinition, budgetUSD float64) (*GenerationState, error) {
	order, err := ExecutionOrder(defs)
	if err != nil {
		return state, err
	}
	for _, def := range order {
		if o.registry.Get(def.Name) == nil {
			return state, &ConfigurationError{Message: fmt.Sprintf("no stage registered for %q", def.Name)}
		}
	}
	if state.StageIndex > len(order) {
		return state, &ConfigurationError{Message: fmt.Sprintf("stage_index %d exceeds pipeline length %d", state.StageIndex, len(order))}
	}

	state.Status = StatusRunning
	o.emit(Event{Type: EventPipelineStarted, Data: map[string]any{"project_id": state.ProjectID, "from_stage": state.StageIndex}})

	for i := state.StageIndex; i < len(order); i++ {
		def := order[i]

		// Cancellation is checked at stage boundaries only; an in-flight
		// LLM call completes or times out naturally.
		if ctx.Err() != nil {
			return o.pause(ctx, state, "cancelled"), nil
		}

		for _, dep := range def.DependsOn {
			if _, ok := state.Output(dep); !ok && !state.StageFailed(dep) {
				return state, &DependencyError{Stage: def.Name, Missing: dep}
			}
		}

		// Budget is a precondition, not a post-hoc check.
		if state.Cost()+def.EstimatedCostUSD > budgetUSD {
			return o.pause(ctx, state, fmt.Sprintf("stage %q estimated $%.4f would exceed budget $%.4f (spent $%.4f)",
				def.Name, def.EstimatedCostUSD, budgetUSD, state.Cost())), nil
		}

		o.emit(Event{Type: EventStageStarted, Stage: def.Name})

		cfg := StageConfig{Definition: def, Attempt: 1, BudgetRemainingUSD: budgetUSD - state.Cost()}
		delta, execErr := o.executeWithRetry(ctx, def, state, cfg)
		if errors.Is(execErr, ErrBudgetExhausted) {
			return o.pause(ctx, state, fmt.Sprintf("stage %q stopped at the budget ceiling", def.Name)), nil
		}
		if execErr != nil {
			state.RecordError(def.Name, 1, KindPermanent, execErr.Error())
			o.emit(Event{Type: EventStageFailed, Stage: def.Name, Data: map[string]any{"reason": execErr.Error()}})
			if def.Blocking {
				return o.block(ctx, state, def.Name, execErr.Error()), nil
			}
			o.emit(Event{Type: EventStageSkipped, Stage: def.Name})
			if !o.advance(ctx, state, i+1) {
				return state, nil
			}
			continue
		}

		state.SetOutput(def.Name, delta.Output)
		state.AddCost(delta.CostUSD)

		if gate := o.registry.GateFor(def.Name); gate != nil {
			switch o.runGateLoop(ctx, state, def, gate, budgetUSD) {
			case gatePaused:
				return state, nil
			case gateBlocked:
				return o.block(ctx, state, def.Name, "quality gate blocked"), nil
			case gateFailedNonBlocking:
				// The stage's output stands but it did not complete cleanly;
				// downstream stages decide whether to use it.
				o.emit(Event{Type: EventStageSkipped, Stage: def.Name})
				if !o.advance(ctx, state, i+1) {
					return state, nil
				}
				continue
			}
		}

		o.emit(Event{Type: EventStageCompleted, Stage: def.Name, Data: map[string]any{"cost_usd": delta.CostUSD}})

		if !o.advance(ctx, state, i+1) {
			return state, nil
		}
	}

	state.Status = StatusComplete
	if err := o.store.Save(o.saveCtx(ctx), state.ProjectID, state); err != nil {
		state.RecordError("", 0, KindPermanent, fmt.Sprintf("final checkpoint save failed: %v", err))
	}
	o.emit(Event{Type: EventPipelineCompleted, Data: map[string]any{"cost_usd": state.Cost()}})
	return state, nil
}

// gateOutcome summarizes how the gate/repair loop ended.
type gateOutcome int

const (
	gatePassed gateOutcome = iota
	gateFailedNonBlocking
	gateBlocked
	gatePaused
)

// runGateLoop evaluates the stage's gate and drives the bounded repair loop:
// RUNNING -> REPAIRING -> {PASSED, BLOCKED}. Every repair verdict appends a
// quality record; attempts are capped at 1 + MaxRepairAttempts invocations.
func (o *Orchestrator) runGateLoop(ctx context.Context, state *GenerationState, def StageDefinition, gate Gate, budgetUSD float64) gateOutcome {
	attempt := 1
	out, _ := state.Output(def.Name)
	verdict := gate.Evaluate(def.Name, out, state)
	o.recordScore(state, def.Name, attempt, verdict)

	for {
		switch verdict.Kind {
		case VerdictPass:
			return gatePassed

		case VerdictBlock:
			state.RecordError(def.Name, attempt, KindPermanent, verdict.Reason)
			o.emit(Event{Type: EventStageFailed, Stage: def.Name, Data: map[string]any{"reason": verdict.Reason}})
			if def.Blocking {
				return gateBlocked
			}
			return gateFailedNonBlocking

		case VerdictRepair:
			msg := "gate repair requested"
			if len(verdict.Deficiencies) > 0 {
				worst := verdict.Deficiencies[0]
				msg = fmt.Sprintf("gate repair requested: %s observed %.3f, threshold %.3f (%d deficiencies)",
					worst.Metric, worst.Observed, worst.Threshold, len(verdict.Deficiencies))
			}
			state.RecordError(def.Name, attempt, KindQuality, msg)

			if attempt >= 1+def.MaxRepairAttempts {
				o.emit(Event{Type: EventStageFailed, Stage: def.Name, Data: map[string]any{"reason": "repair attempts exhausted"}})
				if def.Blocking {
					return gateBlocked
				}
				return gateFailedNonBlocking
			}

			if state.Cost()+def.EstimatedCostUSD > budgetUSD {
				o.pause(ctx, state, fmt.Sprintf("stage %q repair would exceed budget", def.Name))
				return gatePaused
			}

			attempt++
			o.emit(Event{Type: EventStageRepairing, Stage: def.Name, Data: map[string]any{"attempt": attempt}})

			cfg := StageConfig{
				Definition:         def,
				Attempt:            attempt,
				Deficiencies:       verdict.Deficiencies,
				BudgetRemainingUSD: budgetUSD - state.Cost(),
			}
			delta, execErr := o.executeWithRetry(ctx, def, state, cfg)
			if errors.Is(execErr, ErrBudgetExhausted) {
				o.pause(ctx, state, fmt.Sprintf("stage %q repair stopped at the budget ceiling", def.Name))
				return gatePaused
			}
			if execErr != nil {
				state.RecordError(def.Name, attempt, KindPermanent, execErr.Error())
				o.emit(Event{Type: EventStageFailed, Stage: def.Name, Data: map[string]any{"reason": execErr.Error()}})
				if def.Blocking {
					return gateBlocked
				}
				return gateFailedNonBlocking
			}

			state.SetOutput(def.Name, delta.Output)
			state.AddCost(delta.CostUSD)

			out, _ = state.Output(def.Name)
			verdict = gate.Evaluate(def.Name, out, state)
			o.recordScore(state, def.Name, attempt, verdict)
		}
	}
}

func (o *Orchestrator) recordScore(state *GenerationState, stage string, attempt int, v Verdict) {
	state.AddQualityScore(stage, QualityScore{
		Attempt:    attempt,
		Score:      v.Score,
		Breakdown:  v.Breakdown,
		Verdict:    string(v.Kind),
		RecordedAt: o.clock.Now().UTC(),
	})
}

// executeWithRetry runs one stage invocation under the infrastructure retry
// policy. Transient errors are absorbed up to the ceiling, then escalated to
// permanent. ErrBudgetExhausted is never retried.
func (o *Orchestrator) executeWithRetry(ctx context.Context, def StageDefinition, state *GenerationState, cfg StageConfig) (*StateDelta, error) {
	stage := o.registry.Get(def.Name)
	policy := o.retry
	shouldRetry := policy.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		delta, err := o.safeExecute(ctx, stage, def, state, cfg)
		if err == nil {
			if delta == nil {
				return nil, Permanent(fmt.Sprintf("stage %q returned no delta", def.Name), nil)
			}
			return delta, nil
		}
		if errors.Is(err, ErrBudgetExhausted) {
			return nil, err
		}
		lastErr = err
		if attempt < maxAttempts && shouldRetry(err) {
			o.emit(Event{Type: EventStageRetrying, Stage: def.Name, Data: map[string]any{"attempt": attempt, "error": err.Error()}})
			o.clock.Sleep(ctx, policy.Backoff.DelayForAttempt(attempt-1))
			continue
		}
		break
	}

	if Classify(lastErr) == KindTransient {
		return nil, Permanent(fmt.Sprintf("stage %q retry ceiling exhausted after %d attempt(s)", def.Name, maxAttempts), lastErr)
	}
	return nil, lastErr
}

// safeExecute wraps Stage.Execute with the per-stage timeout and panic
// recovery so one misbehaving stage cannot crash the run.
func (o *Orchestrator) safeExecute(ctx context.Context, stage Stage, def StageDefinition, state *GenerationState, cfg StageConfig) (delta *StateDelta, err error) {
	execCtx := ctx
	if def.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			delta = nil
			err = Permanent(fmt.Sprintf("stage %q panicked: %v\n%s", def.Name, r, debug.Stack()), nil)
		}
	}()
	return stage.Execute(execCtx, state, cfg)
}

// saveCtx detaches checkpoint writes from run cancellation. A completed
// stage's work is already paid for; aborting the run must never prevent
// persisting it.
func (o *Orchestrator) saveCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// advance persists the checkpoint and only then commits the index. A failed
// save reverts the index so durable state never runs ahead of or behind the
// checkpoint; the run ends FAILED and can be resumed from the last snapshot.
func (o *Orchestrator) advance(ctx context.Context, state *GenerationState, next int) bool {
	prev := state.StageIndex
	state.StageIndex = next
	if err := o.store.Save(o.saveCtx(ctx), state.ProjectID, state); err != nil {
		state.StageIndex = prev
		state.RecordError("", 0, KindPermanent, fmt.Sprintf("checkpoint save failed: %v", err))
		state.Status = StatusFailed
		o.emit(Event{Type: EventPipelineFailed, Data: map[string]any{"error": err.Error()}})
		return false
	}
	o.emit(Event{Type: EventCheckpointSaved, Data: map[string]any{"stage_index": next}})
	return true
}

// pause suspends the run deliberately. Not an error: the caller may resume
// with an increased budget.
func (o *Orchestrator) pause(ctx context.Context, state *GenerationState, reason string) *GenerationState {
	state.Status = StatusPaused
	if err := o.store.Save(o.saveCtx(ctx), state.ProjectID, state); err != nil {
		state.RecordError("", 0, KindPermanent, fmt.Sprintf("checkpoint save on pause failed: %v", err))
	}
	o.emit(Event{Type: EventPipelinePaused, Data: map[string]any{"reason": reason}})
	return state
}

func (o *Orchestrator) block(ctx context.Context, state *GenerationState, stage, reason string) *GenerationState {
	state.Status = StatusBlocked
	if err := o.store.Save(o.saveCtx(ctx), state.ProjectID, state); err != nil {
		state.RecordError("", 0, KindPermanent, fmt.Sprintf("checkpoint save on block failed: %v", err))
	}
	o.emit(Event{Type: EventPipelineBlocked, Stage: stage, Data: map[string]any{"reason": reason}})
	return state
}

func (o *Orchestrator) emit(evt Event) {
	if o.events == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = o.clock.Now()
	}
	o.events(evt)
}

// Rollback rewinds a state so the named stage (and everything ordered after
// it) re-runs on the next Run call. Outputs and quality scores of the
// rewound stages are dropped; the error log and cost total are preserved
// (cost never decreases). The orchestrator itself never calls this; it is
// the explicit-rollback path for operators.
func Rollback(state *GenerationState, defs []StageDefinition, stageName string) error {
	order, err := ExecutionOrder(defs)
	if err != nil {
		return err
	}
	idx := -1
	for i, def := range order {
		if def.Name == stageName {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &ConfigurationError{Message: fmt.Sprintf("rollback target %q not in pipeline", stageName)}
	}
	for i := idx; i < len(order); i++ {
		delete(state.StageOutputs, order[i].Name)
		delete(state.QualityScores, order[i].Name)
	}
	if state.StageIndex > idx {
		state.StageIndex = idx
	}
	state.Status = StatusPending
	return nil
}
