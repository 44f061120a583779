// ABOUTME: Lifecycle events emitted by the orchestrator during a pipeline run.
// ABOUTME: An optional callback receives them; the CLI renders them as progress output.
package pipeline

import "time"

// EventType identifies the kind of orchestrator lifecycle event.
type EventType string

const (
	EventPipelineStarted   EventType = "pipeline.started"
	EventPipelineCompleted EventType = "pipeline.completed"
	EventPipelinePaused    EventType = "pipeline.paused"
	EventPipelineBlocked   EventType = "pipeline.blocked"
	EventPipelineFailed    EventType = "pipeline.failed"
	EventStageStarted      EventType = "stage.started"
	EventStageCompleted    EventType = "stage.completed"
	EventStageFailed       EventType = "stage.failed"
	EventStageSkipped      EventType = "stage.skipped"
	EventStageRetrying     EventType = "stage.retrying"
	EventStageRepairing    EventType = "stage.repairing"
	EventCheckpointSaved   EventType = "checkpoint.saved"
)

// Event is one lifecycle event with optional per-event data.
type Event struct {
	Type      EventType
	Stage     string
	Data      map[string]any
	Timestamp time.Time
}

// EventHandler receives orchestrator events. Handlers must be fast; they run
// inline on the orchestrator goroutine.
type EventHandler func(Event)
