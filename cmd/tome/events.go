// ABOUTME: Human-readable rendering of pipeline lifecycle events and checkpoint status.
package main

import (
	"fmt"
	"io"

	"github.com/2389-research/tome/book"
	"github.com/2389-research/tome/pipeline"
)

// eventPrinter renders pipeline lifecycle events as one line each.
func eventPrinter(w io.Writer) pipeline.EventHandler {
	return func(evt pipeline.Event) {
		switch evt.Type {
		case pipeline.EventPipelineStarted:
			fmt.Fprintf(w, "[pipeline] started from stage %v\n", evt.Data["from_stage"])
		case pipeline.EventStageStarted:
			fmt.Fprintf(w, "[stage] %s started\n", evt.Stage)
		case pipeline.EventStageCompleted:
			fmt.Fprintf(w, "[stage] %s completed ($%.4f)\n", evt.Stage, costOf(evt))
		case pipeline.EventStageRetrying:
			fmt.Fprintf(w, "[stage] %s retrying (attempt %v): %v\n", evt.Stage, evt.Data["attempt"], evt.Data["error"])
		case pipeline.EventStageRepairing:
			fmt.Fprintf(w, "[stage] %s repairing (attempt %v)\n", evt.Stage, evt.Data["attempt"])
		case pipeline.EventStageFailed:
			fmt.Fprintf(w, "[stage] %s failed: %v\n", evt.Stage, evt.Data["reason"])
		case pipeline.EventStageSkipped:
			fmt.Fprintf(w, "[stage] %s skipped, continuing without it\n", evt.Stage)
		case pipeline.EventCheckpointSaved:
			fmt.Fprintf(w, "[checkpoint] saved at stage index %v\n", evt.Data["stage_index"])
		case pipeline.EventPipelinePaused:
			fmt.Fprintf(w, "[pipeline] paused: %v\n", evt.Data["reason"])
		case pipeline.EventPipelineBlocked:
			fmt.Fprintf(w, "[pipeline] blocked at %s: %v\n", evt.Stage, evt.Data["reason"])
		case pipeline.EventPipelineCompleted:
			fmt.Fprintf(w, "[pipeline] completed ($%.4f total)\n", costOf(evt))
		case pipeline.EventPipelineFailed:
			fmt.Fprintf(w, "[pipeline] failed: %v\n", evt.Data["error"])
		}
	}
}

// printStatus summarizes a checkpoint for the status command.
func printStatus(w io.Writer, state *pipeline.GenerationState) {
	fmt.Fprintf(w, "project:     %s\n", state.ProjectID)
	fmt.Fprintf(w, "status:      %s\n", state.Status)
	fmt.Fprintf(w, "stage index: %d\n", state.StageIndex)
	fmt.Fprintf(w, "cost spent:  $%.4f\n", state.Cost())
	fmt.Fprintf(w, "updated:     %s\n", state.UpdatedAt.Format("2006-01-02 15:04:05 MST"))

	if len(state.StageOutputs) > 0 {
		fmt.Fprintf(w, "outputs:\n")
		for name, out := range state.StageOutputs {
			fmt.Fprintf(w, "  %s (%s, %d bytes)\n", name, out.Kind, len(out.Payload))
		}
	}
	if out, ok := state.Output(book.StageAssemble); ok {
		var m book.Manuscript
		if err := book.Decode(out, book.KindManuscript, &m); err == nil {
			fmt.Fprintf(w, "manuscript:  %q, %d chapters, %d words\n", m.Title, m.Chapters, m.WordCount)
		}
	}
	if len(state.ErrorLog) > 0 {
		fmt.Fprintf(w, "errors:\n")
		for _, rec := range state.ErrorLog {
			fmt.Fprintf(w, "  [%s] %s attempt %d: %s\n", rec.Kind, rec.Stage, rec.Attempt, rec.Message)
		}
	}
}

func printErrorLog(w io.Writer, state *pipeline.GenerationState) {
	for _, rec := range state.ErrorLog {
		fmt.Fprintf(w, "  [%s] %s attempt %d: %s\n", rec.Kind, rec.Stage, rec.Attempt, rec.Message)
	}
}

func costOf(evt pipeline.Event) float64 {
	v, _ := evt.Data["cost_usd"].(float64)
	return v
}
