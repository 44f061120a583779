// ABOUTME: Wires all nine book stages and their gates into a pipeline registry.
package book

import "github.com/2389-research/tome/pipeline"

// Register installs every book stage and its gate. The generator backs all
// LLM stages; continuity and assemble run locally.
func Register(reg *pipeline.Registry, gen Generator, opts Options) {
	reg.Register(NewConceptStage(gen, opts))
	reg.RegisterGate(StageConcept, conceptGate(opts))

	reg.Register(NewWorldStage(gen, opts))
	reg.RegisterGate(StageWorld, worldGate(opts))

	reg.Register(NewBeatsStage(gen, opts))
	reg.RegisterGate(StageBeats, beatsGate(opts))

	reg.Register(NewCharactersStage(gen, opts))
	reg.RegisterGate(StageCharacters, charactersGate(opts))

	reg.Register(NewScenesStage(gen, opts))
	reg.RegisterGate(StageScenes, sceneSetGate(StageScenes, opts))

	reg.Register(NewRefineStage(gen, opts))
	reg.RegisterGate(StageRefine, sceneSetGate(StageRefine, opts))

	reg.Register(NewContinuityStage())
	reg.RegisterGate(StageContinuity, continuityGate(opts))

	reg.Register(NewHumanizeStage(gen, opts))
	reg.RegisterGate(StageHumanize, sceneSetGate(StageHumanize, opts))

	reg.Register(NewAssembleStage())
	reg.RegisterGate(StageAssemble, assembleGate(opts))
}
