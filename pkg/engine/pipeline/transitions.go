package pipeline

// Next is the single transition table of the pipeline. Every edge is
// unconditional except entry (simulated input skips analysis) and
// reaction-analysis (reaction-execution only when someone responds).
func Next(current StageName, exec *Execution) StageName {
	switch current {
	case StageEntry:
		if exec.Input.Simulated {
			return StageReactionAnalysis
		}
		return StageIntentAnalysis
	case StageIntentAnalysis:
		return StageContextEnrichment
	case StageContextEnrichment:
		return StageActionResolution
	case StageActionResolution:
		return StageReactionAnalysis
	case StageReactionAnalysis:
		if len(exec.State.RespondingParticipants()) > 0 {
			return StageReactionExecution
		}
		return StageLocationResolution
	case StageReactionExecution:
		return StageLocationResolution
	case StageLocationResolution:
		return StageNarrativeGeneration
	default:
		return StageTerminal
	}
}
