package pipeline

import (
	"context"
	"fmt"
	"strings"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/pkg/engine/checkpoint"
	"narrative-engine-be/pkg/engine/collaborator"
	"narrative-engine-be/pkg/store"
)

func ptr[T any](v T) *T {
	return &v
}

// EntryStage opens the turn. External input clears the previous turn's
// working data; simulated input keeps it.
type EntryStage struct{}

func (EntryStage) Name() StageName { return StageEntry }

func (EntryStage) Run(ctx context.Context, exec *Execution) error {
	session := exec.State.Session()
	if !exec.Input.Simulated {
		exec.State.ClearEphemeralTurnState()
		exec.report(ctx, entity.TurnProgress{
			ParticipantId:   ptr(session.Protagonist.ID),
			ParticipantName: ptr(session.Protagonist.Name),
		})
		return nil
	}

	if p, ok := session.Participant(exec.Input.ParticipantID); ok {
		exec.report(ctx, entity.TurnProgress{
			ParticipantId:   ptr(p.ID),
			ParticipantName: ptr(p.Name),
		})
	}
	return nil
}

type IntentStage struct {
	Analyzer collaborator.IntentAnalyzer
}

func (IntentStage) Name() StageName { return StageIntentAnalysis }

func (s IntentStage) Run(ctx context.Context, exec *Execution) error {
	intent, err := s.Analyzer.AnalyzeIntent(ctx, exec.Input.Text, exec.snapshot())
	if err != nil {
		marker := exec.failure(StageIntentAnalysis, err)
		exec.State.ClearIntentAnalysis()
		exec.report(ctx, entity.TurnProgress{IntentAnalysis: &store.IntentAnalysis{
			ActionType: FailureActionType,
			Summary:    marker,
		}})
		return nil
	}

	exec.State.SetIntentAnalysis(intent)
	if intent != nil && intent.ActionType == "move" && strings.TrimSpace(intent.Target) != "" {
		exec.State.SetLocationTransitionRequest(&store.LocationTransitionRequest{
			Target:      store.Location{Name: strings.TrimSpace(intent.Target)},
			Reasoning:   intent.Summary,
			RequestedBy: intent.ActorID,
		})
	}
	exec.report(ctx, entity.TurnProgress{IntentAnalysis: intent})
	return nil
}

type ContextStage struct {
	Enricher collaborator.ContextEnricher
}

func (ContextStage) Name() StageName { return StageContextEnrichment }

func (s ContextStage) Run(ctx context.Context, exec *Execution) error {
	enriched, err := s.Enricher.Enrich(ctx, exec.snapshot(), exec.State.IntentAnalysis())
	if err != nil {
		marker := exec.failure(StageContextEnrichment, err)
		exec.State.MergeScratch(map[string]any{"enrichment_error": marker})
		return nil
	}
	exec.State.MergeScratch(enriched)
	return nil
}

type ActionStage struct {
	Resolver collaborator.ActionResolver
}

func (ActionStage) Name() StageName { return StageActionResolution }

func (s ActionStage) Run(ctx context.Context, exec *Execution) error {
	outcomes, err := s.Resolver.ResolveActions(ctx, exec.snapshot(), exec.State.IntentAnalysis(), exec.Input.Text)
	if err != nil {
		marker := exec.failure(StageActionResolution, err)
		outcomes = []store.ActionOutcome{{
			Action:   exec.Input.Text,
			Result:   marker,
			TimeCost: store.TimeCostInstant,
		}}
	}

	for _, o := range outcomes {
		exec.addOutcome(o)
	}
	exec.report(ctx, entity.TurnProgress{ActionOutcomes: exec.Outcomes})
	return nil
}

type ReactionAnalysisStage struct {
	Analyzer collaborator.ReactionAnalyzer
}

func (ReactionAnalysisStage) Name() StageName { return StageReactionAnalysis }

func (s ReactionAnalysisStage) Run(ctx context.Context, exec *Execution) error {
	decisions, err := s.Analyzer.AnalyzeReactions(ctx, exec.snapshot(), exec.Input.Text)
	if err != nil {
		marker := exec.failure(StageReactionAnalysis, err)
		exec.State.SetReactionDecisions(nil)
		exec.addOutcome(store.ActionOutcome{
			Action:   exec.Input.Text,
			Result:   marker,
			TimeCost: store.TimeCostInstant,
		})
		exec.report(ctx, entity.TurnProgress{ActionOutcomes: exec.Outcomes})
		return nil
	}
	exec.State.SetReactionDecisions(decisions)
	return nil
}

// ReactionExecutionStage resolves one action per responding participant
type ReactionExecutionStage struct {
	Resolver collaborator.ActionResolver
}

func (ReactionExecutionStage) Name() StageName { return StageReactionExecution }

func (s ReactionExecutionStage) Run(ctx context.Context, exec *Execution) error {
	for _, r := range exec.State.RespondingParticipants() {
		intent := &store.IntentAnalysis{
			ActorID:    r.ParticipantID,
			ActionType: "react",
			Summary:    r.Reaction,
		}
		outcomes, err := s.Resolver.ResolveActions(ctx, exec.snapshot(), intent, r.Reaction)
		if err != nil {
			marker := exec.failure(StageReactionExecution, err)
			outcomes = []store.ActionOutcome{{
				ParticipantID:   r.ParticipantID,
				ParticipantName: r.ParticipantName,
				Action:          r.Reaction,
				Result:          marker,
				TimeCost:        store.TimeCostInstant,
			}}
		}
		for _, o := range outcomes {
			if o.ParticipantID == "" {
				o.ParticipantID = r.ParticipantID
				o.ParticipantName = r.ParticipantName
			}
			exec.addOutcome(o)
		}
	}
	exec.report(ctx, entity.TurnProgress{ActionOutcomes: exec.Outcomes})
	return nil
}

// LocationStage decides whether the scene moves. A committed move saves a
// transition checkpoint of the place being left, then restores the local
// history of the destination from its latest checkpoint.
type LocationStage struct {
	Decider     collaborator.LocationDecider
	Checkpoints CheckpointStore
}

func (LocationStage) Name() StageName { return StageLocationResolution }

func (s LocationStage) Run(ctx context.Context, exec *Execution) error {
	session := exec.State.Session()
	if session.CurrentLocation == nil {
		exec.logger.Warn(module, "No current location, skipping location resolution", map[string]interface{}{
			"session_id": exec.SessionID.String(),
		})
		return nil
	}

	decision, err := s.Decider.DecideLocation(ctx, exec.snapshot())
	switch {
	case err != nil:
		decision = &store.LocationDecision{Reasoning: exec.failure(StageLocationResolution, err)}
	case decision == nil:
		exec.logger.Warn(module, "Location decider returned no decision, staying put", map[string]interface{}{
			"session_id": exec.SessionID.String(),
		})
		decision = &store.LocationDecision{}
	}
	exec.LocationDecision = decision

	switch {
	case decision.ShouldTransition && decision.TargetLocation != nil &&
		decision.TargetLocation.Identity() != session.CurrentLocation.Identity():
		s.transition(ctx, exec, *decision.TargetLocation, decision.Reasoning)
	case exec.State.LocationTransitionRequest() != nil:
		exec.State.RejectTransition(decision.Reasoning)
	}

	current := exec.State.Session().CurrentLocation
	exec.report(ctx, entity.TurnProgress{
		LocationDecision: decision,
		LocationId:       ptr(current.ID),
		LocationName:     ptr(current.Name),
		Descriptor:       ptr(current.Description),
	})
	return nil
}

func (s LocationStage) transition(ctx context.Context, exec *Execution, target store.Location, reasoning string) {
	departing := exec.State.Session().CurrentLocation

	if s.Checkpoints != nil {
		name := fmt.Sprintf("Leaving %s", departing.Name)
		if _, err := s.Checkpoints.Save(ctx, exec.State.Session(), name, entity.CheckpointTypeTransition, reasoning); err != nil {
			exec.logger.Warn(module, "Transition checkpoint failed", map[string]interface{}{
				"session_id": exec.SessionID.String(),
				"location":   departing.Name,
				"error":      err.Error(),
			})
		}
	}

	exec.State.CommitLocationTransition(target)
	exec.State.ClearLocationTransitionRequest()

	if s.Checkpoints == nil {
		return
	}
	previous, err := s.Checkpoints.FindLatestForLocation(ctx, exec.SessionID, target)
	if err != nil {
		exec.logger.Warn(module, "Checkpoint lookup failed", map[string]interface{}{
			"session_id": exec.SessionID.String(),
			"location":   target.Name,
			"error":      err.Error(),
		})
		return
	}
	if previous == nil {
		return
	}
	snapshot, err := checkpoint.Decode(previous)
	if err != nil {
		exec.logger.Warn(module, "Checkpoint decode failed", map[string]interface{}{
			"checkpoint_id": previous.Id.String(),
			"error":         err.Error(),
		})
		return
	}
	exec.State.RestoreLocalHistory(snapshot)
}

// NarrativeStage is the terminal stage; its failure fails the turn
type NarrativeStage struct {
	Generator collaborator.NarrativeGenerator
}

func (NarrativeStage) Name() StageName { return StageNarrativeGeneration }

func (s NarrativeStage) Run(ctx context.Context, exec *Execution) error {
	session := exec.State.Session()
	directives := collaborator.Directives{
		Input:                 exec.Input.Text,
		Simulated:             exec.Input.Simulated,
		JustTransitioned:      session.Temp.JustTransitioned,
		TransitionRejection:   exec.State.TransitionRejection(),
		Outcomes:              exec.State.GetAllActionOutcomes(),
		Reactions:             exec.State.RespondingParticipants(),
		LocationDecision:      exec.LocationDecision,
		RemainingShortActions: exec.State.RemainingShortActions(session.Protagonist.ID),
	}

	result, err := s.Generator.GenerateNarrative(ctx, exec.snapshot(), directives)
	if err != nil {
		return err
	}
	if result == nil || strings.TrimSpace(result.NarrativeText) == "" {
		return fmt.Errorf("narrative generator returned no text")
	}

	for _, fact := range result.RevealedFacts {
		exec.State.AppendDiscoveredFact(fact)
	}
	exec.State.ConsumeJustTransitioned()
	exec.Result = result
	return nil
}
