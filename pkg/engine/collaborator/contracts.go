// Package collaborator defines the external capabilities the pipeline
// stages call out to. Each stage depends on exactly one of these.
package collaborator

import (
	"context"

	"narrative-engine-be/pkg/store"
)

// EnrichedContext is merged into the session's scratch area
type EnrichedContext map[string]any

// Directives steer the narrative generator for the current turn
type Directives struct {
	Input                 string                   `json:"input"`
	Simulated             bool                     `json:"simulated"`
	JustTransitioned      bool                     `json:"just_transitioned"`
	TransitionRejection   string                   `json:"transition_rejection,omitempty"`
	Outcomes              []store.ActionOutcome    `json:"outcomes"`
	Reactions             []store.ReactionDecision `json:"reactions,omitempty"`
	LocationDecision      *store.LocationDecision  `json:"location_decision,omitempty"`
	RemainingShortActions int                      `json:"remaining_short_actions"`
}

// NarrativeResult is what the terminal stage produces
type NarrativeResult struct {
	NarrativeText string   `json:"narrative_text"`
	RevealedFacts []string `json:"revealed_facts"`
}

type IntentAnalyzer interface {
	AnalyzeIntent(ctx context.Context, rawInput string, snapshot *store.SessionState) (*store.IntentAnalysis, error)
}

type ContextEnricher interface {
	Enrich(ctx context.Context, snapshot *store.SessionState, intent *store.IntentAnalysis) (EnrichedContext, error)
}

type ActionResolver interface {
	ResolveActions(ctx context.Context, snapshot *store.SessionState, intent *store.IntentAnalysis, rawInput string) ([]store.ActionOutcome, error)
}

type ReactionAnalyzer interface {
	AnalyzeReactions(ctx context.Context, snapshot *store.SessionState, text string) ([]store.ReactionDecision, error)
}

type LocationDecider interface {
	DecideLocation(ctx context.Context, snapshot *store.SessionState) (*store.LocationDecision, error)
}

type NarrativeGenerator interface {
	GenerateNarrative(ctx context.Context, snapshot *store.SessionState, directives Directives) (*NarrativeResult, error)
}
