package collaborator

import (
	"context"
	"errors"
	"strings"

	"narrative-engine-be/internal/constant"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/engine/extract"
	"narrative-engine-be/pkg/llm"
	"narrative-engine-be/pkg/store"
)

const module = "COLLABORATOR"

var errEmptyNarrative = errors.New("narrative generator returned empty output")

// LLM implements every collaborator contract on top of one LLM provider.
// Structured answers are parsed with extract and re-requested on malformed
// output; after the last attempt each method degrades to a safe default.
type LLM struct {
	provider llm.LLMProvider
	attempts int
	logger   logger.ILogger
}

var (
	_ IntentAnalyzer     = (*LLM)(nil)
	_ ContextEnricher    = (*LLM)(nil)
	_ ActionResolver     = (*LLM)(nil)
	_ ReactionAnalyzer   = (*LLM)(nil)
	_ LocationDecider    = (*LLM)(nil)
	_ NarrativeGenerator = (*LLM)(nil)
)

func NewLLM(provider llm.LLMProvider, attempts int, logger logger.ILogger) *LLM {
	if attempts <= 0 {
		attempts = extract.DefaultAttempts
	}
	return &LLM{provider: provider, attempts: attempts, logger: logger}
}

func (c *LLM) ask(prompt string, temperature float64) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return c.provider.Generate(ctx, prompt, llm.WithTemperature(temperature), llm.WithJSONMode())
	}
}

func (c *LLM) degraded(operation string, raw, reason string) {
	c.logger.Warn(module, "Structured output unusable, using fallback", map[string]interface{}{
		"operation": operation,
		"reason":    reason,
		"raw":       truncate(raw, 200),
	})
}

func (c *LLM) AnalyzeIntent(ctx context.Context, rawInput string, snapshot *store.SessionState) (*store.IntentAnalysis, error) {
	prompt := newPrompt(constant.IntentSystemPrompt).
		section("scene", describeScene(snapshot)).
		section("player_input", rawInput).
		output(constant.IntentOutputSchema).
		String()

	res, err := extract.Retry(ctx, c.attempts, c.ask(prompt, 0), extract.JSON[store.IntentAnalysis])
	if err != nil {
		return nil, err
	}
	if !res.IsOk() {
		c.degraded("intent", res.Raw, res.Reason)
		return &store.IntentAnalysis{ActionType: "other", Summary: strings.TrimSpace(rawInput)}, nil
	}
	intent := res.Value
	if intent.ActorID == "" {
		intent.ActorID = snapshot.Protagonist.ID
	}
	return &intent, nil
}

func (c *LLM) Enrich(ctx context.Context, snapshot *store.SessionState, intent *store.IntentAnalysis) (EnrichedContext, error) {
	prompt := newPrompt(constant.EnrichSystemPrompt).
		section("scene", describeScene(snapshot)).
		section("intent", mustJSON(intent)).
		output(constant.EnrichOutputSchema).
		String()

	res, err := extract.Retry(ctx, c.attempts, c.ask(prompt, 0), extract.JSON[map[string]any])
	if err != nil {
		return nil, err
	}
	if !res.IsOk() {
		c.degraded("enrich", res.Raw, res.Reason)
		return EnrichedContext{"notes": strings.TrimSpace(res.Raw)}, nil
	}
	return EnrichedContext(res.Value), nil
}

type outcomeEnvelope struct {
	Outcomes []store.ActionOutcome `json:"outcomes"`
}

func (c *LLM) ResolveActions(ctx context.Context, snapshot *store.SessionState, intent *store.IntentAnalysis, rawInput string) ([]store.ActionOutcome, error) {
	actorID := snapshot.Protagonist.ID
	if intent != nil && intent.ActorID != "" {
		actorID = intent.ActorID
	}
	actorName := actorID
	if p, ok := snapshot.Participant(actorID); ok {
		actorName = p.Name
	}

	prompt := newPrompt(constant.ActionSystemPrompt).
		section("scene", describeScene(snapshot)).
		section("actor", actorName).
		section("intent", mustJSON(intent)).
		section("input", rawInput).
		section("rules", mustJSON(snapshot.Temp.Scratch)).
		output(constant.ActionOutputSchema).
		String()

	res, err := extract.Retry(ctx, c.attempts, c.ask(prompt, 0.2), extract.JSON[outcomeEnvelope])
	if err != nil {
		return nil, err
	}
	if !res.IsOk() {
		c.degraded("actions", res.Raw, res.Reason)
		return []store.ActionOutcome{{
			ParticipantID:   actorID,
			ParticipantName: actorName,
			Action:          rawInput,
			Result:          strings.TrimSpace(res.Raw),
			TimeCost:        store.TimeCostShort,
		}}, nil
	}

	outcomes := res.Value.Outcomes
	for i := range outcomes {
		if outcomes[i].ParticipantID == "" {
			outcomes[i].ParticipantID = actorID
			outcomes[i].ParticipantName = actorName
		}
		switch outcomes[i].TimeCost {
		case store.TimeCostInstant, store.TimeCostShort, store.TimeCostScene:
		default:
			outcomes[i].TimeCost = store.TimeCostShort
		}
	}
	return outcomes, nil
}

type reactionEnvelope struct {
	Reactions []store.ReactionDecision `json:"reactions"`
}

func (c *LLM) AnalyzeReactions(ctx context.Context, snapshot *store.SessionState, text string) ([]store.ReactionDecision, error) {
	if len(snapshot.Participants) == 0 {
		return nil, nil
	}

	prompt := newPrompt(constant.ReactionSystemPrompt).
		section("scene", describeScene(snapshot)).
		section("characters", describeParticipants(snapshot)).
		section("event", text).
		section("recent_outcomes", mustJSON(snapshot.Temp.ActionOutcomes)).
		output(constant.ReactionOutputSchema).
		String()

	res, err := extract.Retry(ctx, c.attempts, c.ask(prompt, 0.3), extract.JSON[reactionEnvelope])
	if err != nil {
		return nil, err
	}
	if !res.IsOk() {
		c.degraded("reactions", res.Raw, res.Reason)
		return nil, nil
	}

	var out []store.ReactionDecision
	for _, r := range res.Value.Reactions {
		p, ok := snapshot.Participants[r.ParticipantID]
		if !ok {
			continue
		}
		r.ParticipantName = p.Name
		out = append(out, r)
	}
	return out, nil
}

func (c *LLM) DecideLocation(ctx context.Context, snapshot *store.SessionState) (*store.LocationDecision, error) {
	prompt := newPrompt(constant.LocationSystemPrompt).
		section("scene", describeScene(snapshot)).
		section("pending_request", mustJSON(snapshot.Temp.PendingTransition)).
		section("recent_outcomes", mustJSON(snapshot.Temp.ActionOutcomes)).
		output(constant.LocationOutputSchema).
		String()

	res, err := extract.Retry(ctx, c.attempts, c.ask(prompt, 0), extract.JSON[store.LocationDecision])
	if err != nil {
		return nil, err
	}
	if !res.IsOk() {
		c.degraded("location", res.Raw, res.Reason)
		return &store.LocationDecision{Reasoning: "unparsed decision: " + truncate(res.Raw, 120)}, nil
	}
	decision := res.Value
	if decision.ShouldTransition && (decision.TargetLocation == nil || decision.TargetLocation.Identity() == "") {
		decision.ShouldTransition = false
	}
	return &decision, nil
}

func (c *LLM) GenerateNarrative(ctx context.Context, snapshot *store.SessionState, directives Directives) (*NarrativeResult, error) {
	prompt := newPrompt(constant.NarrativeSystemPrompt).
		section("scene", describeScene(snapshot)).
		section("known_facts", strings.Join(snapshot.DiscoveredFacts, "\n")).
		section("directives", mustJSON(directives)).
		output(constant.NarrativeOutputSchema).
		String()

	res, err := extract.Retry(ctx, c.attempts, c.ask(prompt, 0.8), extract.JSON[NarrativeResult])
	if err != nil {
		return nil, err
	}
	if !res.IsOk() {
		c.degraded("narrative", res.Raw, res.Reason)
		text := strings.TrimSpace(res.Raw)
		if text == "" {
			return nil, errEmptyNarrative
		}
		return &NarrativeResult{NarrativeText: text}, nil
	}
	if strings.TrimSpace(res.Value.NarrativeText) == "" {
		return nil, errEmptyNarrative
	}
	return &res.Value, nil
}
