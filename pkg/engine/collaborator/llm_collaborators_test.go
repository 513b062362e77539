package collaborator

import (
	"context"
	"errors"
	"testing"

	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/llm"
	"narrative-engine-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	answers []string
	err     error
	calls   int
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return p.Generate(ctx, history[len(history)-1].Content, options...)
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	i := p.calls - 1
	if i >= len(p.answers) {
		i = len(p.answers) - 1
	}
	return p.answers[i], nil
}

func testSession() *store.SessionState {
	s := store.NewSessionState("sess-1", store.Participant{ID: "hero", Name: "Ada"}, &store.Location{ID: "mill", Name: "Old Mill"})
	s.Participants["miller"] = &store.Participant{ID: "miller", Name: "Miller"}
	return s
}

func TestAnalyzeIntent_RetriesThenParses(t *testing.T) {
	p := &scriptedProvider{answers: []string{"uh", `{"action_type": "search", "summary": "search the room", "confidence": 0.9}`}}
	c := NewLLM(p, 3, logger.NewNopLogger())

	intent, err := c.AnalyzeIntent(context.Background(), "search the room", testSession())

	require.NoError(t, err)
	assert.Equal(t, "search", intent.ActionType)
	assert.Equal(t, "hero", intent.ActorID)
	assert.Equal(t, 2, p.calls)
}

func TestAnalyzeIntent_DegradesAfterAttempts(t *testing.T) {
	p := &scriptedProvider{answers: []string{"not json"}}
	c := NewLLM(p, 2, logger.NewNopLogger())

	intent, err := c.AnalyzeIntent(context.Background(), "dance", testSession())

	require.NoError(t, err)
	assert.Equal(t, "other", intent.ActionType)
	assert.Equal(t, "dance", intent.Summary)
	assert.Equal(t, 2, p.calls)
}

func TestResolveActions_NormalizesOutcomes(t *testing.T) {
	p := &scriptedProvider{answers: []string{`{"outcomes": [{"action": "search", "result": "found a key", "success": true, "time_cost": "weird"}]}`}}
	c := NewLLM(p, 3, logger.NewNopLogger())

	outcomes, err := c.ResolveActions(context.Background(), testSession(), nil, "search")

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "hero", outcomes[0].ParticipantID)
	assert.Equal(t, "Ada", outcomes[0].ParticipantName)
	assert.Equal(t, store.TimeCostShort, outcomes[0].TimeCost)
}

func TestResolveActions_MalformedKeepsRawText(t *testing.T) {
	p := &scriptedProvider{answers: []string{"You find nothing."}}
	c := NewLLM(p, 1, logger.NewNopLogger())

	outcomes, err := c.ResolveActions(context.Background(), testSession(), nil, "search")

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "You find nothing.", outcomes[0].Result)
}

func TestResolveActions_InvocationError(t *testing.T) {
	boom := errors.New("timeout")
	c := NewLLM(&scriptedProvider{err: boom}, 3, logger.NewNopLogger())

	_, err := c.ResolveActions(context.Background(), testSession(), nil, "search")
	assert.ErrorIs(t, err, boom)
}

func TestAnalyzeReactions_DropsUnknownParticipants(t *testing.T) {
	p := &scriptedProvider{answers: []string{`{"reactions": [{"participant_id": "miller", "should_respond": true, "reaction": "shouts"}, {"participant_id": "ghost", "should_respond": true}]}`}}
	c := NewLLM(p, 3, logger.NewNopLogger())

	reactions, err := c.AnalyzeReactions(context.Background(), testSession(), "a crash")

	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, "Miller", reactions[0].ParticipantName)
}

func TestDecideLocation_RequiresTarget(t *testing.T) {
	p := &scriptedProvider{answers: []string{`{"should_transition": true, "reasoning": "somewhere"}`}}
	c := NewLLM(p, 3, logger.NewNopLogger())

	decision, err := c.DecideLocation(context.Background(), testSession())

	require.NoError(t, err)
	assert.False(t, decision.ShouldTransition)
}

func TestGenerateNarrative_RawTextFallback(t *testing.T) {
	p := &scriptedProvider{answers: []string{"The wind howls through the mill."}}
	c := NewLLM(p, 2, logger.NewNopLogger())

	res, err := c.GenerateNarrative(context.Background(), testSession(), Directives{Input: "listen"})

	require.NoError(t, err)
	assert.Equal(t, "The wind howls through the mill.", res.NarrativeText)
	assert.Empty(t, res.RevealedFacts)
}

func TestGenerateNarrative_ParsedButEmptyFails(t *testing.T) {
	p := &scriptedProvider{answers: []string{`{"narrative_text": "  ", "revealed_facts": []}`}}
	c := NewLLM(p, 2, logger.NewNopLogger())

	res, err := c.GenerateNarrative(context.Background(), testSession(), Directives{Input: "listen"})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "empty output")
}
