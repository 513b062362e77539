package mapper

import (
	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/model"
	"narrative-engine-be/pkg/store"
)

type TurnMapper struct{}

func NewTurnMapper() *TurnMapper {
	return &TurnMapper{}
}

func (m *TurnMapper) ToEntity(t *model.Turn) *entity.Turn {
	if t == nil {
		return nil
	}

	var outcomes []store.ActionOutcome
	if v := decodeJSON[[]store.ActionOutcome](t.ActionOutcomes); v != nil {
		outcomes = *v
	}
	var facts []string
	if v := decodeJSON[[]string](t.RevealedFacts); v != nil {
		facts = *v
	}

	return &entity.Turn{
		Id:               t.Id,
		SessionId:        t.SessionId,
		TurnNumber:       t.TurnNumber,
		InputText:        t.InputText,
		IsSimulated:      t.IsSimulated,
		ParticipantId:    t.ParticipantId,
		ParticipantName:  t.ParticipantName,
		IntentAnalysis:   decodeJSON[store.IntentAnalysis](t.IntentAnalysis),
		ActionOutcomes:   outcomes,
		LocationDecision: decodeJSON[store.LocationDecision](t.LocationDecision),
		NarrativeOutput:  t.NarrativeOutput,
		RevealedFacts:    facts,
		LocationId:       t.LocationId,
		LocationName:     t.LocationName,
		Descriptor:       t.Descriptor,
		Status:           entity.TurnStatus(t.Status),
		ErrorMessage:     t.ErrorMessage,
		StartedAt:        t.StartedAt,
		CompletedAt:      t.CompletedAt,
	}
}

func (m *TurnMapper) ToModel(t *entity.Turn) *model.Turn {
	if t == nil {
		return nil
	}

	out := &model.Turn{
		Id:              t.Id,
		SessionId:       t.SessionId,
		TurnNumber:      t.TurnNumber,
		InputText:       t.InputText,
		IsSimulated:     t.IsSimulated,
		ParticipantId:   t.ParticipantId,
		ParticipantName: t.ParticipantName,
		NarrativeOutput: t.NarrativeOutput,
		LocationId:      t.LocationId,
		LocationName:    t.LocationName,
		Descriptor:      t.Descriptor,
		Status:          string(t.Status),
		ErrorMessage:    t.ErrorMessage,
		StartedAt:       t.StartedAt,
		CompletedAt:     t.CompletedAt,
	}
	if t.IntentAnalysis != nil {
		out.IntentAnalysis = encodeJSON(t.IntentAnalysis)
	}
	if t.ActionOutcomes != nil {
		out.ActionOutcomes = encodeJSON(t.ActionOutcomes)
	}
	if t.LocationDecision != nil {
		out.LocationDecision = encodeJSON(t.LocationDecision)
	}
	if t.RevealedFacts != nil {
		out.RevealedFacts = encodeJSON(t.RevealedFacts)
	}
	return out
}

// ProgressColumns turns a partial progress update into a column map for
// gorm Updates. Only non-nil fields are included.
func (m *TurnMapper) ProgressColumns(p entity.TurnProgress) map[string]interface{} {
	cols := map[string]interface{}{}
	if p.ParticipantId != nil {
		cols["participant_id"] = *p.ParticipantId
	}
	if p.ParticipantName != nil {
		cols["participant_name"] = *p.ParticipantName
	}
	if p.IntentAnalysis != nil {
		cols["intent_analysis"] = encodeJSON(p.IntentAnalysis)
	}
	if p.ActionOutcomes != nil {
		cols["action_outcomes"] = encodeJSON(p.ActionOutcomes)
	}
	if p.LocationDecision != nil {
		cols["location_decision"] = encodeJSON(p.LocationDecision)
	}
	if p.LocationId != nil {
		cols["location_id"] = *p.LocationId
	}
	if p.LocationName != nil {
		cols["location_name"] = *p.LocationName
	}
	if p.Descriptor != nil {
		cols["descriptor"] = *p.Descriptor
	}
	return cols
}
