// Package pipeline sequences the turn stages over one session state.
package pipeline

import (
	"context"
	"fmt"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/engine/collaborator"
	"narrative-engine-be/pkg/engine/state"
	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
)

const module = "PIPELINE"

// FailureTag prefixes every synthetic failure marker a stage records
const FailureTag = "[ERROR]"

// FailureActionType marks an intent that could not be analyzed
const FailureActionType = "error"

type StageName string

const (
	StageEntry               StageName = "entry"
	StageIntentAnalysis      StageName = "intent-analysis"
	StageContextEnrichment   StageName = "context-enrichment"
	StageActionResolution    StageName = "action-resolution"
	StageReactionAnalysis    StageName = "reaction-analysis"
	StageReactionExecution   StageName = "reaction-execution"
	StageLocationResolution  StageName = "location-resolution"
	StageNarrativeGeneration StageName = "narrative-generation"
	StageTerminal            StageName = "terminal"
)

// Stage is one unit of work. A returned error aborts the execution, so
// only stages whose failure must fail the turn return one.
type Stage interface {
	Name() StageName
	Run(ctx context.Context, exec *Execution) error
}

// ProgressSink receives the partial turn fields each stage produces
type ProgressSink interface {
	UpdateProgress(ctx context.Context, turnID uuid.UUID, progress entity.TurnProgress) error
}

// CheckpointStore is what location resolution needs from checkpoint storage
type CheckpointStore interface {
	Save(ctx context.Context, state *store.SessionState, name string, typ entity.CheckpointType, description string) (uuid.UUID, error)
	FindLatestForLocation(ctx context.Context, sessionID uuid.UUID, loc store.Location) (*entity.Checkpoint, error)
}

type Input struct {
	Text      string
	Simulated bool

	// ParticipantID names the acting participant of a simulated beat.
	// External input always belongs to the protagonist.
	ParticipantID string
}

// Execution is the session-scoped context of one pipeline run
type Execution struct {
	TurnID    uuid.UUID
	SessionID uuid.UUID
	Input     Input
	State     *state.Manager

	Outcomes         []store.ActionOutcome
	LocationDecision *store.LocationDecision
	Result           *collaborator.NarrativeResult
	Failures         []string

	sink   ProgressSink
	logger logger.ILogger
}

func NewExecution(turnID, sessionID uuid.UUID, input Input, st *state.Manager, sink ProgressSink) *Execution {
	return &Execution{
		TurnID:    turnID,
		SessionID: sessionID,
		Input:     input,
		State:     st,
		sink:      sink,
		logger:    logger.NewNopLogger(),
	}
}

// snapshot gives collaborators a copy they cannot mutate the live state through
func (e *Execution) snapshot() *store.SessionState {
	s, err := e.State.Session().Clone()
	if err != nil {
		e.logger.Warn(module, "Snapshot failed, sharing live state", map[string]interface{}{
			"session_id": e.SessionID.String(),
			"error":      err.Error(),
		})
		return e.State.Session()
	}
	return s
}

func (e *Execution) report(ctx context.Context, progress entity.TurnProgress) {
	if e.sink == nil || e.TurnID == uuid.Nil || progress.IsEmpty() {
		return
	}
	if err := e.sink.UpdateProgress(ctx, e.TurnID, progress); err != nil {
		e.logger.Warn(module, "Turn progress update failed", map[string]interface{}{
			"turn_id": e.TurnID.String(),
			"error":   err.Error(),
		})
	}
}

func (e *Execution) failure(stage StageName, err error) string {
	marker := fmt.Sprintf("%s %s: %v", FailureTag, stage, err)
	e.Failures = append(e.Failures, marker)
	e.logger.Warn(module, "Stage collaborator failed", map[string]interface{}{
		"session_id": e.SessionID.String(),
		"turn_id":    e.TurnID.String(),
		"stage":      string(stage),
		"error":      err.Error(),
	})
	return marker
}

func (e *Execution) addOutcome(outcome store.ActionOutcome) {
	e.State.AddActionOutcome(outcome)
	all := e.State.GetAllActionOutcomes()
	e.Outcomes = append(e.Outcomes, all[len(all)-1])
}
