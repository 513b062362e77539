package pipeline

import (
	"context"
	"errors"
	"fmt"

	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/engine/collaborator"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrNoNarrative = errors.New("pipeline reached terminal without a narrative")

// Collaborators bundles one capability per stage
type Collaborators struct {
	Intent    collaborator.IntentAnalyzer
	Context   collaborator.ContextEnricher
	Actions   collaborator.ActionResolver
	Reactions collaborator.ReactionAnalyzer
	Location  collaborator.LocationDecider
	Narrative collaborator.NarrativeGenerator
}

type Pipeline struct {
	stages map[StageName]Stage
	logger logger.ILogger
	tracer trace.Tracer
}

func New(logger logger.ILogger, stages ...Stage) *Pipeline {
	p := &Pipeline{
		stages: make(map[StageName]Stage, len(stages)),
		logger: logger,
		tracer: otel.Tracer("narrative-engine/pipeline"),
	}
	for _, s := range stages {
		p.stages[s.Name()] = s
	}
	return p
}

// NewDefault wires the standard stage set
func NewDefault(c Collaborators, checkpoints CheckpointStore, logger logger.ILogger) *Pipeline {
	return New(logger,
		EntryStage{},
		IntentStage{Analyzer: c.Intent},
		ContextStage{Enricher: c.Context},
		ActionStage{Resolver: c.Actions},
		ReactionAnalysisStage{Analyzer: c.Reactions},
		ReactionExecutionStage{Resolver: c.Actions},
		LocationStage{Decider: c.Location, Checkpoints: checkpoints},
		NarrativeStage{Generator: c.Narrative},
	)
}

// Run walks the transition table from entry to terminal. No stage runs
// twice, so the walk is bounded by the number of stages.
func (p *Pipeline) Run(ctx context.Context, exec *Execution) (*collaborator.NarrativeResult, error) {
	exec.logger = p.logger
	visited := make(map[StageName]bool, len(p.stages))

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("session.id", exec.SessionID.String()),
		attribute.String("turn.id", exec.TurnID.String()),
		attribute.Bool("turn.simulated", exec.Input.Simulated),
	))
	defer span.End()

	for current := StageEntry; current != StageTerminal; current = Next(current, exec) {
		if visited[current] {
			return nil, fmt.Errorf("stage %s revisited", current)
		}
		visited[current] = true

		stage, ok := p.stages[current]
		if !ok {
			return nil, fmt.Errorf("stage %s is not registered", current)
		}

		if err := p.runStage(ctx, stage, exec); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("stage %s: %w", current, err)
		}
	}

	if exec.Result == nil {
		return nil, ErrNoNarrative
	}

	p.logger.Debug(module, "Pipeline completed", map[string]interface{}{
		"session_id": exec.SessionID.String(),
		"turn_id":    exec.TurnID.String(),
		"failures":   len(exec.Failures),
	})
	return exec.Result, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, exec *Execution) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+string(stage.Name()))
	defer span.End()

	before := len(exec.Failures)
	err := stage.Run(ctx, exec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(exec.Failures) > before {
		span.SetAttributes(attribute.String("stage.failure", exec.Failures[len(exec.Failures)-1]))
	}
	return nil
}
