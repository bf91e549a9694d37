// Package engine contains the data-quality pipeline: the rule evaluator,
// the quarantine router, and the orchestration that moves record batches
// through stages while recording outcomes and lineage.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sieveworks/sieve/internal/lineage"
	"github.com/sieveworks/sieve/pkg/core"
)

// QuarantineSink receives records diverted from the pipeline. The pipeline's
// obligation ends once the sink accepts them.
type QuarantineSink interface {
	WriteQuarantined(records []core.QuarantinedRecord) error
}

// Pipeline moves record batches through an ordered list of stages. At each
// stage every record is evaluated against the stage's rule set, routed to
// the clean or quarantine branch, and its lineage trail extended. Only the
// clean branch reaches the next stage.
type Pipeline struct {
	stages    []*core.RuleSet
	eval      *Evaluator
	index     *lineage.Index
	store     core.Store
	sink      QuarantineSink
	threshold core.Severity
	logger    *slog.Logger
	env       string
}

// Config holds pipeline configuration.
type Config struct {
	// Stages are the rule sets to apply, in pipeline order. At least one
	// stage is required.
	Stages []*core.RuleSet
	// QuarantineThreshold is the minimum severity that diverts a record.
	QuarantineThreshold core.Severity
	// Workers bounds concurrent record evaluation within a stage.
	Workers int
	// Index receives lineage entries as the run progresses. A nil index
	// gets replaced with a fresh one, retrievable via Index().
	Index *lineage.Index
	// Store persists runs, outcomes and lineage (optional).
	Store core.Store
	// Sink receives quarantined records (optional).
	Sink QuarantineSink
	// Environment names the run environment (dev, staging, prod).
	Environment string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Result summarizes one pipeline run.
type Result struct {
	Run         *core.Run
	Stages      []StageResult
	Delivered   []core.Record
	Quarantined []core.QuarantinedRecord
}

// StageResult summarizes one stage of a run.
type StageResult struct {
	Stage       string
	Records     int
	Passed      int
	Quarantined int
	Outcomes    []core.Outcome
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("pipeline requires at least one stage")
	}
	seen := make(map[string]struct{})
	for _, set := range cfg.Stages {
		if set == nil || set.Stage() == "" {
			return nil, fmt.Errorf("pipeline stage has no name")
		}
		if _, dup := seen[set.Stage()]; dup {
			return nil, fmt.Errorf("duplicate pipeline stage %q", set.Stage())
		}
		seen[set.Stage()] = struct{}{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	index := cfg.Index
	if index == nil {
		index = lineage.NewIndex()
	}
	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	return &Pipeline{
		stages:    cfg.Stages,
		eval:      NewEvaluator(EvaluatorConfig{Workers: cfg.Workers, Logger: logger}),
		index:     index,
		store:     cfg.Store,
		sink:      cfg.Sink,
		threshold: cfg.QuarantineThreshold,
		logger:    logger,
		env:       env,
	}, nil
}

// Index returns the lineage index the pipeline appends to.
func (p *Pipeline) Index() *lineage.Index {
	return p.index
}

// Stages returns the pipeline's rule sets in order.
func (p *Pipeline) Stages() []*core.RuleSet {
	out := make([]*core.RuleSet, len(p.stages))
	copy(out, p.stages)
	return out
}

// Run pushes a batch of records through every stage. Each record ends the
// run either DELIVERED past the final stage or QUARANTINED at the stage
// that diverted it; the returned result carries both branches.
//
// Cancellation between stages or mid-evaluation marks the run cancelled;
// lineage and outcomes committed before the cancellation point are kept.
func (p *Pipeline) Run(ctx context.Context, records []core.Record) (*Result, error) {
	p.logger.Info("starting run", "environment", p.env, "records", len(records), "stages", len(p.stages))

	var run *core.Run
	if p.store != nil {
		var err error
		run, err = p.store.CreateRun(p.env)
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		p.logger.Debug("created run", "run_id", run.ID)
	}

	result := &Result{Run: run}
	batch := records
	runErr := func() error {
		for _, set := range p.stages {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			batch, err = p.runStage(ctx, run, set, batch, result)
			if err != nil {
				return err
			}
		}
		return nil
	}()

	if runErr == nil {
		result.Delivered = batch
	}

	if p.store != nil && run != nil {
		_ = p.store.UpdateRunCounts(run.ID, len(records), len(result.Quarantined))
		switch {
		case runErr == nil:
			p.logger.Info("run completed", "run_id", run.ID,
				"delivered", len(result.Delivered), "quarantined", len(result.Quarantined))
			_ = p.store.CompleteRun(run.ID, core.RunStatusCompleted, "")
		case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
			p.logger.Info("run cancelled", "run_id", run.ID)
			_ = p.store.CompleteRun(run.ID, core.RunStatusCancelled, runErr.Error())
		default:
			p.logger.Error("run failed", "run_id", run.ID, "error", runErr.Error())
			_ = p.store.CompleteRun(run.ID, core.RunStatusFailed, runErr.Error())
		}
		run, _ = p.store.GetRun(run.ID)
		result.Run = run
	}

	return result, runErr
}

// runStage evaluates and routes one stage, returning the clean branch that
// continues to the next stage.
func (p *Pipeline) runStage(ctx context.Context, run *core.Run, set *core.RuleSet, batch []core.Record, result *Result) ([]core.Record, error) {
	stage := set.Stage()
	p.logger.Debug("stage started", "stage", stage, "records", len(batch))

	ingested := make([]core.LineageEntry, len(batch))
	for i, rec := range batch {
		ingested[i] = core.LineageEntry{
			RecordID:  rec.ID,
			Stage:     stage,
			Verdict:   core.VerdictIngested,
			Timestamp: time.Now().UTC(),
		}
	}
	if err := p.appendLineage(run, ingested); err != nil {
		return nil, err
	}

	outcomes, err := p.eval.Evaluate(ctx, batch, set)
	if err != nil {
		return nil, err
	}
	if p.store != nil && run != nil && len(outcomes) > 0 {
		if err := p.store.RecordOutcomes(run.ID, outcomes); err != nil {
			return nil, fmt.Errorf("failed to record outcomes: %w", err)
		}
	}

	router := NewRouter(set, p.threshold)
	passed, quarantined := router.Route(batch, outcomes)

	verdicts := make([]core.LineageEntry, 0, len(passed)*2+len(quarantined))
	for _, q := range quarantined {
		e := core.LineageEntry{
			RecordID:  q.Record.ID,
			Stage:     stage,
			Verdict:   core.VerdictQuarantined,
			Timestamp: time.Now().UTC(),
		}
		if f, ok := router.triggeringRule(q); ok {
			e.RuleName = f.Name
			e.Reason = f.Reason
		}
		verdicts = append(verdicts, e)
	}
	for _, rec := range passed {
		now := time.Now().UTC()
		verdicts = append(verdicts,
			core.LineageEntry{RecordID: rec.ID, Stage: stage, Verdict: core.VerdictPassed, Timestamp: now},
			core.LineageEntry{RecordID: rec.ID, Stage: stage, Verdict: core.VerdictDelivered, Timestamp: now.Add(time.Microsecond)},
		)
	}
	if err := p.appendLineage(run, verdicts); err != nil {
		return nil, err
	}

	if p.sink != nil && len(quarantined) > 0 {
		if err := p.sink.WriteQuarantined(quarantined); err != nil {
			return nil, fmt.Errorf("failed to sink quarantined records: %w", err)
		}
	}

	result.Quarantined = append(result.Quarantined, quarantined...)
	result.Stages = append(result.Stages, StageResult{
		Stage:       stage,
		Records:     len(batch),
		Passed:      len(passed),
		Quarantined: len(quarantined),
		Outcomes:    outcomes,
	})

	p.logger.Debug("stage completed", "stage", stage,
		"passed", len(passed), "quarantined", len(quarantined))
	return passed, nil
}

// appendLineage extends the in-memory index and mirrors the entries to the
// store. The index is the ordering authority: a transition it rejects is a
// pipeline bug and fails the run.
func (p *Pipeline) appendLineage(run *core.Run, entries []core.LineageEntry) error {
	for _, e := range entries {
		if err := p.index.Append(e); err != nil {
			return err
		}
	}
	if p.store != nil && run != nil && len(entries) > 0 {
		if err := p.store.AppendLineage(run.ID, entries); err != nil {
			return fmt.Errorf("failed to append lineage: %w", err)
		}
	}
	return nil
}
