package engine

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sieveworks/sieve/pkg/core"
)

// Evaluator applies a stage's rule set to batches of records. Records are
// evaluated concurrently; rules within a record run in rule-set order.
type Evaluator struct {
	workers int
	logger  *slog.Logger
}

// EvaluatorConfig holds evaluator configuration.
type EvaluatorConfig struct {
	// Workers bounds concurrent record evaluation. Zero means one worker
	// per available CPU.
	Workers int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Evaluator{workers: workers, logger: logger}
}

// Evaluate runs every rule in the set against every record and returns
// exactly one outcome per (record, rule) pair. Evaluating a rule never
// short-circuits the remaining rules for that record. Outcomes are ordered
// record-major, rules in set order, regardless of worker count.
//
// Cancellation stops scheduling further records and returns the context
// error; outcomes computed so far are discarded.
func (e *Evaluator) Evaluate(ctx context.Context, records []core.Record, set *core.RuleSet) ([]core.Outcome, error) {
	rules := set.Rules()
	if len(records) == 0 || len(rules) == 0 {
		return nil, ctx.Err()
	}

	outcomes := make([]core.Outcome, len(records)*len(rules))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, rec := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			base := i * len(rules)
			for j, r := range rules {
				res := r.Evaluate(rec)
				outcomes[base+j] = core.Outcome{
					RecordID:  rec.ID,
					RuleName:  r.Name,
					Stage:     set.Stage(),
					Passed:    res.Passed,
					Reason:    res.Reason,
					Timestamp: time.Now().UTC(),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, o := range outcomes {
		if !o.Passed {
			failed++
		}
	}
	e.logger.Debug("stage evaluated",
		"stage", set.Stage(),
		"records", len(records),
		"rules", len(rules),
		"failed_outcomes", failed)

	return outcomes, nil
}
