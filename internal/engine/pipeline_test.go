package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sieveworks/sieve/internal/lineage"
	"github.com/sieveworks/sieve/internal/rules"
	"github.com/sieveworks/sieve/internal/testutil"
	"github.com/sieveworks/sieve/pkg/core"
)

// memStore is an in-memory core.Store for exercising run bookkeeping and
// store mirroring without a database.
type memStore struct {
	mu       sync.Mutex
	seq      int
	runs     map[string]*core.Run
	outcomes map[string][]core.Outcome
	trails   map[string][]core.LineageEntry

	failRecordOutcomes bool
}

func newMemStore() *memStore {
	return &memStore{
		runs:     make(map[string]*core.Run),
		outcomes: make(map[string][]core.Outcome),
		trails:   make(map[string][]core.LineageEntry),
	}
}

func (s *memStore) Open(string) error { return nil }
func (s *memStore) Close() error      { return nil }
func (s *memStore) Migrate() error    { return nil }

func (s *memStore) CreateRun(environment string) (*core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	run := &core.Run{
		ID:          fmt.Sprintf("run-%d", s.seq),
		Environment: environment,
		Status:      core.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *memStore) GetRun(id string) (*core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	cp := *run
	return &cp, nil
}

func (s *memStore) GetLatestRun(environment string) (*core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *core.Run
	for _, r := range s.runs {
		if environment != "" && r.Environment != environment {
			continue
		}
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no runs")
	}
	cp := *latest
	return &cp, nil
}

func (s *memStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	run.Error = errMsg
	return nil
}

func (s *memStore) UpdateRunCounts(id string, records, quarantined int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	run.RecordCount = records
	run.QuarantinedCount = quarantined
	return nil
}

func (s *memStore) RecordOutcomes(runID string, outcomes []core.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecordOutcomes {
		return errors.New("disk full")
	}
	s.outcomes[runID] = append(s.outcomes[runID], outcomes...)
	return nil
}

func (s *memStore) GetOutcomesForRun(runID string) ([]core.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Outcome(nil), s.outcomes[runID]...), nil
}

func (s *memStore) AppendLineage(_ string, entries []core.LineageEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.trails[e.RecordID] = append(s.trails[e.RecordID], e)
	}
	return nil
}

func (s *memStore) GetTrail(recordID string) ([]core.LineageEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trail := append([]core.LineageEntry(nil), s.trails[recordID]...)
	sort.SliceStable(trail, func(i, j int) bool {
		return trail[i].Timestamp.Before(trail[j].Timestamp)
	})
	return trail, nil
}

// memSink collects quarantined records.
type memSink struct {
	mu      sync.Mutex
	records []core.QuarantinedRecord
	err     error
}

func (s *memSink) WriteQuarantined(records []core.QuarantinedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

func posStage(t *testing.T) *core.RuleSet {
	t.Helper()
	set, err := rules.Compile(rules.StageSpec{
		Stage: "pos_transactions",
		Rules: []rules.RuleSpec{
			{Name: "amount_positive", Description: "transaction amount must be positive", Severity: "critical", Field: "amount", Op: "gt", Value: 0},
			{Name: "store_id_known", Severity: "high", Field: "store_id", Op: "in_set", Values: []any{"S1", "S2"}},
		},
	})
	require.NoError(t, err)
	return set
}

func brandStage(t *testing.T) *core.RuleSet {
	t.Helper()
	set, err := rules.Compile(rules.StageSpec{
		Stage: "gold_brand_health",
		Rules: []rules.RuleSpec{
			{Name: "sentiment_bounded", Severity: "high", Field: "sentiment_score", Op: "between", Min: -1, Max: 1},
		},
	})
	require.NoError(t, err)
	return set
}

func TestPipeline_QuarantineAndDelivery(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}

	p, err := New(Config{
		Stages:              []*core.RuleSet{posStage(t), brandStage(t)},
		QuarantineThreshold: core.SeverityHigh,
		Store:               store,
		Sink:                sink,
		Logger:              testutil.NewTestLogger(t),
		Environment:         "dev",
	})
	require.NoError(t, err)

	records := []core.Record{
		{ID: "TXN_OK", Fields: map[string]any{"amount": 120.5, "store_id": "S1", "sentiment_score": 0.4}},
		{ID: "TXN_LOST", Fields: map[string]any{"amount": -500, "store_id": "S1", "sentiment_score": 0.1}},
	}

	result, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	// Split: one delivered past the final stage, one diverted at the first.
	require.Len(t, result.Delivered, 1)
	assert.Equal(t, "TXN_OK", result.Delivered[0].ID)
	require.Len(t, result.Quarantined, 1)
	assert.Equal(t, "TXN_LOST", result.Quarantined[0].Record.ID)
	assert.Equal(t, result.Quarantined, sink.records)

	// The quarantined record carries the violated rule and reason.
	q := result.Quarantined[0]
	require.Len(t, q.FailedRules, 1)
	assert.Equal(t, "amount_positive", q.FailedRules[0].Name)
	assert.Equal(t, "amount (-500) <= 0", q.FailedRules[0].Reason)
	assert.Equal(t, core.SeverityCritical, q.FailedRules[0].Severity)

	// Run bookkeeping.
	require.NotNil(t, result.Run)
	assert.Equal(t, core.RunStatusCompleted, result.Run.Status)
	assert.Equal(t, 2, result.Run.RecordCount)
	assert.Equal(t, 1, result.Run.QuarantinedCount)
	require.NotNil(t, result.Run.CompletedAt)

	// Outcomes: 2 records x 2 rules at stage one, 1 record x 1 rule at
	// stage two. The quarantined record never reaches stage two.
	stored, err := store.GetOutcomesForRun(result.Run.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 5)

	// Lineage: delivered record walks both stages; quarantined ends at the
	// diverting stage.
	trace, err := lineage.NewTracer(p.Index()).Trace("TXN_OK")
	require.NoError(t, err)
	require.True(t, trace.Found)
	assert.Equal(t, core.VerdictDelivered, trace.FinalVerdict)
	verdicts := make([]core.Verdict, len(trace.Steps))
	stages := make([]string, len(trace.Steps))
	for i, s := range trace.Steps {
		verdicts[i] = s.Verdict
		stages[i] = s.Stage
	}
	assert.Equal(t, []core.Verdict{
		core.VerdictIngested, core.VerdictPassed, core.VerdictDelivered,
		core.VerdictIngested, core.VerdictPassed, core.VerdictDelivered,
	}, verdicts)
	assert.Equal(t, []string{
		"pos_transactions", "pos_transactions", "pos_transactions",
		"gold_brand_health", "gold_brand_health", "gold_brand_health",
	}, stages)

	trace, err = lineage.NewTracer(p.Index()).Trace("TXN_LOST")
	require.NoError(t, err)
	require.True(t, trace.Found)
	assert.Equal(t, core.VerdictQuarantined, trace.FinalVerdict)
	require.Len(t, trace.Steps, 2)
	last := trace.Steps[1]
	assert.Equal(t, "pos_transactions", last.Stage)
	assert.Equal(t, "amount_positive", last.RuleName)
	assert.Equal(t, "amount (-500) <= 0", last.Reason)

	// The store mirror carries the same trails.
	trail, err := store.GetTrail("TXN_LOST")
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}

func TestPipeline_TrailsAreAlwaysLegal(t *testing.T) {
	p, err := New(Config{
		Stages:              []*core.RuleSet{posStage(t), brandStage(t)},
		QuarantineThreshold: core.SeverityHigh,
	})
	require.NoError(t, err)

	records := make([]core.Record, 40)
	for i := range records {
		records[i] = core.Record{ID: fmt.Sprintf("r%d", i), Fields: map[string]any{
			"amount":          float64(i%7) - 2,
			"store_id":        []string{"S1", "S2", "S9"}[i%3],
			"sentiment_score": float64(i%5) - 2,
		}}
	}

	_, err = p.Run(context.Background(), records)
	require.NoError(t, err)

	for _, id := range p.Index().Records() {
		trail := p.Index().Trail(id)
		require.NotEmpty(t, trail)
		var last core.Verdict
		for _, e := range trail {
			assert.True(t, core.CanTransition(last, e.Verdict),
				"record %s: %v -> %v", id, last, e.Verdict)
			last = e.Verdict
		}
	}
}

func TestPipeline_EmptyRuleSetPassesEverything(t *testing.T) {
	store := newMemStore()
	p, err := New(Config{
		Stages:              []*core.RuleSet{core.NewRuleSet("passthrough")},
		QuarantineThreshold: core.SeverityHigh,
		Store:               store,
	})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []core.Record{{ID: "r1"}, {ID: "r2"}})
	require.NoError(t, err)

	assert.Len(t, result.Delivered, 2)
	assert.Empty(t, result.Quarantined)

	stored, err := store.GetOutcomesForRun(result.Run.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPipeline_Cancellation(t *testing.T) {
	store := newMemStore()
	p, err := New(Config{
		Stages:              []*core.RuleSet{posStage(t)},
		QuarantineThreshold: core.SeverityHigh,
		Store:               store,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, []core.Record{{ID: "r1", Fields: map[string]any{"amount": 1, "store_id": "S1"}}})
	require.Error(t, err)
	require.NotNil(t, result.Run)
	assert.Equal(t, core.RunStatusCancelled, result.Run.Status)
	assert.Empty(t, result.Delivered)
}

func TestPipeline_StoreFailureFailsRun(t *testing.T) {
	store := newMemStore()
	store.failRecordOutcomes = true

	p, err := New(Config{
		Stages:              []*core.RuleSet{posStage(t)},
		QuarantineThreshold: core.SeverityHigh,
		Store:               store,
	})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), []core.Record{
		{ID: "r1", Fields: map[string]any{"amount": 1, "store_id": "S1"}},
	})
	require.Error(t, err)
	assert.Equal(t, core.RunStatusFailed, result.Run.Status)
	assert.Contains(t, result.Run.Error, "disk full")
}

func TestPipeline_SinkFailureFailsRun(t *testing.T) {
	sink := &memSink{err: errors.New("sink offline")}
	p, err := New(Config{
		Stages:              []*core.RuleSet{posStage(t)},
		QuarantineThreshold: core.SeverityHigh,
		Sink:                sink,
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), []core.Record{
		{ID: "bad", Fields: map[string]any{"amount": -1, "store_id": "S1"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink offline")
}

func TestPipeline_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Stages: []*core.RuleSet{core.NewRuleSet("s"), core.NewRuleSet("s")}})
	require.Error(t, err)

	_, err = New(Config{Stages: []*core.RuleSet{core.NewRuleSet("")}})
	require.Error(t, err)
}
