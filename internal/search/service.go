// Package search orchestrates the expert ranking pipeline: attribute
// extraction, experience scoring, and expert ranking over the relational
// store. The pipeline is a pure read/compute path; it writes nothing.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/provenhq/expertrank/internal/expert"
	"github.com/provenhq/expertrank/internal/extraction"
	"github.com/provenhq/expertrank/internal/ranking"
	"github.com/provenhq/expertrank/internal/scoring"
	"github.com/provenhq/expertrank/internal/tracing"
)

// Result-limit bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrStoreUnavailable wraps relational-store failures during scoring.
// Retryable by the caller.
var ErrStoreUnavailable = errors.New("store unavailable")

// Stage identifies where in the pipeline a request is, or where it failed.
type Stage string

// Pipeline stages. A request moves Received -> Extracting -> Scoring ->
// Ranked -> Completed; Failed is terminal and reachable from Received
// (invalid input), Extracting (extraction failure), and Scoring (store
// unavailable).
const (
	StageReceived   Stage = "received"
	StageExtracting Stage = "extracting"
	StageScoring    Stage = "scoring"
	StageRanked     Stage = "ranked"
	StageCompleted  Stage = "completed"
)

// PipelineError is the single failure outcome of a search request: the stage
// that failed plus the underlying cause. No partial results accompany it.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("search pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may sensibly retry: transient
// infrastructure failures are retryable, invalid input is not.
func (e *PipelineError) Retryable() bool {
	return !errors.Is(e.Err, extraction.ErrInvalidInput)
}

// ExpertStore is the read surface the pipeline needs from the relational
// store.
type ExpertStore interface {
	MatchExperiences(ctx context.Context, attributeIDs []int64) ([]expert.ExperienceMatch, error)
	GetExpertsByID(ctx context.Context, ids []int64) (map[int64]*expert.Expert, error)
}

// Request is one search invocation.
type Request struct {
	// Text is the raw query; at least one non-whitespace character.
	Text string

	// Limit caps the returned experts. Zero means DefaultLimit; values over
	// MaxLimit clamp.
	Limit int
}

// RankedExpert is one expert in the response, with its contributing
// experiences so the caller can audit the ranking.
type RankedExpert struct {
	ID          int64                     `json:"id"`
	Name        string                    `json:"name"`
	Summary     string                    `json:"summary"`
	TotalScore  float64                   `json:"total_score"`
	Experiences []scoring.ExperienceScore `json:"experiences"`
}

// Result is the outcome of a successful search.
type Result struct {
	Experts []RankedExpert

	// Extracted is the attribute set the request was scored against.
	Extracted *extraction.AttributeSet

	// TotalExperts counts all ranked experts before the limit was applied.
	TotalExperts int

	Elapsed time.Duration
}

// Service runs the ranking pipeline. Each call owns its working set; calls
// may run concurrently against the same stores.
type Service struct {
	extractor extraction.TextExtractor
	store     ExpertStore
	params    scoring.Params
	now       func() time.Time
	logger    *slog.Logger
	metrics   *Metrics
}

// NewService creates a Service. now defaults to time.Now and metrics may be
// nil to disable instrumentation.
func NewService(extractor extraction.TextExtractor, store ExpertStore, params scoring.Params, metrics *Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		store:     store,
		params:    params,
		now:       time.Now,
		logger:    logger,
		metrics:   metrics,
	}
}

// WithNow fixes the pipeline's clock. Scoring is deterministic for a fixed
// "today", which is what tests need.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Search executes the pipeline for one request. Validation failures,
// extraction failures, and store failures abort the request with a
// *PipelineError; zero extracted attributes or zero matching experiences is
// a success with an empty ranking.
func (s *Service) Search(ctx context.Context, req Request) (*Result, error) {
	started := s.now()

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, s.fail(StageReceived, extraction.ErrInvalidInput)
	}

	set, err := s.extract(ctx, req.Text)
	if err != nil {
		return nil, s.fail(StageExtracting, err)
	}

	ids := set.IDs()
	if len(ids) == 0 {
		s.logger.Info("extraction resolved no attributes", "query_len", len(req.Text))
		return s.complete(&Result{Extracted: set}, started), nil
	}

	scores, experts, err := s.score(ctx, ids)
	if err != nil {
		return nil, s.fail(StageScoring, err)
	}

	rankings := ranking.Rank(scores)

	result := &Result{
		Extracted:    set,
		TotalExperts: len(rankings),
	}
	if len(rankings) > limit {
		rankings = rankings[:limit]
	}
	for _, r := range rankings {
		ranked := RankedExpert{
			ID:          r.ExpertID,
			TotalScore:  r.TotalScore,
			Experiences: r.Experiences,
		}
		if e, ok := experts[r.ExpertID]; ok {
			ranked.Name = e.Name
			ranked.Summary = e.Summary
		}
		result.Experts = append(result.Experts, ranked)
	}

	return s.complete(result, started), nil
}

// extract runs the extraction stage under its own span and timer.
func (s *Service) extract(ctx context.Context, text string) (*extraction.AttributeSet, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "search.extract")
	stageStart := time.Now()

	set, err := s.extractor.Extract(ctx, text)

	endSpan(err)
	s.metrics.ObserveStage(StageExtracting, time.Since(stageStart))
	return set, err
}

// score runs the scoring stage: the one-pass intersection query, the expert
// hydration read, and the formula itself. Store failures wrap
// ErrStoreUnavailable.
func (s *Service) score(ctx context.Context, ids []int64) ([]scoring.ExperienceScore, map[int64]*expert.Expert, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "search.score")
	stageStart := time.Now()

	matches, err := s.store.MatchExperiences(ctx, ids)
	if err != nil {
		endSpan(err)
		s.metrics.ObserveStage(StageScoring, time.Since(stageStart))
		return nil, nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	scores := scoring.ScoreAll(matches, s.params, s.now())

	expertIDs := make([]int64, 0, len(scores))
	seen := make(map[int64]bool)
	for _, sc := range scores {
		if !seen[sc.ExpertID] {
			seen[sc.ExpertID] = true
			expertIDs = append(expertIDs, sc.ExpertID)
		}
	}

	experts, err := s.store.GetExpertsByID(ctx, expertIDs)
	if err != nil {
		endSpan(err)
		s.metrics.ObserveStage(StageScoring, time.Since(stageStart))
		return nil, nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	endSpan(nil)
	s.metrics.ObserveStage(StageScoring, time.Since(stageStart))
	return scores, experts, nil
}

// complete stamps the elapsed time and records the success outcome.
func (s *Service) complete(result *Result, started time.Time) *Result {
	result.Elapsed = s.now().Sub(started)
	if len(result.Experts) == 0 {
		s.metrics.ObserveOutcome(OutcomeEmpty)
	} else {
		s.metrics.ObserveOutcome(OutcomeCompleted)
	}
	s.metrics.ObserveExperts(result.TotalExperts)
	return result
}

// fail wraps err into the single failure outcome for its stage.
func (s *Service) fail(stage Stage, err error) error {
	switch stage {
	case StageReceived:
		s.metrics.ObserveOutcome(OutcomeInvalidInput)
	case StageExtracting:
		s.metrics.ObserveOutcome(OutcomeExtractionFailed)
	case StageScoring:
		s.metrics.ObserveOutcome(OutcomeStoreFailed)
	}
	s.logger.Error("search pipeline failed", "stage", string(stage), "error", err)
	return &PipelineError{Stage: stage, Err: err}
}
