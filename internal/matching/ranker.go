package matching

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

const (
	// MaxMatchesLimit bounds any result list since the pool is capped.
	MaxMatchesLimit           = CandidatePoolCap
	DefaultScoringConcurrency = 8
)

// Ranking stages reported to observers on failure.
const (
	StageValidate = "validate"
	StageSeeker   = "load_seeker"
	StageSelect   = "select_candidates"
	StageLoad     = "load_candidates"
	StagePersist  = "persist_attempts"
)

// RankObserver receives ranking outcomes for metrics.
type RankObserver interface {
	RankingCompleted(ctx context.Context, intent string, poolSize, returned int, elapsed time.Duration)
	RankingFailed(ctx context.Context, intent, stage string, err error)
}

type nopObserver struct{}

func (nopObserver) RankingCompleted(context.Context, string, int, int, time.Duration) {}
func (nopObserver) RankingFailed(context.Context, string, string, error)              {}

// RankerConfig tunes a MatchRanker. Zero values fall back to defaults.
type RankerConfig struct {
	ScoringConcurrency int
	StoreTimeout       time.Duration
	LoaderBatchSize    int
	Scorer             *Scorer
	Observer           RankObserver
	Now                func() time.Time
	NewID              func() string
}

// MatchRanker is the entry point of the matching engine.
type MatchRanker struct {
	prefs       PreferenceStore
	attempts    MatchAttemptStore
	selector    *CandidateSelector
	scorer      *Scorer
	observer    RankObserver
	concurrency int
	timeout     time.Duration
	batchSize   int
	now         func() time.Time
	newID       func() string
}

func NewMatchRanker(prefs PreferenceStore, queue QueueStore, attempts MatchAttemptStore, config RankerConfig) *MatchRanker {
	r := &MatchRanker{
		prefs:       prefs,
		attempts:    attempts,
		scorer:      config.Scorer,
		observer:    config.Observer,
		concurrency: config.ScoringConcurrency,
		timeout:     config.StoreTimeout,
		batchSize:   config.LoaderBatchSize,
		now:         config.Now,
		newID:       config.NewID,
	}
	if r.scorer == nil {
		r.scorer = DefaultScorer()
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultScoringConcurrency
	}
	if r.timeout <= 0 {
		r.timeout = DefaultStoreTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.New().String() }
	}
	r.selector = NewCandidateSelector(queue, r.timeout)
	return r
}

type scoredCandidate struct {
	id        string
	breakdown ScoreBreakdown
}

// FindBestMatches scores the seeker against the waiting pool for intent and
// returns at most maxMatches results, best first, ties broken by ascending
// candidate id. One PENDING MatchAttempt is written per returned result. Any
// store failure aborts the call with no partial list.
func (r *MatchRanker) FindBestMatches(ctx context.Context, seekerID, intent string, maxMatches int) ([]RankedMatch, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "matching.FindBestMatches")
	defer span.End()
	started := r.now()

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "find_best_matches",
		"service":   "matching",
		"user_id":   seekerID,
	})

	fail := func(stage string, err error) ([]RankedMatch, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		r.observer.RankingFailed(ctx, intent, stage, err)
		if apperrors.IsErrorType(err, apperrors.ErrorTypeValidation) {
			logger.WithField("stage", stage).Warn(err.Error())
		} else {
			logger.WithField("stage", stage).WithError(err).Error("Ranking aborted")
		}
		return nil, err
	}

	if err := RequireUserID("seekerId", seekerID); err != nil {
		return fail(StageValidate, err)
	}
	normalized, err := NormalizeIntent(intent)
	if err != nil {
		return fail(StageValidate, err)
	}
	if maxMatches < 1 {
		return fail(StageValidate, apperrors.NewValidationError("maxMatches", apperrors.ReasonMaxMatchesOutOfRange,
			"maxMatches must be at least 1"))
	}
	intent = normalized
	span.SetAttributes(
		attribute.String("matching.intent", intent),
		attribute.Int("matching.max_matches", maxMatches),
	)

	var seeker *MatchingPreferences
	err = CallStore(ctx, r.timeout, "load seeker preferences", seekerID, func(ctx context.Context) error {
		var getErr error
		seeker, getErr = r.prefs.Get(ctx, seekerID)
		return getErr
	})
	if err != nil {
		return fail(StageSeeker, err)
	}
	if seeker == nil {
		seeker = DefaultPreferences(seekerID)
	}

	candidateIDs, err := r.selector.Select(ctx, seekerID, intent)
	if err != nil {
		return fail(StageSelect, err)
	}
	span.SetAttributes(attribute.Int("matching.pool_size", len(candidateIDs)))
	if len(candidateIDs) == 0 {
		r.observer.RankingCompleted(ctx, intent, 0, 0, r.now().Sub(started))
		logger.Debug("No waiting candidates")
		return []RankedMatch{}, nil
	}

	candidates, err := r.loadCandidates(ctx, candidateIDs)
	if err != nil {
		return fail(StageLoad, err)
	}

	asOf := r.now().UTC()
	scored := r.scoreAll(ctx, seeker, candidateIDs, candidates, asOf)

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].breakdown.Total != scored[j].breakdown.Total {
			return scored[i].breakdown.Total > scored[j].breakdown.Total
		}
		return scored[i].id < scored[j].id
	})
	if len(scored) > maxMatches {
		scored = scored[:maxMatches]
	}

	results, err := r.persist(ctx, seekerID, intent, len(candidateIDs), scored, asOf)
	if err != nil {
		return fail(StagePersist, err)
	}

	r.observer.RankingCompleted(ctx, intent, len(candidateIDs), len(results), r.now().Sub(started))
	logger.WithFields(map[string]interface{}{
		"intent":    intent,
		"pool_size": len(candidateIDs),
		"returned":  len(results),
	}).Info("Ranked candidates")

	return results, nil
}

func (r *MatchRanker) loadCandidates(ctx context.Context, ids []string) ([]*MatchingPreferences, error) {
	loader := NewPreferenceLoader(r.prefs, r.timeout, r.batchSize)
	prefs, errs := loader.LoadMany(ctx, ids)()
	for i, err := range errs {
		if err != nil {
			if _, ok := apperrors.As(err); ok {
				return nil, err
			}
			return nil, apperrors.NewDatabaseError("load candidate preferences", err).WithTarget(ids[i])
		}
	}
	return prefs, nil
}

// scoreAll fans scoring out over a bounded number of goroutines. Scoring is
// pure, so the only shared state is the result slot each goroutine owns.
func (r *MatchRanker) scoreAll(ctx context.Context, seeker *MatchingPreferences, ids []string, candidates []*MatchingPreferences, asOf time.Time) []scoredCandidate {
	scored := make([]scoredCandidate, len(ids))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range ids {
		g.Go(func() error {
			scored[i] = scoredCandidate{
				id:        ids[i],
				breakdown: r.scorer.Score(seeker, candidates[i], asOf),
			}
			return nil
		})
	}
	_ = g.Wait()
	return scored
}

// persist writes one attempt per result concurrently and waits for all of
// them. Ids are assigned up front so a retried insert is a no-op. On failure
// no list is returned, but inserts that already landed stay PENDING; they are
// never offered to the caller.
func (r *MatchRanker) persist(ctx context.Context, seekerID, intent string, poolSize int, scored []scoredCandidate, asOf time.Time) ([]RankedMatch, error) {
	results := make([]RankedMatch, len(scored))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, s := range scored {
		attempt := &MatchAttempt{
			ID:        r.newID(),
			User1ID:   seekerID,
			User2ID:   s.id,
			Scores:    s.breakdown,
			Algorithm: Algorithm,
			Metadata: AttemptMetadata{
				Intent:    intent,
				Timestamp: asOf,
				Rank:      i + 1,
				PoolSize:  poolSize,
			},
			Status:    AttemptPending,
			CreatedAt: asOf,
		}
		results[i] = RankedMatch{
			CandidateID:    s.id,
			MatchAttemptID: attempt.ID,
			Breakdown:      s.breakdown,
		}
		g.Go(func() error {
			return CallStore(gctx, r.timeout, "insert match attempt", attempt.ID, func(ctx context.Context) error {
				return r.attempts.Insert(ctx, attempt)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
