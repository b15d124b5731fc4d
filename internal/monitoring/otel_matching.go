package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/telemetry"
)

const instrumentationVersion = "1.0.0"

// MatchingInstrumentation records ranking outcomes as OpenTelemetry metrics
type MatchingInstrumentation struct {
	rankingDuration  metric.Float64Histogram
	candidatesScored metric.Int64Counter
	attemptsWritten  metric.Int64Counter
	rankingFailures  metric.Int64Counter
	queueExpired     metric.Int64Counter
}

// NewMatchingInstrumentation creates the matching instruments on provider,
// or on the global provider when provider is nil.
func NewMatchingInstrumentation(provider metric.MeterProvider) (*MatchingInstrumentation, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(telemetry.InstrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	rankingDuration, err := meter.Float64Histogram(
		"matching_ranking_duration_seconds",
		metric.WithDescription("Duration of a completed ranking call in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching_ranking_duration_seconds histogram: %w", err)
	}

	candidatesScored, err := meter.Int64Counter(
		"matching_candidates_scored_total",
		metric.WithDescription("Total number of candidates scored"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching_candidates_scored_total counter: %w", err)
	}

	attemptsWritten, err := meter.Int64Counter(
		"matching_attempts_written_total",
		metric.WithDescription("Total number of match attempts persisted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching_attempts_written_total counter: %w", err)
	}

	rankingFailures, err := meter.Int64Counter(
		"matching_ranking_failures_total",
		metric.WithDescription("Total number of failed ranking calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching_ranking_failures_total counter: %w", err)
	}

	queueExpired, err := meter.Int64Counter(
		"matching_queue_entries_expired_total",
		metric.WithDescription("Total number of waiting queue entries expired"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching_queue_entries_expired_total counter: %w", err)
	}

	return &MatchingInstrumentation{
		rankingDuration:  rankingDuration,
		candidatesScored: candidatesScored,
		attemptsWritten:  attemptsWritten,
		rankingFailures:  rankingFailures,
		queueExpired:     queueExpired,
	}, nil
}

func (m *MatchingInstrumentation) RankingCompleted(ctx context.Context, intent string, poolSize, returned int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("intent", intent))
	m.rankingDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.candidatesScored.Add(ctx, int64(poolSize), attrs)
	m.attemptsWritten.Add(ctx, int64(returned), attrs)
}

func (m *MatchingInstrumentation) RankingFailed(ctx context.Context, intent, stage string, err error) {
	errorType := "unknown"
	if t, ok := apperrors.GetErrorType(err); ok {
		errorType = string(t)
	}
	m.rankingFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("stage", stage),
		attribute.String("error_type", errorType),
	))
}

// RecordQueueExpired counts entries retired by the expiry job.
func (m *MatchingInstrumentation) RecordQueueExpired(ctx context.Context, count int64) {
	if count <= 0 {
		return
	}
	m.queueExpired.Add(ctx, count)
}

var _ matching.RankObserver = (*MatchingInstrumentation)(nil)
