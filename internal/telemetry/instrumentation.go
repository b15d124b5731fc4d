package telemetry

import (
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans and instruments emitted by this module
const InstrumentationName = "github.com/meetsmatch/matchqueue"

// Tracer returns the module tracer from the global provider
func Tracer() oteltrace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// InstrumentDatabase opens a traced database handle and registers pool stats metrics
func InstrumentDatabase(driverName, dataSourceName, dbName string) (*sql.DB, error) {
	attrs := []attribute.KeyValue{
		semconv.DBSystemPostgreSQL,
		semconv.DBName(dbName),
	}

	db, err := otelsql.Open(driverName, dataSourceName,
		otelsql.WithAttributes(attrs...),
		otelsql.WithSpanOptions(otelsql.SpanOptions{
			OmitConnResetSession: true,
			OmitRows:             true,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open instrumented database: %w", err)
	}

	if err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(attrs...)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register database stats: %w", err)
	}

	return db, nil
}

// InstrumentRedisClient adds the tracing hook to a Redis client
func InstrumentRedisClient(client *redis.Client) {
	client.AddHook(redisotel.NewTracingHook(
		redisotel.WithAttributes(semconv.DBSystemRedis),
	))
}
