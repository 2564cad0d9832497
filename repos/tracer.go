package repos

import (
	"context"
	"github.com/DataDog/go-sqllexer"
	"github.com/jackc/pgx/v5"
	"log/slog"
	"time"
)

type tracer struct {
	logger        *slog.Logger
	slowThreshold time.Duration
}

var normalizer = sqllexer.NewNormalizer()

type ctxKey int

const (
	_ ctxKey = iota
	traceQueryCtxKey
	traceBatchCtxKey
	traceConnectCtxKey
)

const slowQueryThreshold = 200 * time.Millisecond

func newTracer(logger *slog.Logger) *tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &tracer{logger: logger, slowThreshold: slowQueryThreshold}
}

func (tl *tracer) normalize(sql string) string {
	out, _, err := normalizer.Normalize(sql)
	if err != nil {
		tl.logger.Warn("error normalizing SQL", "err", err)
		return sql
	}
	return out
}

type traceQueryData struct {
	startTime time.Time
	sql       string
}

func (tl *tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceQueryCtxKey, &traceQueryData{
		startTime: time.Now(),
		sql:       tl.normalize(data.SQL),
	})
}

func (tl *tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	queryData, ok := ctx.Value(traceQueryCtxKey).(*traceQueryData)
	if !ok {
		return
	}
	interval := time.Since(queryData.startTime)

	if data.Err != nil {
		tl.logger.Error("query failed", "sql", queryData.sql, "err", data.Err, "time", interval)
		return
	}

	if interval > tl.slowThreshold {
		tl.logger.Warn("slow query", "sql", queryData.sql, "time", interval, "commandTag", data.CommandTag.String())
	}
}

type traceBatchData struct {
	startTime time.Time
	sql       map[string]int
}

func (tl *tracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchStartData) context.Context {
	sql := make(map[string]int)
	for _, q := range data.Batch.QueuedQueries {
		sql[tl.normalize(q.SQL)] += 1
	}

	return context.WithValue(ctx, traceBatchCtxKey, &traceBatchData{
		startTime: time.Now(),
		sql:       sql,
	})
}

func (tl *tracer) TraceBatchQuery(_ context.Context, _ *pgx.Conn, data pgx.TraceBatchQueryData) {
	if data.Err != nil {
		tl.logger.Error("batch query failed", "sql", tl.normalize(data.SQL), "err", data.Err)
	}
}

func (tl *tracer) TraceBatchEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchEndData) {
	batchData, ok := ctx.Value(traceBatchCtxKey).(*traceBatchData)
	if !ok {
		return
	}
	interval := time.Since(batchData.startTime)

	if data.Err != nil {
		tl.logger.Error("batch failed", "err", data.Err, "time", interval)
		return
	}

	if interval > tl.slowThreshold {
		tl.logger.Warn("slow batch", "sql", batchData.sql, "time", interval)
	}
}

type traceConnectData struct {
	startTime  time.Time
	connConfig *pgx.ConnConfig
}

func (tl *tracer) TraceConnectStart(ctx context.Context, data pgx.TraceConnectStartData) context.Context {
	return context.WithValue(ctx, traceConnectCtxKey, &traceConnectData{
		startTime:  time.Now(),
		connConfig: data.ConnConfig,
	})
}

func (tl *tracer) TraceConnectEnd(ctx context.Context, data pgx.TraceConnectEndData) {
	connectData, ok := ctx.Value(traceConnectCtxKey).(*traceConnectData)
	if !ok || data.Err == nil {
		return
	}

	tl.logger.Error("connect failed",
		"err", data.Err,
		"host", connectData.connConfig.Host,
		"port", connectData.connConfig.Port,
		"database", connectData.connConfig.Database,
		"time", time.Since(connectData.startTime),
	)
}
