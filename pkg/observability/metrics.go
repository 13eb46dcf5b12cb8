package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricMessagesTotal       = "chatfang.messages.total"
	metricShardsTotal         = "chatfang.shards.total"
	metricShardDuration       = "chatfang.shard.duration.seconds"
	metricAuthorsTotal        = "chatfang.authors.total"
	metricExportFailuresTotal = "chatfang.export.failures.total"

	attrKind = "kind"
)

// durationBucketBoundaries covers 1ms to 60s: shard folds are in-memory and short.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// EngineMetrics holds the OTel instruments for one aggregation run.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	messagesTotal  metric.Int64Counter
	shardsTotal    metric.Int64Counter
	shardDuration  metric.Float64Histogram
	authorsTotal   metric.Int64Counter
	exportFailures metric.Int64Counter
}

// NewEngineMetrics creates engine metric instruments from the given meter.
func NewEngineMetrics(mt metric.Meter) (*EngineMetrics, error) {
	messages, err := mt.Int64Counter(metricMessagesTotal,
		metric.WithDescription("Total messages folded into author accumulators"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMessagesTotal, err)
	}

	shards, err := mt.Int64Counter(metricShardsTotal,
		metric.WithDescription("Total shards aggregated"),
		metric.WithUnit("{shard}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricShardsTotal, err)
	}

	shardDur, err := mt.Float64Histogram(metricShardDuration,
		metric.WithDescription("Per-shard aggregation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricShardDuration, err)
	}

	authors, err := mt.Int64Counter(metricAuthorsTotal,
		metric.WithDescription("Distinct authors in the merged master map"),
		metric.WithUnit("{author}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAuthorsTotal, err)
	}

	failures, err := mt.Int64Counter(metricExportFailuresTotal,
		metric.WithDescription("Recoverable report and download failures by kind"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricExportFailuresTotal, err)
	}

	return &EngineMetrics{
		messagesTotal:  messages,
		shardsTotal:    shards,
		shardDuration:  shardDur,
		authorsTotal:   authors,
		exportFailures: failures,
	}, nil
}

// RecordShard records one finished shard fold.
func (em *EngineMetrics) RecordShard(ctx context.Context, messages int, duration time.Duration) {
	if em == nil {
		return
	}

	em.messagesTotal.Add(ctx, int64(messages))
	em.shardsTotal.Add(ctx, 1)
	em.shardDuration.Record(ctx, duration.Seconds())
}

// RecordAuthors records the size of the merged master map.
func (em *EngineMetrics) RecordAuthors(ctx context.Context, authors int) {
	if em == nil {
		return
	}

	em.authorsTotal.Add(ctx, int64(authors))
}

// RecordFailure records one recoverable failure of the given kind (e.g. "csv", "plot", "download").
func (em *EngineMetrics) RecordFailure(ctx context.Context, kind string) {
	if em == nil {
		return
	}

	em.exportFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}
