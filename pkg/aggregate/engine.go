// Package aggregate implements the parallel map-reduce pipeline that folds a
// message set into per-author accumulators and a server-wide aggregate.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/chatfang/pkg/author"
	"github.com/Sumatoshi-tech/chatfang/pkg/chatlog"
	"github.com/Sumatoshi-tech/chatfang/pkg/observability"
)

const tracerName = "chatfang/aggregate"

// ErrWorkerFailed is returned when a shard worker fails or panics. The run is
// aborted: a silently dropped shard would corrupt global counts.
var ErrWorkerFailed = errors.New("aggregate: shard worker failed")

// Result is the output handed to the reporting collaborator.
type Result struct {
	// Authors maps every real author id to its merged accumulator.
	Authors map[uint64]*author.Author
	// Server is the merge of every author in Authors.
	Server *author.Author
}

// Engine runs the fork-join aggregation. The zero value is ready to use.
type Engine struct {
	Logger  *slog.Logger
	Metrics *observability.EngineMetrics

	// shardFn folds one shard. Nil means AggregateShard; tests replace it to inject failures.
	shardFn func(shard []chatlog.Message) map[uint64]*author.Author

	// Workers is the shard count. Zero or negative means runtime.NumCPU().
	Workers int
}

// NewEngine creates an Engine with the given worker count.
func NewEngine(workers int, logger *slog.Logger, metrics *observability.EngineMetrics) *Engine {
	return &Engine{
		Workers: workers,
		Logger:  logger,
		Metrics: metrics,
	}
}

// Run partitions messages across the workers, folds every shard concurrently,
// and merges the partial maps on the calling goroutine. Any worker failure is
// fatal and no partial result is returned. Empty input yields an empty master
// map and an all-zero server aggregate.
//
// The full message set must be resident in memory; the engine does not stream.
func (e *Engine) Run(ctx context.Context, messages []chatlog.Message) (*Result, error) {
	logger := e.logger()
	workers := e.workerCount()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "chatfang.aggregate",
		trace.WithAttributes(
			attribute.Int("aggregate.messages", len(messages)),
			attribute.Int("aggregate.workers", workers),
		))
	defer span.End()

	start := time.Now()
	shards := Partition(messages, workers)

	parts, err := e.foldShards(ctx, shards)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shard aggregation failed")

		return nil, err
	}

	logger.InfoContext(ctx, "aggregate: shards folded",
		"shards", len(shards), "messages", len(messages), "elapsed", time.Since(start))

	mergeStart := time.Now()

	_, mergeSpan := otel.Tracer(tracerName).Start(ctx, "chatfang.merge")
	master := MergeShards(parts)
	server := ServerAggregate(master)
	mergeSpan.SetAttributes(attribute.Int("aggregate.authors", len(master)))
	mergeSpan.End()

	e.Metrics.RecordAuthors(ctx, len(master))

	logger.InfoContext(ctx, "aggregate: partial maps merged",
		"authors", len(master), "elapsed", time.Since(mergeStart))

	return &Result{Authors: master, Server: server}, nil
}

// foldShards runs one worker per shard. Each worker writes only its own slot
// of parts, so no locking is needed; g.Wait is the single join point.
func (e *Engine) foldShards(ctx context.Context, shards [][]chatlog.Message) ([]map[uint64]*author.Author, error) {
	parts := make([]map[uint64]*author.Author, len(shards))

	var g errgroup.Group

	for i, shard := range shards {
		g.Go(func() error {
			part, err := e.foldShard(ctx, i, shard)
			if err != nil {
				return err
			}

			parts[i] = part

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	return parts, nil
}

func (e *Engine) foldShard(ctx context.Context, index int, shard []chatlog.Message) (part map[uint64]*author.Author, err error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "chatfang.aggregate.shard",
		trace.WithAttributes(
			attribute.Int("shard.index", index),
			attribute.Int("shard.messages", len(shard)),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: shard %d: panic: %v", ErrWorkerFailed, index, r)
			part = nil

			span.RecordError(err)
			span.SetStatus(codes.Error, "shard panicked")
		}
	}()

	start := time.Now()

	fold := e.shardFn
	if fold == nil {
		fold = AggregateShard
	}

	part = fold(shard)
	if part == nil {
		return nil, fmt.Errorf("%w: shard %d produced no result", ErrWorkerFailed, index)
	}

	e.Metrics.RecordShard(ctx, len(shard), time.Since(start))

	return part, nil
}

func (e *Engine) workerCount() int {
	if e.Workers > 0 {
		return e.Workers
	}

	return runtime.NumCPU()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}

	return slog.Default()
}
