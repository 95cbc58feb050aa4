// Package worker runs the shard loop of one enrichment worker: it owns a
// single store connection, matches its shards in order and writes each
// result as soon as it is produced.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/listing-match/internal/listing"
	"github.com/sells-group/listing-match/internal/match"
	"github.com/sells-group/listing-match/internal/metrics"
	"github.com/sells-group/listing-match/internal/resilience"
	"github.com/sells-group/listing-match/internal/store"
)

// DefaultErrorLogLimit is how many shard errors a worker logs at error level.
const DefaultErrorLogLimit = 3

// Stats are the counters of one worker, or of a whole run once summed.
type Stats struct {
	Shards   int `json:"shards"`
	Scanned  int `json:"scanned"`
	Matched  int `json:"matched"`
	Updated  int `json:"updated"`
	Exported int `json:"exported"`
	Errors   int `json:"errors"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Shards += o.Shards
	s.Scanned += o.Scanned
	s.Matched += o.Matched
	s.Updated += o.Updated
	s.Exported += o.Exported
	s.Errors += o.Errors
}

// Config wires a worker.
type Config struct {
	ID      int
	Shards  []string
	Index   *listing.Index
	Matcher *match.Matcher
	Dial    store.Dialer

	// Retry governs reconnects. Zero value means resilience.DefaultRetryConfig.
	Retry resilience.RetryConfig

	// ErrorLogLimit caps error-level logs; later errors go to debug.
	ErrorLogLimit int

	// Limiter throttles store writes when set.
	Limiter *rate.Limiter

	// Sink receives results instead of the store (dry run).
	Sink *Sink

	Metrics *metrics.Metrics
}

// Worker processes a fixed list of shards sequentially.
type Worker struct {
	cfg    Config
	conn   store.Conn
	ledger *match.Ledger
	log    *zap.Logger
	stats  Stats
}

// New creates a worker. Shards are processed in the order given.
func New(cfg Config) *Worker {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.ErrorLogLimit <= 0 {
		cfg.ErrorLogLimit = DefaultErrorLogLimit
	}
	log := zap.L().With(zap.Int("worker", cfg.ID))
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("worker", "connect")
	}
	return &Worker{
		cfg:    cfg,
		ledger: match.NewLedger(),
		log:    log,
	}
}

// Run processes every shard and returns the worker's counters. Shard
// failures are counted, not returned; the only error is cancellation of
// ctx, checked between shards.
func (w *Worker) Run(ctx context.Context) (Stats, error) {
	defer w.drop(context.WithoutCancel(ctx))

	for _, code := range w.cfg.Shards {
		if err := ctx.Err(); err != nil {
			w.log.Warn("worker: stopping", zap.Int("shards_done", w.stats.Shards), zap.Error(err))
			return w.stats, err
		}
		if w.cfg.Index.Shard(code).Len() == 0 {
			continue
		}
		w.runShard(ctx, code)
	}

	w.log.Info("worker: done",
		zap.Int("shards", w.stats.Shards),
		zap.Int("scanned", w.stats.Scanned),
		zap.Int("matches", w.stats.Matched),
		zap.Int("updates", w.stats.Updated),
		zap.Int("errors", w.stats.Errors),
	)
	return w.stats, nil
}

// shardRun tracks progress inside one shard so partial work is still counted.
type shardRun struct {
	scanned, matched, updated, exported int
}

func (w *Worker) runShard(ctx context.Context, code string) {
	start := time.Now()
	field := string(w.cfg.Matcher.Field)
	var sr shardRun

	stage, err := w.processShard(ctx, code, &sr)

	w.stats.Shards++
	w.stats.Scanned += sr.scanned
	w.stats.Matched += sr.matched
	w.stats.Updated += sr.updated
	w.stats.Exported += sr.exported
	w.cfg.Metrics.ObserveShard(field, sr.scanned, sr.matched, sr.updated, time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.stats.Errors++
		w.cfg.Metrics.ObserveError(field, stage)
		w.logShardError(code, stage, err)
		w.drop(ctx)
		return
	}

	w.log.Info("worker: shard done",
		zap.String("shard", code),
		zap.Int("scanned", sr.scanned),
		zap.Int("matches", sr.matched),
		zap.Int("updates", sr.updated),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// processShard returns the failing stage alongside any error.
func (w *Worker) processShard(ctx context.Context, code string, sr *shardRun) (string, error) {
	conn, err := w.connect(ctx)
	if err != nil {
		return "connect", err
	}

	recs, err := conn.Unresolved(ctx, code, w.cfg.Matcher.Field)
	if err != nil {
		return "fetch", err
	}
	sr.scanned = len(recs)

	results := w.cfg.Matcher.MatchShard(recs, w.cfg.Index.Shard(code), w.ledger)
	sr.matched = len(results)

	for _, r := range results {
		if w.cfg.Sink != nil {
			if err := w.cfg.Sink.Write(r); err != nil {
				return "export", err
			}
			sr.exported++
			continue
		}
		if w.cfg.Limiter != nil {
			if err := w.cfg.Limiter.Wait(ctx); err != nil {
				return "apply", err
			}
		}
		n, err := conn.Apply(ctx, r)
		if err != nil {
			return "apply", err
		}
		sr.updated += int(n)
	}
	return "", nil
}

// connect returns the held connection or dials a fresh one.
func (w *Worker) connect(ctx context.Context) (store.Conn, error) {
	if w.conn != nil {
		return w.conn, nil
	}
	conn, err := resilience.DoVal(ctx, w.cfg.Retry, func(ctx context.Context) (store.Conn, error) {
		return w.cfg.Dial(ctx)
	})
	if err != nil {
		return nil, err
	}
	w.conn = conn
	return conn, nil
}

// drop closes and forgets the held connection.
func (w *Worker) drop(ctx context.Context) {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(ctx); err != nil {
		w.log.Debug("worker: close connection", zap.Error(err))
	}
	w.conn = nil
}

func (w *Worker) logShardError(code, stage string, err error) {
	fields := []zap.Field{
		zap.String("shard", code),
		zap.String("stage", stage),
		zap.Int("errors", w.stats.Errors),
		zap.Bool("transient", resilience.IsTransient(err)),
		zap.Error(err),
	}
	if w.stats.Errors <= w.cfg.ErrorLogLimit {
		w.log.Error("worker: shard failed", fields...)
		return
	}
	w.log.Debug("worker: shard failed", fields...)
}
