// Package upload applies exported match results to the store in bulk.
//
// Phone results are written one chunk per statement; when a chunk fails its
// rows are retried one at a time and the rows that still fail are reported
// as RowError values. Rating results always go row by row.
package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/listing-match/internal/db"
	"github.com/sells-group/listing-match/internal/metrics"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/resilience"
	"github.com/sells-group/listing-match/internal/store"
)

// Defaults for Options.
const (
	DefaultChunkSize = 500
	DefaultWorkers   = 4
)

// Options configures an upload.
type Options struct {
	ChunkSize int
	Workers   int
	Retry     resilience.RetryConfig
	Metrics   *metrics.Metrics
}

// RowError is a result that could not be written even on its own.
type RowError struct {
	CanonicalID string
	Field       model.Field
	Err         error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("upload: row %s (%s): %v", e.CanonicalID, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Result aggregates an upload.
type Result struct {
	Rows      int         `json:"rows"`
	Chunks    int         `json:"chunks"`
	Fallbacks int         `json:"fallbacks"`
	Updated   int         `json:"updated"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Errors    []*RowError `json:"-"`
}

func (r *Result) merge(o Result) {
	r.Chunks += o.Chunks
	r.Fallbacks += o.Fallbacks
	r.Updated += o.Updated
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	r.Errors = append(r.Errors, o.Errors...)
}

type batch struct {
	field model.Field
	rows  []model.MatchResult
}

// Run writes results with opts.Workers goroutines, each on its own
// connection. Only a failure to open a worker's first connection or
// cancellation is returned; row failures are reported in the Result.
func Run(ctx context.Context, dial store.Dialer, results []model.MatchResult, opts Options) (*Result, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("upload", "connect")
	}

	batches := split(results, opts.ChunkSize)
	out := &Result{Rows: len(results)}
	if len(batches) == 0 {
		return out, nil
	}
	workers := min(opts.Workers, len(batches))

	zap.L().Info("upload: starting",
		zap.Int("rows", len(results)),
		zap.Int("chunks", len(batches)),
		zap.Int("workers", workers),
	)

	queue := make(chan batch)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for _, b := range batches {
			select {
			case queue <- b:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := range workers {
		g.Go(func() error {
			u := &uploader{id: i + 1, dial: dial, retry: opts.Retry, metrics: opts.Metrics}
			defer u.drop(context.WithoutCancel(gctx))
			if _, err := u.connect(gctx); err != nil {
				return eris.Wrapf(err, "upload: worker %d connect", u.id)
			}
			for b := range queue {
				res := u.apply(gctx, b)
				mu.Lock()
				out.merge(res)
				mu.Unlock()
			}
			return gctx.Err()
		})
	}

	err := g.Wait()
	zap.L().Info("upload: complete",
		zap.Int("updated", out.Updated),
		zap.Int("skipped", out.Skipped),
		zap.Int("failed", out.Failed),
		zap.Int("fallbacks", out.Fallbacks),
	)
	if err != nil {
		return out, eris.Wrap(err, "upload: run")
	}
	return out, nil
}

// split groups results by field and chunks each group.
func split(results []model.MatchResult, size int) []batch {
	var phones, ratings []model.MatchResult
	for _, r := range results {
		if r.Field == model.FieldRating {
			ratings = append(ratings, r)
		} else {
			phones = append(phones, r)
		}
	}
	var out []batch
	for _, c := range db.Chunk(phones, size) {
		out = append(out, batch{field: model.FieldPhone, rows: c})
	}
	for _, c := range db.Chunk(ratings, size) {
		out = append(out, batch{field: model.FieldRating, rows: c})
	}
	return out
}

// uploader is one upload goroutine and its connection.
type uploader struct {
	id      int
	dial    store.Dialer
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	conn    store.Conn
}

func (u *uploader) connect(ctx context.Context) (store.Conn, error) {
	if u.conn != nil {
		return u.conn, nil
	}
	conn, err := resilience.DoVal(ctx, u.retry, func(ctx context.Context) (store.Conn, error) {
		return u.dial(ctx)
	})
	if err != nil {
		return nil, err
	}
	u.conn = conn
	return conn, nil
}

func (u *uploader) drop(ctx context.Context) {
	if u.conn == nil {
		return
	}
	if err := u.conn.Close(ctx); err != nil {
		zap.L().Debug("upload: close connection", zap.Int("worker", u.id), zap.Error(err))
	}
	u.conn = nil
}

func (u *uploader) apply(ctx context.Context, b batch) Result {
	res := Result{Chunks: 1}
	defer func() {
		u.metrics.ObserveUpload("updated", res.Updated)
		u.metrics.ObserveUpload("skipped", res.Skipped)
		u.metrics.ObserveUpload("failed", res.Failed)
	}()

	if b.field == model.FieldPhone {
		n, err := u.applyChunk(ctx, b.rows)
		if err == nil {
			res.Updated = int(n)
			res.Skipped = len(b.rows) - int(n)
			return res
		}
		res.Fallbacks++
		zap.L().Warn("upload: chunk failed, applying rows one by one",
			zap.Int("worker", u.id),
			zap.Int("rows", len(b.rows)),
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err),
		)
		if resilience.IsTransient(err) {
			u.drop(ctx)
		}
	}

	for _, r := range b.rows {
		n, err := u.applyRow(ctx, r)
		switch {
		case err != nil:
			res.Failed++
			res.Errors = append(res.Errors, &RowError{CanonicalID: r.CanonicalID, Field: r.Field, Err: err})
		case n == 0:
			res.Skipped++
		default:
			res.Updated++
		}
	}
	return res
}

func (u *uploader) applyChunk(ctx context.Context, rows []model.MatchResult) (int64, error) {
	conn, err := u.connect(ctx)
	if err != nil {
		return 0, err
	}
	return conn.ApplyPhones(ctx, rows)
}

func (u *uploader) applyRow(ctx context.Context, r model.MatchResult) (int64, error) {
	conn, err := u.connect(ctx)
	if err != nil {
		return 0, err
	}
	n, err := conn.Apply(ctx, r)
	if err != nil && resilience.IsTransient(err) {
		u.drop(ctx)
	}
	return n, err
}
