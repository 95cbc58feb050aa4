// Package enrich runs a full matching job: it builds the listing index once,
// splits the shard catalog across a fixed pool of workers and aggregates
// their counters into a Report.
package enrich

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/listing-match/internal/listing"
	"github.com/sells-group/listing-match/internal/match"
	"github.com/sells-group/listing-match/internal/metrics"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/normalize"
	"github.com/sells-group/listing-match/internal/resilience"
	"github.com/sells-group/listing-match/internal/shard"
	"github.com/sells-group/listing-match/internal/store"
	"github.com/sells-group/listing-match/internal/worker"
)

// Defaults for Options.
const (
	DefaultWorkers       = 4
	DefaultCityCacheSize = 2048
)

// Options configures a run.
type Options struct {
	Field       model.Field
	Files       []string
	Workers     int
	Threshold   float64
	PostalBonus float64
	Normalizer  *normalize.Normalizer

	CityCacheSize   int
	ConnectRetries  int
	ErrorLogLimit   int
	MaxWritesPerSec float64

	// Sink switches the run to dry-run mode.
	Sink    *worker.Sink
	Metrics *metrics.Metrics
}

// Runner executes matching runs against one store.
type Runner struct {
	dial store.Dialer
	opts Options
}

// New creates a Runner. Zero options fall back to package defaults.
func New(dial store.Dialer, opts Options) *Runner {
	if opts.Field == "" {
		opts.Field = model.FieldPhone
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Threshold <= 0 {
		opts.Threshold = match.DefaultThreshold
	}
	if opts.PostalBonus < 0 {
		opts.PostalBonus = 0
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.Default()
	}
	if opts.CityCacheSize <= 0 {
		opts.CityCacheSize = DefaultCityCacheSize
	}
	if opts.ErrorLogLimit <= 0 {
		opts.ErrorLogLimit = worker.DefaultErrorLogLimit
	}
	return &Runner{dial: dial, opts: opts}
}

// Run loads the index and matches every shard. Shard failures only show up
// in Report.Stats.Errors; an error is returned when the index cannot be
// built or the run is cancelled, in which case the partial report is still
// returned.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:   uuid.NewString(),
		Field:   r.opts.Field,
		DryRun:  r.opts.Sink != nil,
		Workers: r.opts.Workers,
	}
	log := zap.L().With(zap.String("run_id", report.RunID), zap.String("field", string(r.opts.Field)))

	ix, cities, err := r.LoadIndex(ctx)
	if err != nil {
		return report, err
	}
	report.Index = ix.Stats
	report.CityCache = cities.Stats()
	r.opts.Metrics.SetIndexed(ix.Len())
	log.Info("enrich: index built",
		zap.Int("indexed", ix.Len()),
		zap.Int("shards", len(ix.Shards())),
		zap.Int("bad_phone", ix.Stats.BadPhone),
		zap.Int("duplicate", ix.Stats.Duplicate),
		zap.Int("known_phone", ix.Stats.KnownPhone),
		zap.Int("unknown_department", ix.Stats.Unknown),
	)

	groups := shard.Partition(shard.All(), r.opts.Workers)
	report.Workers = len(groups)
	report.PerWorker = make([]worker.Stats, len(groups))

	var limiter *rate.Limiter
	if r.opts.MaxWritesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opts.MaxWritesPerSec), max(1, int(r.opts.MaxWritesPerSec)))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, shards := range groups {
		w := worker.New(worker.Config{
			ID:            i + 1,
			Shards:        shards,
			Index:         ix,
			Matcher:       r.matcher(),
			Dial:          r.dial,
			Retry:         resilience.ConnectRetry(r.opts.ConnectRetries),
			ErrorLogLimit: r.opts.ErrorLogLimit,
			Limiter:       limiter,
			Sink:          r.opts.Sink,
			Metrics:       r.opts.Metrics,
		})
		g.Go(func() error {
			stats, err := w.Run(gctx)
			report.PerWorker[i] = stats
			return err
		})
	}

	err = g.Wait()
	for _, s := range report.PerWorker {
		report.Stats.Add(s)
	}
	report.Elapsed = time.Since(start)

	log.Info("enrich: run complete",
		zap.Int("scanned", report.Stats.Scanned),
		zap.Int("matched", report.Stats.Matched),
		zap.Int("updated", report.Stats.Updated),
		zap.Int("exported", report.Stats.Exported),
		zap.Int("errors", report.Stats.Errors),
		zap.Duration("elapsed", report.Elapsed),
	)
	if err != nil {
		return report, eris.Wrap(err, "enrich: run")
	}
	return report, nil
}

func (r *Runner) matcher() *match.Matcher {
	m := match.New(r.opts.Field)
	m.Threshold = r.opts.Threshold
	m.PostalBonus = r.opts.PostalBonus
	m.Normalizer = r.opts.Normalizer
	return m
}

// LoadIndex opens a startup connection, reads the phones already stored
// and decodes every listing file. Failing to connect or to open a file is
// fatal to the run.
func (r *Runner) LoadIndex(ctx context.Context) (*listing.Index, *listing.CityResolver, error) {
	retry := resilience.ConnectRetry(r.opts.ConnectRetries)
	retry.OnRetry = resilience.RetryLogger("enrich", "connect")
	conn, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (store.Conn, error) {
		return r.dial(ctx)
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "enrich: open startup connection")
	}
	defer conn.Close(context.WithoutCancel(ctx)) //nolint:errcheck

	cities := listing.NewCityResolver(conn.DepartmentForCity, r.opts.CityCacheSize)
	opts := []listing.BuilderOption{
		listing.WithNormalizer(r.opts.Normalizer),
		listing.WithCityResolver(cities),
	}

	if r.opts.Field == model.FieldPhone {
		known, err := conn.KnownPhones(ctx)
		if err != nil {
			return nil, nil, eris.Wrap(err, "enrich: load known phones")
		}
		zap.L().Info("enrich: known phones loaded", zap.Int("count", len(known)))
		opts = append(opts, listing.WithKnownPhones(known))
	}

	b := listing.NewBuilder(r.opts.Field, opts...)
	if err := b.LoadFiles(ctx, r.opts.Files); err != nil {
		return nil, nil, eris.Wrap(err, "enrich: load listings")
	}
	return b.Index(), cities, nil
}
