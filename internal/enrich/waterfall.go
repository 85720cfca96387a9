// Package enrich builds an EnrichedRecord by walking the company through an
// ordered list of sources and merging what each one finds.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/ratelimit"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// DefaultInterval spaces outbound source calls and batch companies.
const DefaultInterval = 1500 * time.Millisecond

var (
	// ErrNoInput means the contact lacks what a source needs to search.
	ErrNoInput = eris.New("enrich: missing input")
	// ErrNotFound means the source had no match for the company.
	ErrNotFound = eris.New("enrich: no match")
)

// Source is one step of the waterfall. It returns a partial record holding
// only what it found.
type Source interface {
	Name() model.SourceName
	Lookup(ctx context.Context, c model.Contact, icp model.ICP) (*model.EnrichedRecord, error)
}

// Waterfall runs sources in order and merges their contributions.
type Waterfall struct {
	sources  []Source
	throttle ratelimit.Throttle
	between  ratelimit.Throttle
	breakers *resilience.Breakers
	now      func() time.Time
	log      *zap.Logger
}

// Option configures a Waterfall.
type Option func(*Waterfall)

// WithThrottle sets the throttle gating every source call.
func WithThrottle(t ratelimit.Throttle) Option {
	return func(w *Waterfall) { w.throttle = t }
}

// WithBatchThrottle sets the throttle between companies in EnrichBatch.
func WithBatchThrottle(t ratelimit.Throttle) Option {
	return func(w *Waterfall) { w.between = t }
}

// WithBreakers sets the per-source circuit breakers.
func WithBreakers(b *resilience.Breakers) Option {
	return func(w *Waterfall) { w.breakers = b }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Waterfall) { w.now = now }
}

// New creates a Waterfall. Sources run in the order given.
func New(sources []Source, opts ...Option) *Waterfall {
	w := &Waterfall{
		sources:  sources,
		throttle: ratelimit.Every(DefaultInterval),
		between:  ratelimit.Every(DefaultInterval),
		breakers: resilience.NewBreakers(resilience.BreakerConfig{}),
		now:      time.Now,
		log:      zap.L().With(zap.String("component", "enrich")),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Enrich never fails: a failing source is logged and skipped. Cancellation
// is observed between sources; a source that has started runs to its own
// timeout.
func (w *Waterfall) Enrich(ctx context.Context, c model.Contact, icp model.ICP) *model.EnrichedRecord {
	rec := model.NewEnrichedRecord(c)
	log := w.log.With(zap.String("company", c.CompanyName))

	for _, src := range w.sources {
		if ctx.Err() != nil {
			log.Info("enrichment cancelled", zap.String("next_source", string(src.Name())))
			break
		}
		if err := w.throttle.Wait(ctx); err != nil {
			log.Info("enrichment cancelled", zap.String("next_source", string(src.Name())))
			break
		}

		patch, err := resilience.ExecuteVal(context.WithoutCancel(ctx), w.breakers.Get(string(src.Name())),
			func(ctx context.Context) (*model.EnrichedRecord, error) {
				return src.Lookup(ctx, c, icp)
			})
		if err != nil {
			level := log.Warn
			if eris.Is(err, ErrNoInput) || eris.Is(err, ErrNotFound) {
				level = log.Debug
			}
			level("enrichment source failed", zap.String("source", string(src.Name())), zap.Error(err))
			continue
		}
		Merge(rec, patch, src.Name())
		rec.Sources = append(rec.Sources, src.Name())
	}

	applyCompleteness(rec)
	rec.EnrichedAt = w.now().UTC()
	rec.Version = rec.EnrichedAt.UnixNano()
	log.Debug("enrichment complete",
		zap.Int("sources", len(rec.Sources)),
		zap.Int("completeness", rec.Completeness),
	)
	return rec
}

// BatchResult is the outcome for one company of EnrichBatch.
type BatchResult struct {
	Contact model.Contact         `json:"contact"`
	Record  *model.EnrichedRecord `json:"record,omitempty"`
	Err     error                 `json:"-"`
	Error   string                `json:"error,omitempty"`
}

// EnrichBatch enriches contacts one at a time with the batch throttle
// between companies. A failing company yields an error result and the
// batch continues. Companies not reached before cancellation are omitted.
func (w *Waterfall) EnrichBatch(ctx context.Context, contacts []model.Contact, icp model.ICP) []BatchResult {
	results := make([]BatchResult, 0, len(contacts))
	for i, c := range contacts {
		if i > 0 {
			if err := w.between.Wait(ctx); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		results = append(results, w.enrichOne(ctx, c, icp))
	}
	w.log.Info("batch enrichment complete", zap.Int("requested", len(contacts)), zap.Int("processed", len(results)))
	return results
}

func (w *Waterfall) enrichOne(ctx context.Context, c model.Contact, icp model.ICP) (res BatchResult) {
	res.Contact = c
	defer func() {
		if r := recover(); r != nil {
			res.Record = nil
			res.Err = eris.Errorf("enrich: panic: %v", r)
			res.Error = res.Err.Error()
			w.log.Error("enrichment panicked", zap.String("company", c.CompanyName), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := c.Validate(); err != nil {
		res.Err = err
		res.Error = err.Error()
		return res
	}
	res.Record = w.Enrich(ctx, c, icp)
	return res
}
