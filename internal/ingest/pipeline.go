package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aidigest/internal/domain"

	"golang.org/x/sync/singleflight"
)

const (
	refreshKey          = "refresh"
	refreshTimeout      = 2 * time.Minute
	maxFetchParallelism = 8
)

// Fetcher produces candidate items from one source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, asOf time.Time) ([]domain.Candidate, error)
}

type ItemStore interface {
	Submit(
		ctx context.Context,
		candidate domain.Candidate,
		observedAt time.Time,
		observedDate string,
	) (domain.SubmitResult, domain.Item, error)
}

// Observer is notified about ingestion outcomes. It may be nil.
type Observer interface {
	FetchFailed(source string)
	ItemSubmitted(result domain.SubmitResult)
}

type Result struct {
	Accepted      int
	Duplicates    int
	FailedSources []string
}

// Pipeline refreshes the item store from all fetchers. At most one refresh
// runs at a time; a refresh finished less than reuseWindow ago for the same
// date is reused instead of fetching again.
type Pipeline struct {
	fetchers    []Fetcher
	store       ItemStore
	observer    Observer
	reuseWindow time.Duration
	location    *time.Location
	log         *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	lastDate string
	lastAt   time.Time
	last     Result
}

func New(
	fetchers []Fetcher,
	store ItemStore,
	observer Observer,
	reuseWindow time.Duration,
	location *time.Location,
	log *slog.Logger,
) *Pipeline {
	if location == nil {
		location = time.UTC
	}

	return &Pipeline{
		fetchers:    fetchers,
		store:       store,
		observer:    observer,
		reuseWindow: reuseWindow,
		location:    location,
		log:         log,
	}
}

// Date returns the calendar date of t in the pipeline's timezone.
func (p *Pipeline) Date(t time.Time) string {
	return t.In(p.location).Format(domain.DateLayout)
}

// Refresh fetches every source once and submits the candidates. It returns the
// number of newly accepted items. A failing source is logged and skipped; a
// store failure aborts the refresh with an error wrapping ErrStoreUnavailable.
func (p *Pipeline) Refresh(ctx context.Context, asOf time.Time) (int, error) {
	date := p.Date(asOf)

	if res, ok := p.reusable(date, asOf); ok {
		p.log.DebugContext(ctx, "Reusing recent refresh",
			"date", date,
			"accepted", res.Accepted)

		return res.Accepted, nil
	}

	// The refresh is shared by every caller, so one caller's cancellation
	// must not abort it for the others.
	v, err, shared := p.group.Do(refreshKey, func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		return p.refresh(refreshCtx, asOf, date)
	})
	if err != nil {
		return 0, err
	}

	res := v.(Result) //nolint:forcetypeassert // refresh always returns Result

	if shared {
		p.log.DebugContext(ctx, "Joined in-flight refresh",
			"date", date,
			"accepted", res.Accepted)
	}

	return res.Accepted, nil
}

func (p *Pipeline) reusable(date string, now time.Time) (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.reuseWindow <= 0 || p.lastDate != date || p.lastAt.IsZero() {
		return Result{}, false
	}

	if now.Sub(p.lastAt) >= p.reuseWindow || now.Before(p.lastAt) {
		return Result{}, false
	}

	return p.last, true
}

func (p *Pipeline) refresh(ctx context.Context, asOf time.Time, date string) (Result, error) {
	start := time.Now()
	batches := p.fetchAll(ctx, asOf)

	var res Result

	for _, b := range batches {
		if b.err != nil {
			res.FailedSources = append(res.FailedSources, b.source)
			if p.observer != nil {
				p.observer.FetchFailed(b.source)
			}

			p.log.WarnContext(ctx, "Failed to fetch source",
				"error", b.err,
				"source", b.source,
				"date", date)

			continue
		}

		for _, c := range b.candidates {
			result, _, err := p.store.Submit(ctx, c, asOf, date)
			if err != nil {
				if errors.Is(err, domain.ErrStoreUnavailable) {
					return Result{}, fmt.Errorf("submit candidate: %w", err)
				}

				p.log.WarnContext(ctx, "Skipping candidate",
					"error", err,
					"source", b.source,
					"title", c.Title,
					"url", c.URL)

				continue
			}

			if p.observer != nil {
				p.observer.ItemSubmitted(result)
			}

			switch result {
			case domain.SubmitAccepted:
				res.Accepted++
			case domain.SubmitDuplicate:
				res.Duplicates++
			}
		}
	}

	p.mu.Lock()
	p.lastDate = date
	p.lastAt = asOf
	p.last = res
	p.mu.Unlock()

	p.log.InfoContext(ctx, "Items are refreshed",
		"date", date,
		"accepted", res.Accepted,
		"duplicates", res.Duplicates,
		"failedSources", res.FailedSources,
		"sourceCount", len(p.fetchers),
		"durationSeconds", time.Since(start).Seconds())

	return res, nil
}

type batch struct {
	source     string
	candidates []domain.Candidate
	err        error
}

// fetchAll runs every fetcher concurrently. Batches keep the fetcher order so
// that submission order is deterministic.
func (p *Pipeline) fetchAll(ctx context.Context, asOf time.Time) []batch {
	batches := make([]batch, len(p.fetchers))
	if len(p.fetchers) == 0 {
		return batches
	}

	semCh := make(chan struct{}, min(maxFetchParallelism, len(p.fetchers)))
	var wg sync.WaitGroup

	for i, f := range p.fetchers {
		semCh <- struct{}{}

		wg.Go(func() {
			defer func() { <-semCh }()

			batches[i] = p.fetchOne(ctx, f, asOf)
		})
	}

	wg.Wait()

	return batches
}

func (p *Pipeline) fetchOne(ctx context.Context, f Fetcher, asOf time.Time) (b batch) {
	b.source = f.Name()

	defer func() {
		if r := recover(); r != nil {
			b.candidates = nil
			b.err = &domain.FetchError{Source: b.source, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	b.candidates, b.err = f.Fetch(ctx, asOf)

	return b
}
