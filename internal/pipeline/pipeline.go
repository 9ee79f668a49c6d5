// Package pipeline drives each bookmark through fetch-then-classify
// under a bounded worker pool, with per-stage retry budgets, a shared
// rate-limit cooldown, and the guarantee that every input record ends in
// exactly one terminal state.
package pipeline

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/HRui-wh/Bookmark-AI/internal/classifier"
	"github.com/HRui-wh/Bookmark-AI/internal/fetcher"
	"github.com/HRui-wh/Bookmark-AI/internal/metrics"
	"github.com/HRui-wh/Bookmark-AI/internal/models"
)

// Fetcher retrieves page metadata for one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Meta, error)
}

// Classifier assigns one category label to a bookmark context.
type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) (classifier.Result, error)
}

// RetryPolicy is the per-stage retry budget and backoff seed.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.RandomizationFactor = 0.5
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0
	return bo
}

// Options configures a Pipeline. Zero values fall back to conservative
// defaults.
type Options struct {
	Workers       int
	FetchRetry    RetryPolicy
	ClassifyRetry RetryPolicy

	// Cooldown is the shared wait window after a rate-limit rejection.
	Cooldown time.Duration

	// ClassifyRate caps classify calls per second across all workers.
	// Zero disables pacing.
	ClassifyRate float64

	// ProgressInterval controls operator progress logging. Zero means
	// every 5 seconds.
	ProgressInterval time.Duration
}

// Snapshot is a point-in-time view of pipeline progress.
type Snapshot struct {
	Pending  int64
	InFlight int64
	Done     int64
	Failed   int64
}

// Summary is the outcome of a completed run.
type Summary struct {
	Total      int
	Done       int
	Failed     int
	ByCategory map[models.Category]int
}

// Pipeline is the concurrency orchestrator.
type Pipeline struct {
	fetcher    Fetcher
	classifier Classifier
	opts       Options
	cooldown   *CooldownGate
	limiter    *rate.Limiter

	pending  atomic.Int64
	inFlight atomic.Int64
	done     atomic.Int64
	failed   atomic.Int64
}

// New creates a Pipeline around the given stage implementations.
func New(f Fetcher, c Classifier, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 16
	}
	if opts.FetchRetry.MaxAttempts <= 0 {
		opts.FetchRetry.MaxAttempts = 3
	}
	if opts.FetchRetry.BaseDelay <= 0 {
		opts.FetchRetry.BaseDelay = time.Second
	}
	if opts.ClassifyRetry.MaxAttempts <= 0 {
		opts.ClassifyRetry.MaxAttempts = 3
	}
	if opts.ClassifyRetry.BaseDelay <= 0 {
		opts.ClassifyRetry.BaseDelay = time.Second
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 5 * time.Second
	}

	p := &Pipeline{
		fetcher:    f,
		classifier: c,
		opts:       opts,
		cooldown:   NewCooldownGate(opts.Cooldown),
	}
	if opts.ClassifyRate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.ClassifyRate), opts.Workers)
	}
	return p
}

// Progress returns current counters.
func (p *Pipeline) Progress() Snapshot {
	return Snapshot{
		Pending:  p.pending.Load(),
		InFlight: p.inFlight.Load(),
		Done:     p.done.Load(),
		Failed:   p.failed.Load(),
	}
}

// Run processes all records and blocks until every one is terminal.
// Cancelling ctx stops the intake of new records and abandons remaining
// retry attempts; records never attempted are finished with the
// fallback category so no input is ever dropped. Run always returns a
// complete Summary, whatever the failure rate.
func (p *Pipeline) Run(ctx context.Context, records []*models.BookmarkRecord) Summary {
	p.pending.Store(int64(len(records)))
	metrics.RecordsPending.Set(float64(len(records)))

	jobs := make(chan *models.BookmarkRecord)
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				p.process(ctx, rec)
			}
		}()
	}

	stopLog := make(chan struct{})
	go p.logProgress(stopLog)

	log.Info().
		Int("records", len(records)).
		Int("workers", p.opts.Workers).
		Msg("Starting classification pipeline")

feed:
	for _, rec := range records {
		select {
		case jobs <- rec:
		case <-ctx.Done():
			log.Warn().Err(ctx.Err()).Msg("Shutdown requested, no new records accepted")
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(stopLog)

	// Anything still non-terminal was never attempted (cancelled before
	// a worker picked it up) or was abandoned mid-retry.
	for _, rec := range records {
		if !rec.Terminal() {
			p.pending.Add(-1)
			metrics.RecordsPending.Dec()
			p.finish(rec, classifier.Result{}, models.ErrKindSkipped)
		}
	}

	return p.summarize(records)
}

func (p *Pipeline) process(ctx context.Context, rec *models.BookmarkRecord) {
	p.pending.Add(-1)
	p.inFlight.Add(1)
	metrics.RecordsPending.Dec()
	metrics.RecordsInFlight.Inc()
	defer func() {
		p.inFlight.Add(-1)
		metrics.RecordsInFlight.Dec()
	}()

	rec.State = models.StateFetching
	meta, fetchKind := p.fetchWithRetry(ctx, rec)
	if fetchKind == models.ErrKindNone {
		rec.FetchedTitle = meta.Title
		rec.FetchedDescription = meta.Description
	} else {
		rec.LastError = fetchKind
		log.Warn().
			Str("url", rec.URL).
			Str("error_kind", string(fetchKind)).
			Msg("Metadata fetch failed, classifying with title and URL only")
	}

	// A failed fetch is not fatal to the record: classification proceeds
	// with degraded context.
	rec.State = models.StateClassifying
	res, classifyKind := p.classifyWithRetry(ctx, rec)
	p.finish(rec, res, classifyKind)
}

func (p *Pipeline) finish(rec *models.BookmarkRecord, res classifier.Result, kind models.ErrorKind) {
	if kind == models.ErrKindNone {
		rec.DisplayName = res.Name
		rec.Summary = res.Summary
		rec.Finish(res.Category, models.ErrKindNone)
		p.done.Add(1)
		metrics.RecordsDone.Inc()
		log.Debug().
			Str("url", rec.URL).
			Str("category", string(res.Category)).
			Msg("Record classified")
	} else {
		rec.Finish(models.Uncategorized, kind)
		p.failed.Add(1)
		metrics.RecordsFailed.Inc()
		log.Warn().
			Str("url", rec.URL).
			Str("error_kind", string(kind)).
			Msg("Record moved to fallback category")
	}
	metrics.RecordsFinishedTotal.WithLabelValues(string(rec.Category)).Inc()
}

func (p *Pipeline) fetchWithRetry(ctx context.Context, rec *models.BookmarkRecord) (fetcher.Meta, models.ErrorKind) {
	bo := p.opts.FetchRetry.newBackOff()
	var kind models.ErrorKind

	for attempt := 1; attempt <= p.opts.FetchRetry.MaxAttempts; attempt++ {
		rec.AttemptCount++
		meta, err := p.fetcher.Fetch(ctx, rec.URL)
		if err == nil {
			metrics.FetchAttemptsTotal.WithLabelValues("success").Inc()
			return meta, models.ErrKindNone
		}

		kind = fetchErrorKind(err)
		metrics.FetchAttemptsTotal.WithLabelValues(string(kind)).Inc()
		log.Debug().
			Str("url", rec.URL).
			Int("attempt", attempt).
			Str("error_kind", string(kind)).
			Err(err).
			Msg("Fetch attempt failed")

		if attempt == p.opts.FetchRetry.MaxAttempts {
			break
		}
		if !sleepCtx(ctx, bo.NextBackOff()) {
			break
		}
	}
	return fetcher.Meta{}, kind
}

func (p *Pipeline) classifyWithRetry(ctx context.Context, rec *models.BookmarkRecord) (classifier.Result, models.ErrorKind) {
	bo := p.opts.ClassifyRetry.newBackOff()
	var kind models.ErrorKind

	for attempt := 1; attempt <= p.opts.ClassifyRetry.MaxAttempts; attempt++ {
		// Honor the shared cooldown and the steady-state pacing budget
		// before spending a call.
		if err := p.cooldown.Wait(ctx); err != nil {
			return classifier.Result{}, skippedOr(kind)
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return classifier.Result{}, skippedOr(kind)
			}
		}

		rec.AttemptCount++
		res, err := p.classifier.Classify(ctx, buildRequest(rec))
		if err == nil {
			metrics.ClassifyAttemptsTotal.WithLabelValues("success").Inc()
			return res, models.ErrKindNone
		}

		kind = classifyErrorKind(err)
		metrics.ClassifyAttemptsTotal.WithLabelValues(string(kind)).Inc()
		log.Debug().
			Str("url", rec.URL).
			Int("attempt", attempt).
			Str("error_kind", string(kind)).
			Err(err).
			Msg("Classify attempt failed")

		if errors.Is(err, classifier.ErrRateLimited) {
			p.cooldown.Trigger()
			metrics.RateLimitCooldownsTotal.Inc()
			log.Warn().
				Dur("cooldown", p.opts.Cooldown).
				Msg("Upstream rate limit hit, pausing all classify attempts")
		}

		if attempt == p.opts.ClassifyRetry.MaxAttempts {
			break
		}
		if !sleepCtx(ctx, bo.NextBackOff()) {
			break
		}
	}
	return classifier.Result{}, kind
}

// buildRequest assembles the classify context, preferring fetched
// metadata and degrading to the source title plus URL when the fetch
// failed.
func buildRequest(rec *models.BookmarkRecord) classifier.Request {
	title := rec.FetchedTitle
	if title == "" {
		title = rec.Title
	}
	return classifier.Request{
		Title:       title,
		URL:         rec.URL,
		Description: rec.FetchedDescription,
	}
}

func fetchErrorKind(err error) models.ErrorKind {
	var statusErr *fetcher.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrKindTimeout
	case errors.As(err, &statusErr):
		return models.ErrKindHTTPStatus
	case errors.Is(err, fetcher.ErrNotHTML):
		return models.ErrKindNotHTML
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.ErrKindTimeout
	default:
		return models.ErrKindNetwork
	}
}

func classifyErrorKind(err error) models.ErrorKind {
	var invalid *classifier.InvalidLabelError
	switch {
	case errors.Is(err, classifier.ErrRateLimited):
		return models.ErrKindRateLimited
	case errors.As(err, &invalid):
		return models.ErrKindBadLabel
	case errors.Is(err, classifier.ErrBadResponse), errors.Is(err, classifier.ErrEmptyResponse):
		return models.ErrKindBadResponse
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrKindTimeout
	default:
		return models.ErrKindUpstream
	}
}

// skippedOr keeps the last real failure kind when cancellation cuts a
// retry loop short; only a record with no attempts behind it is marked
// skipped.
func skippedOr(kind models.ErrorKind) models.ErrorKind {
	if kind == models.ErrKindNone {
		return models.ErrKindSkipped
	}
	return kind
}

// sleepCtx waits d or until ctx is cancelled; reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Pipeline) logProgress(stop <-chan struct{}) {
	ticker := time.NewTicker(p.opts.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s := p.Progress()
			log.Info().
				Int64("pending", s.Pending).
				Int64("in_flight", s.InFlight).
				Int64("done", s.Done).
				Int64("failed", s.Failed).
				Bool("cooldown_active", p.cooldown.Active()).
				Msg("Pipeline progress")
		}
	}
}

func (p *Pipeline) summarize(records []*models.BookmarkRecord) Summary {
	s := Summary{
		Total:      len(records),
		ByCategory: make(map[models.Category]int),
	}
	for _, rec := range records {
		s.ByCategory[rec.Category]++
		if rec.State == models.StateDone {
			s.Done++
		} else {
			s.Failed++
		}
	}
	return s
}
