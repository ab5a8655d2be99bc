package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aidigest/internal/domain"
	"aidigest/internal/planner"

	"github.com/cenkalti/backoff/v5"
	"github.com/robfig/cron/v3"
)

const (
	DefaultTickInterval  = 30 * time.Second
	DefaultWorkers       = 4
	DefaultCycleTimeout  = 5 * time.Minute
	DefaultShutdownGrace = 30 * time.Second

	commitTimeout        = 10 * time.Second
	failureNoticeTimeout = 15 * time.Second

	registryBackoffInitial = 5 * time.Second
	registryBackoffMax     = 5 * time.Minute
)

type Registry interface {
	AllRecipients(ctx context.Context) ([]domain.Recipient, error)
	CadenceOf(ctx context.Context, recipientID int64) (domain.Cadence, error)
}

type Refresher interface {
	Refresh(ctx context.Context, asOf time.Time) (int, error)
}

type Planner interface {
	Plan(ctx context.Context, recipientID int64, asOf time.Time) (planner.Plan, error)
}

type Ledger interface {
	Commit(ctx context.Context, recipientID int64, naturalKey string, deliveredAt time.Time) (domain.CommitResult, error)
}

// Notifier transmits a formatted message. A nil error means the message was sent.
type Notifier interface {
	Send(ctx context.Context, recipientID int64, message string) error
}

// Formatter renders a plan. It returns the items the message actually
// contains, which may be fewer than the plan holds.
type Formatter interface {
	Format(plan planner.Plan) (string, []domain.Item)
	Failure() string
}

// Observer receives cycle outcomes. It may be nil.
type Observer interface {
	CycleFinished(trigger, outcome string, duration time.Duration, delivered int)
	Committed(result domain.CommitResult)
}

type Deps struct {
	Registry  Registry
	Refresher Refresher
	Planner   Planner
	Ledger    Ledger
	Notifier  Notifier
	Formatter Formatter
	Observer  Observer
}

type Config struct {
	TickInterval  time.Duration
	Workers       int
	CycleTimeout  time.Duration
	ShutdownGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = DefaultCycleTimeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}

	return c
}

// recipientState is Idle(nextDueAt) while running is false.
type recipientState struct {
	nextDueAt time.Time
	running   bool
}

// Scheduler runs delivery cycles per recipient. Recipients are independent:
// their cycles run concurrently on a bounded pool, while cycles of a single
// recipient never overlap.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron
	deps   Deps
	cfg    Config
	now    func() time.Time
	log    *slog.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	states   map[int64]*recipientState
	stopping bool

	registryBackoff *backoff.ExponentialBackOff
	retryAt         time.Time
}

func New(ctx context.Context, deps Deps, cfg Config, log *slog.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = registryBackoffInitial
	b.MaxInterval = registryBackoffMax

	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		deps:            deps,
		cfg:             cfg,
		now:             time.Now,
		log:             log,
		sem:             make(chan struct{}, cfg.Workers),
		states:          make(map[int64]*recipientState),
		registryBackoff: b,
	}
}

// TickSpec is the cron spec of the scheduler loop.
func (s *Scheduler) TickSpec() string {
	return fmt.Sprintf("@every %s", s.cfg.TickInterval)
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.TickSpec(), s.tick); err != nil {
		return fmt.Errorf("add tick job: %w", err)
	}

	s.cron.Start()

	go s.tick()

	return nil
}

// Stop waits for in-flight cycles up to the grace period, then cancels them.
// Commits are never cancelled, so Stop returns only after they finished.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		s.log.WarnContext(s.ctx, "Shutdown grace period is over, cancelling cycles",
			"graceSeconds", s.cfg.ShutdownGrace.Seconds())
		s.cancel()
		<-done
	}

	s.cancel()
}

// Subscribed reacts to a new or changed subscription: the recipient gets a
// cycle right away and its next scheduled cycle is no later than one interval
// of the new cadence.
func (s *Scheduler) Subscribed(recipientID int64, cadence domain.Cadence) bool {
	now := s.now()

	s.mu.Lock()
	st := s.stateLocked(recipientID, now)
	if limit := now.Add(cadence.Interval()); st.nextDueAt.After(limit) {
		st.nextDueAt = limit
	}
	s.mu.Unlock()

	return s.TriggerNow(recipientID)
}

// TriggerNow starts an on-demand cycle. It is coalesced with a cycle already
// running for the recipient and returns false in that case. An on-demand
// cycle does not move the recipient's next due time unless it was already due.
func (s *Scheduler) TriggerNow(recipientID int64) bool {
	now := s.now()

	s.mu.Lock()
	st := s.stateLocked(recipientID, now)
	trig := triggerOnDemand
	// A recipient already due gets its scheduled cycle now, so the cycle
	// reschedules as a timer fire would and the next tick does not repeat it.
	if !now.Before(st.nextDueAt) {
		trig = triggerTimer
	}
	s.mu.Unlock()

	return s.dispatch(recipientID, trig)
}

// NextDueAt reports when the recipient's next scheduled cycle fires.
func (s *Scheduler) NextDueAt(recipientID int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[recipientID]
	if !ok {
		return time.Time{}, false
	}

	return st.nextDueAt, true
}

func (s *Scheduler) stateLocked(recipientID int64, now time.Time) *recipientState {
	st, ok := s.states[recipientID]
	if !ok {
		st = &recipientState{nextDueAt: now}
		s.states[recipientID] = st
	}

	return st
}

func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(s.ctx, "Scheduler tick panicked",
				"panic", r)
		}
	}()

	select {
	case <-s.ctx.Done():
		s.log.InfoContext(s.ctx, "Scheduler context is done",
			"error", s.ctx.Err())
		return
	default:
	}

	now := s.now()

	s.mu.Lock()
	retryAt := s.retryAt
	s.mu.Unlock()

	if now.Before(retryAt) {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CycleTimeout)
	recipients, err := s.deps.Registry.AllRecipients(ctx)
	cancel()

	if err != nil {
		s.mu.Lock()
		delay := s.registryBackoff.NextBackOff()
		s.retryAt = now.Add(delay)
		s.mu.Unlock()

		s.log.ErrorContext(s.ctx, "Failed to list recipients",
			"error", err,
			"retryInSeconds", delay.Seconds())

		return
	}

	var due []int64

	s.mu.Lock()
	s.registryBackoff.Reset()
	s.retryAt = time.Time{}

	for _, r := range recipients {
		st := s.stateLocked(r.ID, now)
		if !st.running && !now.Before(st.nextDueAt) {
			due = append(due, r.ID)
		}
	}
	s.mu.Unlock()

	for _, id := range due {
		s.dispatch(id, triggerTimer)
	}
}

// dispatch moves the recipient to Running and schedules the cycle on the pool.
func (s *Scheduler) dispatch(recipientID int64, trig trigger) bool {
	s.mu.Lock()
	st := s.stateLocked(recipientID, s.now())
	if s.stopping || st.running {
		s.mu.Unlock()

		return false
	}
	st.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		select {
		case s.sem <- struct{}{}:
		case <-s.ctx.Done():
			s.finish(recipientID, trig, false)
			return
		}

		func() {
			defer func() { <-s.sem }()
			defer func() {
				if r := recover(); r != nil {
					s.log.ErrorContext(s.ctx, "Delivery cycle panicked",
						"panic", r,
						"recipientID", recipientID,
						"trigger", trig.String())
				}
			}()

			s.runCycle(recipientID, trig)
		}()

		s.finish(recipientID, trig, true)
	}()

	return true
}

// finish returns the recipient to Idle. Timer cycles reschedule from the
// current time, so missed cycles are not replayed after an outage.
func (s *Scheduler) finish(recipientID int64, trig trigger, ran bool) {
	var cadence domain.Cadence

	if ran && trig == triggerTimer {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), commitTimeout)
		c, err := s.deps.Registry.CadenceOf(ctx, recipientID)
		cancel()

		if err != nil {
			s.log.WarnContext(s.ctx, "Failed to read cadence, using default",
				"error", err,
				"recipientID", recipientID,
				"defaultCadence", domain.DefaultCadence)

			c = domain.DefaultCadence
		}

		cadence = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stateLocked(recipientID, s.now())
	st.running = false

	if cadence != "" {
		st.nextDueAt = s.now().Add(cadence.Interval())
	}
}
