package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"aidigest/internal/domain"
	"aidigest/internal/planner"

	"github.com/google/uuid"
)

type trigger int

const (
	triggerTimer trigger = iota
	triggerOnDemand
)

func (t trigger) String() string {
	if t == triggerOnDemand {
		return "on_demand"
	}

	return "timer"
}

const (
	outcomeSent   = "sent"
	outcomeEmpty  = "empty"
	outcomeFailed = "failed"
)

// runCycle executes refresh, plan, send and commit for one recipient.
// Nothing is committed unless the notifier confirmed the send.
func (s *Scheduler) runCycle(recipientID int64, trig trigger) {
	started := s.now()
	cycleID := uuid.NewString()
	log := s.log.With(
		"cycleID", cycleID,
		"recipientID", recipientID,
		"trigger", trig.String())

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CycleTimeout)
	defer cancel()

	outcome := outcomeFailed
	delivered := 0

	defer func() {
		if s.deps.Observer != nil {
			s.deps.Observer.CycleFinished(trig.String(), outcome, s.now().Sub(started), delivered)
		}
	}()

	if _, err := s.deps.Refresher.Refresh(ctx, started); err != nil {
		log.ErrorContext(ctx, "Failed to refresh items",
			"error", err)

		s.notifyFailure(ctx, recipientID, trig, err, log)

		return
	}

	plan, err := s.deps.Planner.Plan(ctx, recipientID, started)
	if err != nil {
		log.ErrorContext(ctx, "Failed to plan delivery",
			"error", err)

		s.notifyFailure(ctx, recipientID, trig, err, log)

		return
	}

	message, rendered := s.deps.Formatter.Format(plan)

	if err := s.deps.Notifier.Send(ctx, recipientID, message); err != nil {
		log.ErrorContext(ctx, "Failed to send digest",
			"error", err,
			"items", len(rendered))

		s.notifyFailure(ctx, recipientID, trig, err, log)

		return
	}

	if plan.Status != planner.StatusReady {
		outcome = outcomeEmpty

		log.InfoContext(ctx, "Nothing new to deliver",
			"status", plan.Status.String(),
			"date", plan.Date)

		return
	}

	outcome = outcomeSent
	delivered = s.commit(recipientID, rendered, log)

	log.InfoContext(ctx, "Digest is delivered",
		"date", plan.Date,
		"items", len(rendered),
		"planned", len(plan.Items),
		"committed", delivered)
}

// commit records the sent items. It ignores cycle cancellation so a confirmed
// send is never left uncommitted by shutdown.
func (s *Scheduler) commit(recipientID int64, items []domain.Item, log *slog.Logger) int {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), commitTimeout)
	defer cancel()

	deliveredAt := s.now()
	committed := 0

	for _, item := range items {
		res, err := s.deps.Ledger.Commit(ctx, recipientID, item.NaturalKey, deliveredAt)
		if err != nil {
			log.ErrorContext(ctx, "Failed to commit delivery",
				"error", err,
				"naturalKey", item.NaturalKey)

			continue
		}

		if s.deps.Observer != nil {
			s.deps.Observer.Committed(res)
		}

		committed++
	}

	return committed
}

// notifyFailure sends the "try again later" notice. Store failures are
// reported on every trigger. Notifier failures are reported only to a
// recipient who explicitly asked, since the notice is likely to fail too.
func (s *Scheduler) notifyFailure(
	ctx context.Context,
	recipientID int64,
	trig trigger,
	cause error,
	log *slog.Logger,
) {
	if errors.Is(cause, domain.ErrNotifier) && trig != triggerOnDemand {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureNoticeTimeout)
	defer cancel()

	if err := s.deps.Notifier.Send(ctx, recipientID, s.deps.Formatter.Failure()); err != nil {
		log.WarnContext(ctx, "Failed to send failure notice",
			"error", err)
	}
}
