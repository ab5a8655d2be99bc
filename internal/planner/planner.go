package planner

import (
	"context"
	"fmt"
	"iter"
	"time"

	"aidigest/internal/domain"
)

// DefaultBatchCap is the maximum number of items in one digest.
const DefaultBatchCap = 5

type Status int

const (
	// StatusReady means the plan carries at least one item.
	StatusReady Status = iota + 1
	// StatusAllCaughtUp means no items exist for the date.
	StatusAllCaughtUp
	// StatusAllDelivered means items exist but all were already delivered.
	StatusAllDelivered
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusAllCaughtUp:
		return "all_caught_up"
	case StatusAllDelivered:
		return "all_delivered"
	default:
		return "unknown"
	}
}

type Plan struct {
	Status Status
	Date   string
	Items  []domain.Item
}

type ItemLister interface {
	ListForDate(ctx context.Context, date string) iter.Seq2[domain.Item, error]
}

type UnsentSelector interface {
	UnsentFor(ctx context.Context, recipientID int64, candidates iter.Seq2[domain.Item, error]) ([]domain.Item, error)
}

type Planner struct {
	items    ItemLister
	ledger   UnsentSelector
	batchCap int
	location *time.Location
}

func New(items ItemLister, ledger UnsentSelector, batchCap int, location *time.Location) *Planner {
	if batchCap <= 0 {
		batchCap = DefaultBatchCap
	}
	if location == nil {
		location = time.UTC
	}

	return &Planner{
		items:    items,
		ledger:   ledger,
		batchCap: batchCap,
		location: location,
	}
}

// Plan selects the undelivered items of asOf's date for the recipient, newest
// first and at most batchCap of them.
func (p *Planner) Plan(ctx context.Context, recipientID int64, asOf time.Time) (Plan, error) {
	date := asOf.In(p.location).Format(domain.DateLayout)

	var seen int
	counted := func(yield func(domain.Item, error) bool) {
		for it, err := range p.items.ListForDate(ctx, date) {
			if err == nil {
				seen++
			}
			if !yield(it, err) {
				return
			}
		}
	}

	unsent, err := p.ledger.UnsentFor(ctx, recipientID, counted)
	if err != nil {
		return Plan{}, fmt.Errorf("select unsent items: %w", err)
	}

	plan := Plan{Date: date}

	switch {
	case len(unsent) > 0:
		plan.Status = StatusReady
		plan.Items = unsent[:min(len(unsent), p.batchCap)]
	case seen == 0:
		plan.Status = StatusAllCaughtUp
	default:
		plan.Status = StatusAllDelivered
	}

	return plan, nil
}
