package domain

import (
	"time"
)

// DateLayout is the layout used for observed dates and digest headers.
const DateLayout = "2006-01-02"

// Candidate is an item as produced by a fetcher, before deduplication.
type Candidate struct {
	Title   string
	Summary string
	URL     string
	Source  string
}

// Item is a stored, deduplicated content update. Once stored it is never mutated.
type Item struct {
	NaturalKey   string
	Title        string
	Summary      string
	URL          string
	Source       string
	ObservedDate string
	ObservedAt   time.Time
}

type Recipient struct {
	ID           int64
	Cadence      Cadence
	RegisteredAt time.Time
}

type DeliveryRecord struct {
	RecipientID    int64
	ItemNaturalKey string
	DeliveredAt    time.Time
}

type SubmitResult int

const (
	SubmitAccepted SubmitResult = iota + 1
	SubmitDuplicate
)

func (r SubmitResult) String() string {
	switch r {
	case SubmitAccepted:
		return "accepted"
	case SubmitDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

type CommitResult int

const (
	CommitCommitted CommitResult = iota + 1
	CommitAlreadyCommitted
)

func (r CommitResult) String() string {
	switch r {
	case CommitCommitted:
		return "committed"
	case CommitAlreadyCommitted:
		return "already_committed"
	default:
		return "unknown"
	}
}
