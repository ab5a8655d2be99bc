package database

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"aidigest/internal/domain"
)

var errEmptyNaturalKey = errors.New("candidate has neither URL nor title")

// ItemStore is the deduplicated set of known items.
type ItemStore struct {
	db  *sql.DB
	log *slog.Logger
}

// Submit inserts the candidate unless an item with the same natural key (or
// the same normalized title) is already stored. The check and the insert are
// a single statement, so concurrent submissions of one key yield exactly one
// SubmitAccepted.
func (s *ItemStore) Submit(
	ctx context.Context,
	candidate domain.Candidate,
	observedAt time.Time,
	observedDate string,
) (domain.SubmitResult, domain.Item, error) {
	title := strings.TrimSpace(candidate.Title)
	link := strings.TrimSpace(candidate.URL)

	key := domain.NaturalKey(link, title)
	if key == "" {
		return 0, domain.Item{}, errEmptyNaturalKey
	}

	item := domain.Item{
		NaturalKey:   key,
		Title:        title,
		Summary:      strings.TrimSpace(candidate.Summary),
		URL:          link,
		Source:       strings.TrimSpace(candidate.Source),
		ObservedDate: observedDate,
		ObservedAt:   observedAt.UTC(),
	}

	query := `insert or ignore into items
	(natural_key, title_key, title, summary, url, source, observed_date, observed_at)
	values (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		item.NaturalKey,
		domain.NormalizeTitle(item.Title),
		item.Title,
		item.Summary,
		item.URL,
		item.Source,
		item.ObservedDate,
		item.ObservedAt,
	)
	if err != nil {
		return 0, domain.Item{}, unavailable("insert item", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, domain.Item{}, unavailable("read affected rows", err)
	}

	if affected == 0 {
		return domain.SubmitDuplicate, domain.Item{}, nil
	}

	return domain.SubmitAccepted, item, nil
}

// ListForDate lazily yields the items observed on date, newest first. The
// sequence stops after the first error.
func (s *ItemStore) ListForDate(ctx context.Context, date string) iter.Seq2[domain.Item, error] {
	return func(yield func(domain.Item, error) bool) {
		query := `select natural_key, title, summary, url, source, observed_date, observed_at
		from items
		where observed_date = ?
		order by observed_at desc, natural_key`

		rows, err := s.db.QueryContext(ctx, query, date)
		if err != nil {
			yield(domain.Item{}, unavailable("query items", err))
			return
		}
		defer func() {
			if err = rows.Close(); err != nil {
				s.log.ErrorContext(ctx, "Failed to close rows",
					"error", err,
					"date", date,
					"operation", "ListForDate")
			}
		}()

		for rows.Next() {
			var it domain.Item
			if err = rows.Scan(
				&it.NaturalKey,
				&it.Title,
				&it.Summary,
				&it.URL,
				&it.Source,
				&it.ObservedDate,
				&it.ObservedAt,
			); err != nil {
				yield(domain.Item{}, unavailable("scan item", err))
				return
			}

			if !yield(it, nil) {
				return
			}
		}

		if err = rows.Err(); err != nil {
			yield(domain.Item{}, unavailable("iterate items", err))
		}
	}
}

func (s *ItemStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "select count(*) from items").Scan(&n); err != nil {
		return 0, unavailable("count items", err)
	}

	return n, nil
}
