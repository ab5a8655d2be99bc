package database

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"time"

	"aidigest/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

// DeliveryLedger records which items were delivered to which recipient.
type DeliveryLedger struct {
	db  *sql.DB
	log *slog.Logger
}

func (l *DeliveryLedger) IsDelivered(ctx context.Context, recipientID int64, naturalKey string) (bool, error) {
	query := "select exists(select 1 from deliveries where recipient_id = ? and natural_key = ?)"

	var delivered bool
	if err := l.db.QueryRowContext(ctx, query, recipientID, naturalKey).Scan(&delivered); err != nil {
		return false, unavailable("check delivery", err)
	}

	return delivered, nil
}

// Commit records a confirmed delivery. Committing the same pair twice is not
// an error and yields CommitAlreadyCommitted.
func (l *DeliveryLedger) Commit(
	ctx context.Context,
	recipientID int64,
	naturalKey string,
	deliveredAt time.Time,
) (domain.CommitResult, error) {
	query := `insert or ignore into deliveries (recipient_id, natural_key, delivered_at)
	values (?, ?, ?)`

	res, err := l.db.ExecContext(ctx, query, recipientID, naturalKey, deliveredAt.UTC())
	if err != nil {
		return 0, unavailable("insert delivery", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("read affected rows", err)
	}

	if affected == 0 {
		return domain.CommitAlreadyCommitted, nil
	}

	return domain.CommitCommitted, nil
}

// UnsentFor drains candidates and returns those without a delivery record for
// the recipient, newest observed first.
func (l *DeliveryLedger) UnsentFor(
	ctx context.Context,
	recipientID int64,
	candidates iter.Seq2[domain.Item, error],
) ([]domain.Item, error) {
	var items []domain.Item
	for it, err := range candidates {
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	if len(items) == 0 {
		return nil, nil
	}

	delivered, err := l.deliveredKeys(ctx, recipientID, items)
	if err != nil {
		return nil, err
	}

	unsent := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if _, ok := delivered[it.NaturalKey]; ok {
			continue
		}
		unsent = append(unsent, it)
	}

	slices.SortStableFunc(unsent, func(a, b domain.Item) int {
		return cmp.Compare(b.ObservedAt.UnixNano(), a.ObservedAt.UnixNano())
	})

	return unsent, nil
}

// CountFor returns how many deliveries were committed for the recipient.
func (l *DeliveryLedger) CountFor(ctx context.Context, recipientID int64) (int64, error) {
	var n int64

	query := "select count(*) from deliveries where recipient_id = ?"
	if err := l.db.QueryRowContext(ctx, query, recipientID).Scan(&n); err != nil {
		return 0, unavailable("count deliveries", err)
	}

	return n, nil
}

func (l *DeliveryLedger) deliveredKeys(
	ctx context.Context,
	recipientID int64,
	items []domain.Item,
) (map[string]struct{}, error) {
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.NaturalKey)
	}

	query, args, err := sq.Select("natural_key").
		From("deliveries").
		Where(sq.Eq{"recipient_id": recipientID}).
		Where(sq.Eq{"natural_key": keys}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delivered keys query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query deliveries", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			l.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"recipientID", recipientID,
				"operation", "deliveredKeys")
		}
	}()

	delivered := make(map[string]struct{}, len(keys))
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, unavailable("scan delivery", err)
		}
		delivered[key] = struct{}{}
	}

	if err = rows.Err(); err != nil {
		return nil, unavailable("iterate deliveries", err)
	}

	return delivered, nil
}
