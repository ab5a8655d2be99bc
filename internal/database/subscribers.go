package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aidigest/internal/domain"
)

// SubscriberRegistry maps recipients to their cadence.
type SubscriberRegistry struct {
	db  *sql.DB
	log *slog.Logger
}

// Upsert sets or replaces the recipient's cadence and reports whether the
// recipient was registered by this call. registered_at is kept on updates.
func (r *SubscriberRegistry) Upsert(
	ctx context.Context,
	recipientID int64,
	cadence domain.Cadence,
	now time.Time,
) (bool, error) {
	if !cadence.Valid() {
		return false, fmt.Errorf("invalid cadence %q", cadence)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable("begin upsert recipient", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			r.log.ErrorContext(ctx, "Failed to rollback transaction",
				"error", rollbackErr,
				"recipientID", recipientID,
				"operation", "Upsert")
		}
	}()

	var exists bool
	existsQuery := "select exists(select 1 from recipients where recipient_id = ?)"
	if err = tx.QueryRowContext(ctx, existsQuery, recipientID).Scan(&exists); err != nil {
		return false, unavailable("check recipient", err)
	}

	query := `insert into recipients (recipient_id, cadence, registered_at)
	values (?, ?, ?)
	on conflict (recipient_id) do update
	set cadence = excluded.cadence`

	if _, err = tx.ExecContext(ctx, query, recipientID, string(cadence), now.UTC()); err != nil {
		return false, unavailable("upsert recipient", err)
	}

	if err = tx.Commit(); err != nil {
		return false, unavailable("commit upsert recipient", err)
	}

	return !exists, nil
}

// CadenceOf returns the recipient's cadence, or the default one when the
// recipient is unknown.
func (r *SubscriberRegistry) CadenceOf(ctx context.Context, recipientID int64) (domain.Cadence, error) {
	query := "select cadence from recipients where recipient_id = ?"

	var cadence string
	err := r.db.QueryRowContext(ctx, query, recipientID).Scan(&cadence)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultCadence, nil
	}
	if err != nil {
		return "", unavailable("select cadence", err)
	}

	c := domain.Cadence(cadence)
	if !c.Valid() {
		r.log.WarnContext(ctx, "Stored cadence is unknown, using default",
			"recipientID", recipientID,
			"cadence", cadence,
			"defaultCadence", domain.DefaultCadence)

		return domain.DefaultCadence, nil
	}

	return c, nil
}

func (r *SubscriberRegistry) IsRegistered(ctx context.Context, recipientID int64) (bool, error) {
	query := "select exists(select 1 from recipients where recipient_id = ?)"

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, recipientID).Scan(&exists); err != nil {
		return false, unavailable("check recipient", err)
	}

	return exists, nil
}

func (r *SubscriberRegistry) AllRecipients(ctx context.Context) ([]domain.Recipient, error) {
	query := "select recipient_id, cadence, registered_at from recipients order by recipient_id"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, unavailable("query recipients", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			r.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "AllRecipients")
		}
	}()

	var recipients []domain.Recipient
	for rows.Next() {
		var (
			rec     domain.Recipient
			cadence string
		)
		if err = rows.Scan(&rec.ID, &cadence, &rec.RegisteredAt); err != nil {
			return nil, unavailable("scan recipient", err)
		}

		rec.Cadence = domain.Cadence(cadence)
		if !rec.Cadence.Valid() {
			rec.Cadence = domain.DefaultCadence
		}

		recipients = append(recipients, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, unavailable("iterate recipients", err)
	}

	return recipients, nil
}
