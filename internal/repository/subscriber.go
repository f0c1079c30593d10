package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newsletter/newsletter/internal/model"
)

const insertSubscriberQuery = `
	INSERT INTO subscriptions (id, email, name, subscribed_at)
	VALUES ($1, $2, $3, $4)
`

// InsertSubscriber stores a new subscriber with a fresh id and the current UTC time.
// Failures are logged under the database span and returned as *apperr.Error.
func (r *Repository) InsertSubscriber(ctx context.Context, email, name string) (*model.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "Saving new subscriber details in the database",
		slog.String("db.operation", "INSERT"),
		slog.String("db.table", "subscriptions"),
	)
	defer span.End()

	sub := model.NewSubscriber(email, name, r.now())

	start := time.Now()
	err := r.WithConn(ctx, func(conn *pgxpool.Conn) error {
		_, err := conn.Exec(ctx, insertSubscriberQuery,
			sub.ID,
			sub.Email,
			sub.Name,
			sub.SubscribedAt,
		)
		return err
	})
	duration := time.Since(start)

	if err != nil {
		appErr := translateError("insert subscriber", err)
		span.RecordError(appErr)
		r.logger(ctx).Error("failed to execute query",
			slog.String("error_kind", appErr.Kind.String()),
			slog.Any("error", err),
			slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
		)
		return nil, appErr
	}

	r.logger(ctx).Debug("subscriber inserted",
		slog.String("subscriber_id", sub.ID.String()),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
	)

	return sub, nil
}
