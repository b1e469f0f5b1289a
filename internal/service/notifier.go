package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// Notifier delivers a user-facing notification about a booking event.
// Delivery is best-effort: callers log a failed Notify and carry on, so a
// broken notification channel never undoes a committed booking change.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string, ref domain.EntityRef) error
}

// notify sends through n and logs, rather than returns, any failure. The
// change it reports is already committed, so the send outlives the request.
func notify(ctx context.Context, n Notifier, log *slog.Logger, userID uuid.UUID, title, body string, ref domain.EntityRef) {
	if err := n.Notify(context.WithoutCancel(ctx), userID, title, body, ref); err != nil {
		log.WarnContext(ctx, "notification not delivered",
			slog.String("user_id", userID.String()),
			slog.String("ref_kind", ref.Kind),
			slog.String("ref_id", ref.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
