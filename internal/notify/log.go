package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pkordes/rideshare-booking/internal/domain"
)

// LogNotifier writes notifications to the log. It is used when no broker is
// configured and never fails.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier constructs a LogNotifier writing to log.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs the notification at info level.
func (n *LogNotifier) Notify(ctx context.Context, userID uuid.UUID, title, body string, ref domain.EntityRef) error {
	n.log.InfoContext(ctx, "notification",
		slog.String("user_id", userID.String()),
		slog.String("title", title),
		slog.String("body", body),
		slog.String("entity_kind", ref.Kind),
		slog.String("entity_id", ref.ID.String()),
	)
	return nil
}
