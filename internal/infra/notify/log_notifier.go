package notify

import (
	"context"
	"log/slog"

	"rentcar/internal/app/policies"
)

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, to, template string, data any) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification sent", "to", to, "template", template, "data", data)
	return nil
}

var _ policies.Notifier = LogNotifier{}
