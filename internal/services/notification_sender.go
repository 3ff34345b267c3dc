package services

import (
	"context"
	"log/slog"

	"adbudget/internal/nano"
)

// LogSender is the default NotificationSender: it records the
// notification in the structured log. Deployments that deliver email
// plug in their own sender; the core never speaks SMTP itself.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, notification Notification) error {
	s.Logger.Info("budget notification",
		"kind", string(notification.Kind),
		"recipient", notification.Recipient,
		"campaign_id", notification.Campaign.ID,
		"campaign_name", notification.Campaign.Name,
		"available_budget", nano.Format(notification.AvailableBudgetNano),
		"yesterdays_spend", nano.Format(notification.YesterdaysSpendNano))
	return nil
}
