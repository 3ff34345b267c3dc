package store

import (
	"context"
	"time"

	"adbudget/internal/models"
)

type NotificationStore struct {
	db DB
}

func NewNotificationStore(db DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Insert(ctx context.Context, tx Execer, notification models.DepletionNotification) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO depletion_notifications
			(id, campaign_id, manager_email, available_budget_nano,
			 yesterdays_spend_nano, stopped)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, notification.ID, notification.CampaignID, notification.ManagerEmail,
		notification.AvailableBudgetNano, notification.YesterdaysSpendNano,
		notification.Stopped)
	return err
}

// ManagerNotifiedSince reports whether the manager already received a
// notification for the campaign after the given instant. The daily cron
// uses it to avoid notification storms.
func (s *NotificationStore) ManagerNotifiedSince(ctx context.Context, campaignID, managerEmail string, since time.Time) (bool, error) {
	var notified bool
	err := s.db.GetContext(ctx, &notified, `
		SELECT EXISTS(
			SELECT 1
			FROM depletion_notifications
			WHERE campaign_id = $1 AND manager_email = $2 AND created_at > $3
		)
	`, campaignID, managerEmail, since)
	return notified, err
}
