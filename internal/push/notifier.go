package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/habitflow/internal/model"
)

// SubscriptionStore is the subset of the push store the notifier needs.
type SubscriptionStore interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Notifier fans a notification out to every device a user has subscribed.
type Notifier struct {
	service *Service
	subs    SubscriptionStore
	logger  *slog.Logger
}

func NewNotifier(service *Service, subs SubscriptionStore, logger *slog.Logger) *Notifier {
	return &Notifier{service: service, subs: subs, logger: logger}
}

// PushReminder notifies userID's devices that habitTitle is due.
func (n *Notifier) PushReminder(ctx context.Context, userID int64, habitTitle string) error {
	_, err := n.Notify(ctx, userID, Payload{
		Title: "Reminder: " + habitTitle,
		Body:  fmt.Sprintf("It's time for %q. Keep your streak going!", habitTitle),
		URL:   "/",
		Tag:   "habit-reminder",
	})
	return err
}

// Notify sends payload to each of the user's subscriptions and returns how
// many deliveries succeeded. Expired subscriptions are removed.
func (n *Notifier) Notify(ctx context.Context, userID int64, payload Payload) (int, error) {
	if !n.service.Configured() {
		return 0, nil
	}

	subs, err := n.subs.ListByUser(userID)
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for i := range subs {
		sub := &subs[i]
		err := n.service.Send(ctx, sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrExpired):
			n.logger.Info("removing expired push subscription", "subscription_id", sub.ID, "user_id", userID)
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				errs = append(errs, err)
			}
		default:
			errs = append(errs, fmt.Errorf("subscription %d: %w", sub.ID, err))
		}
	}
	return sent, errors.Join(errs...)
}
