package event

import (
	"context"
	"fmt"
)

// NotificationHelper provides convenient methods for publishing the payment
// and renewal notification types this service emits.
type NotificationHelper struct {
	publisher *NotificationPublisher
}

// NewNotificationHelper creates a new notification helper
func NewNotificationHelper(publisher *NotificationPublisher) *NotificationHelper {
	return &NotificationHelper{
		publisher: publisher,
	}
}

// NotifyPaymentSuccess sends a notification after a verified payment.
func (h *NotificationHelper) NotifyPaymentSuccess(ctx context.Context, userID, policyName string, amount float64) error {
	event := NotificationEventPushModel{
		Notification: Notification{
			Title: "Payment Successful",
			Body:  fmt.Sprintf("Your payment of Rs. %.2f for %s has been received.", amount, policyName),
		},
		UserIDs: []string{userID},
	}
	return h.publisher.PublishNotification(ctx, event)
}

// NotifyPaymentFailed sends a notification when a gateway reports failure.
func (h *NotificationHelper) NotifyPaymentFailed(ctx context.Context, userID, reason string) error {
	event := NotificationEventPushModel{
		Notification: Notification{
			Title: "Payment Failed",
			Body:  fmt.Sprintf("Your payment could not be completed: %s. You can retry from your purchases page.", reason),
		},
		UserIDs: []string{userID},
	}
	return h.publisher.PublishNotification(ctx, event)
}

// NotifyRenewalDue sends a notification when a premium falls due.
func (h *NotificationHelper) NotifyRenewalDue(ctx context.Context, userID, policyName string, amount float64) error {
	event := NotificationEventPushModel{
		Notification: Notification{
			Title: "Premium Due",
			Body:  fmt.Sprintf("Your premium of Rs. %.2f for %s is due. Please pay within the grace period to keep coverage.", amount, policyName),
		},
		UserIDs: []string{userID},
	}
	return h.publisher.PublishNotification(ctx, event)
}

// NotifyRenewalExpired sends a notification once the grace period lapses.
func (h *NotificationHelper) NotifyRenewalExpired(ctx context.Context, userID, policyName string) error {
	event := NotificationEventPushModel{
		Notification: Notification{
			Title: "Policy Expired",
			Body:  fmt.Sprintf("The renewal window for %s has closed and the policy has expired.", policyName),
		},
		UserIDs: []string{userID},
	}
	return h.publisher.PublishNotification(ctx, event)
}
