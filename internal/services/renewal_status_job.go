package services

import (
	"context"
	"log/slog"
	"premium-service/internal/models"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// RenewalSweepStore is the slice of the buy-request repository the sweep
// needs.
type RenewalSweepStore interface {
	SelectOverdue(asOf time.Time) ([]models.BuyRequest, error)
	SelectLapsed(asOf time.Time, graceDays int) ([]models.BuyRequest, error)
	UpdateRenewalStatus(id uuid.UUID, status models.RenewalStatus) error
}

type RenewalNotifier interface {
	NotifyRenewalDue(ctx context.Context, userID, policyName string, amount float64) error
	NotifyRenewalExpired(ctx context.Context, userID, policyName string) error
}

// RenewalStatusJob proactively flips renewal statuses so reporting and
// reminders see the true state: active→due once the due date passes,
// due→expired once the grace window lapses. Payment-time checks do not
// depend on it; the reconciler and scheduler re-evaluate reactively.
type RenewalStatusJob struct {
	store     RenewalSweepStore
	policies  PolicyGetter
	scheduler *RenewalScheduler
	notifier  RenewalNotifier
	cron      *cron.Cron
	now       func() time.Time
}

func NewRenewalStatusJob(
	store RenewalSweepStore,
	policies PolicyGetter,
	scheduler *RenewalScheduler,
	notifier RenewalNotifier,
) *RenewalStatusJob {
	return &RenewalStatusJob{
		store:     store,
		policies:  policies,
		scheduler: scheduler,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Start schedules the sweep. The cron expression comes from config
// (default @daily).
func (j *RenewalStatusJob) Start(cronSpec string) error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(cronSpec, func() {
		if err := j.RunSweep(context.Background()); err != nil {
			slog.Error("renewal status sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	slog.Info("renewal status sweep scheduled", "cron", cronSpec)
	return nil
}

func (j *RenewalStatusJob) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// RunSweep performs one pass. Expiry is evaluated before the due flip so a
// record far past its window goes straight to expired.
func (j *RenewalStatusJob) RunSweep(ctx context.Context) error {
	asOf := j.now()

	lapsed, err := j.store.SelectLapsed(asOf, j.scheduler.GraceDays())
	if err != nil {
		return err
	}
	for _, buyRequest := range lapsed {
		if err := j.store.UpdateRenewalStatus(buyRequest.ID, models.RenewalExpired); err != nil {
			slog.Error("failed to expire buy request", "buy_request_id", buyRequest.ID, "error", err)
			continue
		}
		slog.Info("buy request expired", "buy_request_id", buyRequest.ID, "was_due", buyRequest.NextRenewalDate)
		j.notifyExpired(ctx, &buyRequest)
	}

	overdue, err := j.store.SelectOverdue(asOf)
	if err != nil {
		return err
	}
	for _, buyRequest := range overdue {
		if err := j.store.UpdateRenewalStatus(buyRequest.ID, models.RenewalDue); err != nil {
			slog.Error("failed to mark buy request due", "buy_request_id", buyRequest.ID, "error", err)
			continue
		}
		slog.Info("buy request due", "buy_request_id", buyRequest.ID, "due_date", buyRequest.NextRenewalDate)
		j.notifyDue(ctx, &buyRequest)
	}

	slog.Info("renewal status sweep completed", "expired", len(lapsed), "due", len(overdue))
	return nil
}

func (j *RenewalStatusJob) notifyDue(ctx context.Context, buyRequest *models.BuyRequest) {
	if j.notifier == nil || buyRequest.UserID == "" {
		return
	}
	if err := j.notifier.NotifyRenewalDue(ctx, buyRequest.UserID, j.policyName(ctx, buyRequest), buyRequest.CycleAmount); err != nil {
		slog.Error("failed to send due notification", "buy_request_id", buyRequest.ID, "error", err)
	}
}

func (j *RenewalStatusJob) notifyExpired(ctx context.Context, buyRequest *models.BuyRequest) {
	if j.notifier == nil || buyRequest.UserID == "" {
		return
	}
	if err := j.notifier.NotifyRenewalExpired(ctx, buyRequest.UserID, j.policyName(ctx, buyRequest)); err != nil {
		slog.Error("failed to send expiry notification", "buy_request_id", buyRequest.ID, "error", err)
	}
}

func (j *RenewalStatusJob) policyName(ctx context.Context, buyRequest *models.BuyRequest) string {
	policy, err := j.policies.GetPolicy(ctx, buyRequest.PolicyID)
	if err != nil {
		return "your policy"
	}
	return policy.Name
}
