// Package reminders notifies volunteers the day before a confirmed
// commitment starts.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/service/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Store interface {
	// DueCommitments lists confirmed commitments starting on day.
	DueCommitments(ctx context.Context, day time.Time) ([]models.Commitment, error)
	// ReminderSent reports whether a reminder already exists for the commitment.
	ReminderSent(ctx context.Context, commitmentID uint) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

type Mailer interface {
	SendReminder(c *models.Commitment) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DueCommitments(ctx context.Context, day time.Time) ([]models.Commitment, error) {
	var commitments []models.Commitment
	err := s.db.WithContext(ctx).
		Where("status = ? AND start_date = ?", models.CommitmentConfirmed, day.Format(models.DateLayout)).
		Find(&commitments).Error
	if err != nil {
		return nil, fmt.Errorf("error loading due commitments: %w", err)
	}
	return commitments, nil
}

func (s *GormStore) ReminderSent(ctx context.Context, commitmentID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("type = ? AND related_commitment_id = ?", models.NotificationReminder, commitmentID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("error checking reminders: %w", err)
	}
	return count > 0, nil
}

// Job sends one reminder per commitment. Running it twice on the same day
// does not send duplicates.
type Job struct {
	store    Store
	notifier Notifier
	mailer   Mailer
	logger   *zap.Logger
	now      func() time.Time
}

func NewJob(store Store, notifier Notifier, mailer Mailer, logger *zap.Logger) *Job {
	return &Job{store: store, notifier: notifier, mailer: mailer, logger: logger, now: time.Now}
}

// Tomorrow is the UTC calendar date after now.
func Tomorrow(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// Run sends reminders for commitments starting tomorrow and returns how many
// went out.
func (j *Job) Run(ctx context.Context) (int, error) {
	day := Tomorrow(j.now())
	due, err := j.store.DueCommitments(ctx, day)
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for i := range due {
		c := &due[i]
		already, err := j.store.ReminderSent(ctx, c.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if already {
			continue
		}

		commitmentID, businessID := c.ID, c.BusinessID
		err = j.notifier.Notify(ctx, &models.Notification{
			UserID:              c.VolunteerID,
			Type:                models.NotificationReminder,
			Title:               "Volunteering Tomorrow",
			Message:             fmt.Sprintf("Reminder: your commitment for \"%s\" at %s starts tomorrow.", c.OpportunityTitle, c.BusinessName),
			RelatedCommitmentID: &commitmentID,
			RelatedBusinessID:   &businessID,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("commitment %d: %w", c.ID, err))
			continue
		}
		sent++
		metrics.RemindersSent.Inc()

		if j.mailer != nil {
			if err := j.mailer.SendReminder(c); err != nil {
				j.logger.Warn("Error sending reminder email", zap.Uint("commitment_id", c.ID), zap.Error(err))
			}
		}
	}

	j.logger.Info("Reminders sent", zap.String("day", day.Format(models.DateLayout)), zap.Int("due", len(due)), zap.Int("sent", sent))
	return sent, errors.Join(errs...)
}
