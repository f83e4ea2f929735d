package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type memoryStore struct {
	commitments []models.Commitment
	reminded    map[uint]bool
}

func (s *memoryStore) DueCommitments(ctx context.Context, day time.Time) ([]models.Commitment, error) {
	var out []models.Commitment
	for _, c := range s.commitments {
		if c.Status == models.CommitmentConfirmed && c.StartDate.Equal(day) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memoryStore) ReminderSent(ctx context.Context, commitmentID uint) (bool, error) {
	return s.reminded[commitmentID], nil
}

// recordingNotifier marks the store so repeated runs see earlier reminders.
type recordingNotifier struct {
	store *memoryStore
	sent  []*models.Notification
	err   error
}

func (n *recordingNotifier) Notify(ctx context.Context, notification *models.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	n.store.reminded[*notification.RelatedCommitmentID] = true
	return nil
}

type recordingMailer struct {
	sent []uint
	err  error
}

func (m *recordingMailer) SendReminder(c *models.Commitment) error {
	m.sent = append(m.sent, c.ID)
	return m.err
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func newFixture() (*memoryStore, *recordingNotifier, *recordingMailer, *Job) {
	store := &memoryStore{
		commitments: []models.Commitment{
			{Model: gorm.Model{ID: 1}, VolunteerID: 2, BusinessID: 10, OpportunityTitle: "Food Drive", BusinessName: "Pantry", StartDate: day(2025, time.March, 1), Status: models.CommitmentConfirmed},
			{Model: gorm.Model{ID: 2}, VolunteerID: 3, StartDate: day(2025, time.March, 1), Status: models.CommitmentPending},
			{Model: gorm.Model{ID: 3}, VolunteerID: 4, StartDate: day(2025, time.March, 2), Status: models.CommitmentConfirmed},
			{Model: gorm.Model{ID: 4}, VolunteerID: 5, StartDate: day(2025, time.March, 1), Status: models.CommitmentConfirmed},
		},
		reminded: map[uint]bool{},
	}
	notifier := &recordingNotifier{store: store}
	mailer := &recordingMailer{}
	job := NewJob(store, notifier, mailer, zap.NewNop())
	job.now = func() time.Time { return time.Date(2025, time.February, 28, 8, 0, 0, 0, time.UTC) }
	return store, notifier, mailer, job
}

func TestTomorrow(t *testing.T) {
	assert.Equal(t, day(2025, time.March, 1), Tomorrow(time.Date(2025, time.February, 28, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, day(2025, time.January, 1), Tomorrow(time.Date(2024, time.December, 31, 12, 0, 0, 0, time.UTC)))

	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, day(2025, time.March, 2), Tomorrow(time.Date(2025, time.February, 28, 22, 0, 0, 0, est)), "dates are UTC")
}

func TestJobRun(t *testing.T) {
	_, notifier, mailer, job := newFixture()

	sent, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.ElementsMatch(t, []uint{1, 4}, mailer.sent)

	require.Len(t, notifier.sent, 2)
	for _, n := range notifier.sent {
		assert.Equal(t, models.NotificationReminder, n.Type)
	}

	sent, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent, "reminders are sent once")
	assert.Len(t, mailer.sent, 2)
}

func TestJobRun_Failures(t *testing.T) {
	_, notifier, mailer, job := newFixture()
	notifier.err = errors.New("db down")

	sent, err := job.Run(context.Background())
	assert.Error(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, mailer.sent, "no email without a stored reminder")

	_, notifier, mailer, job = newFixture()
	mailer.err = errors.New("smtp down")
	sent, err = job.Run(context.Background())
	assert.NoError(t, err, "email failures are only logged")
	assert.Equal(t, 2, sent)
	assert.Len(t, notifier.sent, 2)
}

func TestScheduler(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	_, _, _, job := newFixture()

	_, err := scheduler.ScheduleJob(context.Background(), "0 8 * * *", job)
	require.NoError(t, err)
	_, err = scheduler.ScheduleJob(context.Background(), "every tuesday", job)
	assert.Error(t, err)

	scheduler.Start()
	scheduler.Shutdown()
}
