package commitment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/service/eligibility"
	"github.com/KAsare1/commonthread-server/service/metrics"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// Mailer sends the transactional emails of the application workflow.
type Mailer interface {
	SendApplicationStatus(c *models.Commitment) error
	SendApplicationApproved(c *models.Commitment) error
}

type Options struct {
	Policy eligibility.Policy
	// ReleaseSlotOnCancel frees the reserved slot when a confirmed or
	// in-progress commitment is cancelled or deleted.
	ReleaseSlotOnCancel bool
}

type ApplyRequest struct {
	OpportunityID  uint   `json:"opportunity_id" validate:"required"`
	HoursCommitted int    `json:"hours_committed" validate:"required,gt=0"`
	StartDate      string `json:"start_date" validate:"required,datetime=2006-01-02"`
	Notes          string `json:"notes" validate:"max=2000"`
}

type DetailsRequest struct {
	HoursCommitted *int    `json:"hours_committed" validate:"omitempty,gt=0"`
	StartDate      *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Notes          *string `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateRequest is the body of PUT /commitments/{id}: detail edits, a new
// status, or both.
type UpdateRequest struct {
	Status *string `json:"status"`
	DetailsRequest
}

func (r UpdateRequest) HasDetails() bool {
	return r.HoursCommitted != nil || r.StartDate != nil || r.Notes != nil
}

type ListOptions struct {
	Statuses []string
	Sort     string
	Limit    int
}

// ApplyResult carries the stored commitment and the decision that produced its status.
type ApplyResult struct {
	Commitment *models.Commitment
	Decision   eligibility.Decision
}

type Service struct {
	store    Store
	notifier Notifier
	mailer   Mailer
	logger   *zap.Logger
	opts     Options
	validate *validator.Validate
}

func NewService(store Store, notifier Notifier, mailer Mailer, logger *zap.Logger, opts Options) *Service {
	if opts.Policy == "" {
		opts.Policy = eligibility.PolicyAlways
	}
	return &Service{
		store:    store,
		notifier: notifier,
		mailer:   mailer,
		logger:   logger,
		opts:     opts,
		validate: validator.New(),
	}
}

// Apply evaluates an application and stores it as confirmed or pending. A
// confirmed application on a limited opportunity takes its slot in the same
// transaction that creates the commitment.
func (s *Service) Apply(ctx context.Context, volunteerID uint, req ApplyRequest) (*ApplyResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Err: err}
	}
	startDate, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	volunteer, err := s.store.GetUser(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	opportunity, err := s.store.GetOpportunity(ctx, req.OpportunityID)
	if err != nil {
		return nil, err
	}
	business, err := s.store.GetBusiness(ctx, opportunity.BusinessID)
	if err != nil {
		return nil, err
	}
	if opportunity.Closed() {
		return nil, ErrOpportunityClosed
	}

	budget, err := s.monthlyBudget(ctx, volunteer, startDate)
	if err != nil {
		return nil, err
	}
	active, err := s.store.ActiveCommitments(ctx, volunteer.ID)
	if err != nil {
		return nil, err
	}

	decision, err := eligibility.Evaluate(s.opts.Policy,
		eligibility.Volunteer{Age: volunteer.Age, MonthlyHours: budget},
		eligibility.Opportunity{
			SlotsNeeded:    opportunity.SlotsNeeded,
			SlotsFilled:    opportunity.SlotsFilled,
			MinAge:         opportunity.MinAge,
			BusinessMinAge: business.MinVolunteerAge,
			AutoAccept:     opportunity.AutoAccept,
		},
		eligibility.Request{Hours: req.HoursCommitted, StartDate: startDate},
		bookings(active),
	)
	if err != nil {
		metrics.Applications.WithLabelValues("full").Inc()
		return nil, err
	}

	status := models.CommitmentPending
	if decision.Approved {
		status = models.CommitmentConfirmed
	}
	commitment := &models.Commitment{
		VolunteerID:      volunteer.ID,
		VolunteerName:    volunteer.FullName,
		VolunteerEmail:   volunteer.Email,
		BusinessID:       business.ID,
		BusinessName:     business.Name,
		OpportunityID:    opportunity.ID,
		OpportunityTitle: opportunity.Title,
		HoursCommitted:   req.HoursCommitted,
		StartDate:        startDate,
		Notes:            req.Notes,
		Status:           status,
	}

	err = s.store.Transaction(ctx, func(tx Store) error {
		if err := tx.CreateCommitment(ctx, commitment); err != nil {
			return err
		}
		if decision.ReserveSlot {
			return tx.ReserveSlot(ctx, opportunity.ID)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOpportunityFull) {
			metrics.Applications.WithLabelValues("full").Inc()
			s.logger.Info("Opportunity filled while applying",
				zap.Uint("opportunity_id", opportunity.ID), zap.Uint("volunteer_id", volunteer.ID))
		}
		return nil, err
	}

	metrics.Applications.WithLabelValues(status).Inc()
	if decision.ReserveSlot {
		metrics.SlotsReserved.Inc()
	}
	s.logger.Info("Application stored",
		zap.Uint("commitment_id", commitment.ID),
		zap.Uint("opportunity_id", opportunity.ID),
		zap.Uint("volunteer_id", volunteer.ID),
		zap.String("status", status),
		zap.Bool("meets_age", decision.MeetsAge),
		zap.Bool("has_hours", decision.HasHours),
		zap.Int("hours_available", decision.HoursAvailable),
	)

	ctx = context.WithoutCancel(ctx)
	s.notify(ctx, applicationNotification(commitment))
	if err := s.mailer.SendApplicationStatus(commitment); err != nil {
		s.logger.Warn("Failed to send application email", zap.Uint("commitment_id", commitment.ID), zap.Error(err))
	}

	return &ApplyResult{Commitment: commitment, Decision: decision}, nil
}

// Transition changes the status of a commitment. The volunteer may only
// cancel; every other move is reserved for the business owner.
func (s *Service) Transition(ctx context.Context, actorID, commitmentID uint, to string) (*models.Commitment, error) {
	return s.Update(ctx, actorID, commitmentID, UpdateRequest{Status: &to})
}

// UpdateDetails lets the volunteer edit a commitment that is still pending.
func (s *Service) UpdateDetails(ctx context.Context, actorID, commitmentID uint, req DetailsRequest) (*models.Commitment, error) {
	return s.Update(ctx, actorID, commitmentID, UpdateRequest{DetailsRequest: req})
}

// Update applies detail edits and a status change together. Every permission
// and transition check runs before the first write, and both writes share one
// transaction, so a rejected request leaves the commitment untouched.
func (s *Service) Update(ctx context.Context, actorID, commitmentID uint, req UpdateRequest) (*models.Commitment, error) {
	if req.Status != nil && !models.ValidCommitmentStatus(*req.Status) {
		return nil, &ValidationError{Err: fmt.Errorf("unknown status %q", *req.Status)}
	}
	if err := s.validate.Struct(req.DetailsRequest); err != nil {
		return nil, &ValidationError{Err: err}
	}
	var startDate time.Time
	if req.StartDate != nil {
		parsed, err := time.Parse(models.DateLayout, *req.StartDate)
		if err != nil {
			return nil, &ValidationError{Err: err}
		}
		startDate = parsed
	}

	commitment, isVolunteer, isOwner, err := s.authorize(ctx, actorID, commitmentID)
	if err != nil {
		return nil, err
	}

	hasDetails := req.HasDetails()
	if hasDetails {
		if !isVolunteer {
			return nil, ErrForbidden
		}
		if commitment.Status != models.CommitmentPending {
			return nil, ErrNotEditable
		}
	}

	from, to := commitment.Status, commitment.Status
	if req.Status != nil {
		to = *req.Status
	}
	changing := from != to
	if changing {
		if !models.CanTransition(from, to) {
			return nil, ErrInvalidTransition
		}
		if !isOwner && to != models.CommitmentCancelled {
			return nil, ErrForbidden
		}
	}
	if !hasDetails && !changing {
		return commitment, nil
	}

	if req.HoursCommitted != nil {
		commitment.HoursCommitted = *req.HoursCommitted
	}
	if req.StartDate != nil {
		commitment.StartDate = startDate
	}
	if req.Notes != nil {
		commitment.Notes = *req.Notes
	}

	reserved, released := false, false
	err = s.store.Transaction(ctx, func(tx Store) error {
		if hasDetails {
			if err := tx.UpdatePendingDetails(ctx, commitment); err != nil {
				return err
			}
		}
		if !changing {
			return nil
		}
		var err error
		reserved, released, err = s.applyTransition(ctx, tx, commitment, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changing {
		commitment.Status = to
		s.afterTransition(ctx, commitment, from, to, actorID, isVolunteer, isOwner, reserved, released)
	}
	return commitment, nil
}

// applyTransition performs the writes of a status change inside tx and
// reports whether a slot was taken or given back.
func (s *Service) applyTransition(ctx context.Context, tx Store, commitment *models.Commitment, from, to string) (bool, bool, error) {
	if err := tx.UpdateStatus(ctx, commitment.ID, from, to); err != nil {
		return false, false, err
	}

	switch {
	case from == models.CommitmentPending && to == models.CommitmentConfirmed:
		opportunity, err := tx.GetOpportunity(ctx, commitment.OpportunityID)
		if err != nil {
			return false, false, err
		}
		if opportunity.Closed() {
			return false, false, ErrOpportunityClosed
		}
		if opportunity.SlotsNeeded > 0 {
			if err := tx.ReserveSlot(ctx, opportunity.ID); err != nil {
				return false, false, err
			}
			return true, false, nil
		}

	case to == models.CommitmentCancelled && models.HoldsSlot(from) && s.opts.ReleaseSlotOnCancel:
		if err := tx.ReleaseSlot(ctx, commitment.OpportunityID); err != nil {
			return false, false, err
		}
		return false, true, nil

	case to == models.CommitmentCompleted:
		return false, false, tx.CreditHours(ctx, commitment.VolunteerID, commitment.HoursCommitted)
	}
	return false, false, nil
}

func (s *Service) afterTransition(ctx context.Context, commitment *models.Commitment, from, to string, actorID uint, isVolunteer, isOwner, reserved, released bool) {
	metrics.Transitions.WithLabelValues(from, to).Inc()
	if reserved {
		metrics.SlotsReserved.Inc()
	}
	if released {
		metrics.SlotsReleased.Inc()
	}
	s.logger.Info("Commitment status changed",
		zap.Uint("commitment_id", commitment.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.Uint("actor_id", actorID),
		zap.Bool("by_volunteer", isVolunteer && !isOwner),
	)

	ctx = context.WithoutCancel(ctx)
	switch {
	case from == models.CommitmentPending && to == models.CommitmentConfirmed:
		s.notify(ctx, approvedNotification(commitment))
		if err := s.mailer.SendApplicationApproved(commitment); err != nil {
			s.logger.Warn("Failed to send approval email", zap.Uint("commitment_id", commitment.ID), zap.Error(err))
		}
	case from == models.CommitmentPending && to == models.CommitmentCancelled && isOwner:
		s.notify(ctx, rejectedNotification(commitment))
	}
}

// Delete removes a commitment, giving back its slot if it held one.
func (s *Service) Delete(ctx context.Context, actorID, commitmentID uint) error {
	commitment, _, _, err := s.authorize(ctx, actorID, commitmentID)
	if err != nil {
		return err
	}

	release := models.HoldsSlot(commitment.Status) && s.opts.ReleaseSlotOnCancel
	err = s.store.Transaction(ctx, func(tx Store) error {
		if err := tx.DeleteCommitment(ctx, commitment.ID, commitment.Status); err != nil {
			return err
		}
		if release {
			return tx.ReleaseSlot(ctx, commitment.OpportunityID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if release {
		metrics.SlotsReleased.Inc()
	}
	s.logger.Info("Commitment deleted", zap.Uint("commitment_id", commitment.ID), zap.Uint("actor_id", actorID))
	return nil
}

func (s *Service) Get(ctx context.Context, actorID, commitmentID uint) (*models.Commitment, error) {
	commitment, _, _, err := s.authorize(ctx, actorID, commitmentID)
	return commitment, err
}

func (s *Service) ListForVolunteer(ctx context.Context, volunteerID uint, opts ListOptions) ([]models.Commitment, error) {
	if err := validStatuses(opts.Statuses); err != nil {
		return nil, err
	}
	return s.store.ListCommitments(ctx, ListFilter{
		VolunteerID: volunteerID,
		Statuses:    opts.Statuses,
		Sort:        opts.Sort,
		Limit:       opts.Limit,
	})
}

// ListForBusiness is restricted to the owner of the business.
func (s *Service) ListForBusiness(ctx context.Context, actorID, businessID uint, opts ListOptions) ([]models.Commitment, error) {
	if err := validStatuses(opts.Statuses); err != nil {
		return nil, err
	}
	business, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if business.OwnerID != actorID {
		return nil, ErrForbidden
	}
	return s.store.ListCommitments(ctx, ListFilter{
		BusinessID: businessID,
		Statuses:   opts.Statuses,
		Sort:       opts.Sort,
		Limit:      opts.Limit,
	})
}

// authorize loads a commitment and reports whether the actor is its
// volunteer or the owner of its business. Anyone else gets ErrForbidden.
func (s *Service) authorize(ctx context.Context, actorID, commitmentID uint) (*models.Commitment, bool, bool, error) {
	commitment, err := s.store.GetCommitment(ctx, commitmentID)
	if err != nil {
		return nil, false, false, err
	}

	isVolunteer := commitment.VolunteerID == actorID
	isOwner := false
	business, err := s.store.GetBusiness(ctx, commitment.BusinessID)
	switch {
	case err == nil:
		isOwner = business.OwnerID == actorID
	case !errors.Is(err, ErrBusinessNotFound):
		return nil, false, false, err
	}

	if !isVolunteer && !isOwner {
		return nil, false, false, ErrForbidden
	}
	return commitment, isVolunteer, isOwner, nil
}

func (s *Service) monthlyBudget(ctx context.Context, volunteer *models.User, month time.Time) (int, error) {
	month = month.UTC()
	hours, ok, err := s.store.MonthlyOverride(ctx, volunteer.ID, month.Year(), int(month.Month()))
	if err != nil {
		return 0, err
	}
	if ok {
		return hours, nil
	}
	return volunteer.HoursAvailable, nil
}

func (s *Service) notify(ctx context.Context, n *models.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("Failed to create notification",
			zap.Uint("user_id", n.UserID), zap.String("type", n.Type), zap.Error(err))
	}
}

func bookings(commitments []models.Commitment) []eligibility.Booking {
	out := make([]eligibility.Booking, 0, len(commitments))
	for _, c := range commitments {
		out = append(out, eligibility.Booking{Hours: c.HoursCommitted, StartDate: c.StartDate})
	}
	return out
}

func validStatuses(statuses []string) error {
	for _, status := range statuses {
		if !models.ValidCommitmentStatus(status) {
			return &ValidationError{Err: fmt.Errorf("unknown status %q", status)}
		}
	}
	return nil
}
