package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	CommitmentPending    = "pending"
	CommitmentConfirmed  = "confirmed"
	CommitmentInProgress = "in_progress"
	CommitmentCompleted  = "completed"
	CommitmentCancelled  = "cancelled"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type Commitment struct {
	gorm.Model
	VolunteerID      uint      `gorm:"column:volunteer_id;not null;index" json:"volunteer_id"`
	VolunteerName    string    `gorm:"column:volunteer_name;size:255" json:"volunteer_name"`
	VolunteerEmail   string    `gorm:"column:volunteer_email;size:255" json:"volunteer_email"`
	BusinessID       uint      `gorm:"column:business_id;not null;index" json:"business_id"`
	BusinessName     string    `gorm:"column:business_name;size:255" json:"business_name"`
	OpportunityID    uint      `gorm:"column:opportunity_id;not null;index" json:"opportunity_id"`
	OpportunityTitle string    `gorm:"column:opportunity_title;size:255" json:"opportunity_title"`
	HoursCommitted   int       `gorm:"column:hours_committed;not null" json:"hours_committed"`
	StartDate        time.Time `gorm:"column:start_date;type:date;not null;index" json:"start_date"`
	Notes            string    `gorm:"column:notes;type:text" json:"notes"`
	Status           string    `gorm:"column:status;size:20;not null;default:'pending';index" json:"status"`

	Volunteer   *User        `gorm:"foreignKey:VolunteerID" json:"-"`
	Business    *Business    `gorm:"foreignKey:BusinessID" json:"-"`
	Opportunity *Opportunity `gorm:"foreignKey:OpportunityID;constraint:OnDelete:CASCADE" json:"-"`
}

// ActiveCommitmentStatuses are the statuses that count against a volunteer's
// monthly hours.
var ActiveCommitmentStatuses = []string{CommitmentConfirmed, CommitmentInProgress}

var commitmentTransitions = map[string][]string{
	CommitmentPending:    {CommitmentConfirmed, CommitmentCancelled},
	CommitmentConfirmed:  {CommitmentInProgress, CommitmentCompleted, CommitmentCancelled},
	CommitmentInProgress: {CommitmentCompleted, CommitmentCancelled},
}

// CanTransition reports whether a commitment may move from one status to another.
// Completed and cancelled are terminal.
func CanTransition(from, to string) bool {
	for _, s := range commitmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidCommitmentStatus reports whether s is a known commitment status.
func ValidCommitmentStatus(s string) bool {
	switch s {
	case CommitmentPending, CommitmentConfirmed, CommitmentInProgress, CommitmentCompleted, CommitmentCancelled:
		return true
	}
	return false
}

// HoldsSlot reports whether a commitment in this status occupies a capacity slot.
func HoldsSlot(status string) bool {
	return status == CommitmentConfirmed || status == CommitmentInProgress
}
