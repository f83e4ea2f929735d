package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	OpportunityOpen       = "open"
	OpportunityInProgress = "in_progress"
	OpportunityCompleted  = "completed"
	OpportunityCancelled  = "cancelled"
)

type Opportunity struct {
	gorm.Model
	BusinessID   uint           `gorm:"column:business_id;not null;index" json:"business_id"`
	BusinessName string         `gorm:"column:business_name;size:255" json:"business_name"`
	Title        string         `gorm:"column:title;size:255;not null" json:"title"`
	Description  string         `gorm:"column:description;type:text" json:"description"`
	SkillsNeeded pq.StringArray `gorm:"column:skills_needed;type:text[]" json:"skills_needed"`
	HoursPerWeek int            `gorm:"column:hours_per_week;default:0" json:"hours_per_week"`
	Urgency      string         `gorm:"column:urgency;size:20;default:'medium'" json:"urgency"`
	// SlotsNeeded of 0 means unlimited.
	SlotsNeeded int `gorm:"column:slots_needed;not null;default:0" json:"slots_needed"`
	SlotsFilled int `gorm:"column:slots_filled;not null;default:0" json:"slots_filled"`
	// MinAge of 0 falls back to the business minimum.
	MinAge     int        `gorm:"column:min_age;not null;default:0" json:"min_age"`
	AutoAccept bool       `gorm:"column:auto_accept;not null;default:false" json:"auto_accept"`
	Status     string     `gorm:"column:status;size:20;not null;default:'open';index" json:"status"`
	StartDate  *time.Time `gorm:"column:start_date;type:date" json:"start_date,omitempty"`

	Business *Business `gorm:"foreignKey:BusinessID;constraint:OnDelete:CASCADE" json:"-"`
}

// Closed reports whether the opportunity no longer accepts applications.
func (o *Opportunity) Closed() bool {
	return o.Status == OpportunityCompleted || o.Status == OpportunityCancelled
}
