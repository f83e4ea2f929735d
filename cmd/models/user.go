package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email                 string         `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	FullName              string         `gorm:"column:full_name;size:255;not null" json:"full_name"`
	PasswordHash          string         `gorm:"column:password_hash;size:255;not null" json:"-"`
	Age                   *int           `gorm:"column:age" json:"age"`
	HoursAvailable        int            `gorm:"column:hours_available;not null;default:0" json:"hours_available"`
	Bio                   string         `gorm:"column:bio;type:text" json:"bio"`
	Skills                pq.StringArray `gorm:"column:skills;type:text[]" json:"skills"`
	Picture               string         `gorm:"column:picture;size:500" json:"picture,omitempty"`
	TotalHoursVolunteered int            `gorm:"column:total_hours_volunteered;not null;default:0" json:"total_hours_volunteered"`
	VerifiedVolunteer     bool           `gorm:"column:verified_volunteer;default:false" json:"verified_volunteer"`
}

// ProfileComplete reports whether the volunteer has filled in the fields the
// eligibility rules look at.
func (u *User) ProfileComplete() bool {
	return u.Age != nil || u.HoursAvailable > 0
}

// MonthlyAvailability overrides User.HoursAvailable for one calendar month.
type MonthlyAvailability struct {
	gorm.Model
	UserID         uint `gorm:"column:user_id;not null;uniqueIndex:idx_user_month" json:"user_id"`
	Year           int  `gorm:"column:year;not null;uniqueIndex:idx_user_month" json:"year"`
	Month          int  `gorm:"column:month;not null;uniqueIndex:idx_user_month" json:"month"`
	HoursAvailable int  `gorm:"column:hours_available;not null" json:"hours_available"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (MonthlyAvailability) TableName() string {
	return "monthly_availability"
}
