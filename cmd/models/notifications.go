package models

import "gorm.io/gorm"

const (
	NotificationApplicationReceived = "application_received"
	NotificationApplicationApproved = "application_approved"
	NotificationApplicationRejected = "application_rejected"
	NotificationReminder            = "reminder"
	NotificationMessage             = "message"
)

type Notification struct {
	gorm.Model
	UserID              uint   `gorm:"column:user_id;not null;index" json:"user_id"`
	Type                string `gorm:"column:type;size:50;not null" json:"type"`
	Title               string `gorm:"column:title;size:255;not null" json:"title"`
	Message             string `gorm:"column:message;type:text" json:"message"`
	RelatedCommitmentID *uint  `gorm:"column:related_commitment_id" json:"related_commitment_id,omitempty"`
	RelatedBusinessID   *uint  `gorm:"column:related_business_id" json:"related_business_id,omitempty"`
	IsRead              bool   `gorm:"column:is_read;default:false;index" json:"is_read"`
}

type Device struct {
	gorm.Model
	Token      string `gorm:"not null;uniqueIndex:idx_token_user" json:"token"`
	UserID     uint   `gorm:"not null;index;uniqueIndex:idx_token_user" json:"user_id"`
	DeviceType string `gorm:"type:varchar(50)" json:"device_type"`
	DeviceName string `gorm:"type:varchar(100)" json:"device_name,omitempty"`
}
