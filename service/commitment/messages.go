package commitment

import (
	"fmt"

	"github.com/KAsare1/commonthread-server/cmd/models"
)

func opportunityLabel(c *models.Commitment) string {
	if c.OpportunityTitle == "" {
		return "opportunity"
	}
	return c.OpportunityTitle
}

func newNotification(c *models.Commitment, kind, title, message string) *models.Notification {
	commitmentID, businessID := c.ID, c.BusinessID
	return &models.Notification{
		UserID:              c.VolunteerID,
		Type:                kind,
		Title:               title,
		Message:             message,
		RelatedCommitmentID: &commitmentID,
		RelatedBusinessID:   &businessID,
	}
}

// applicationNotification tells the volunteer what happened to a new application.
func applicationNotification(c *models.Commitment) *models.Notification {
	if c.Status == models.CommitmentConfirmed {
		return newNotification(c, models.NotificationApplicationApproved, "Application Confirmed!",
			fmt.Sprintf("Your application for \"%s\" at %s has been automatically confirmed!", opportunityLabel(c), c.BusinessName))
	}
	return newNotification(c, models.NotificationApplicationReceived, "Application Submitted",
		fmt.Sprintf("Your application for \"%s\" at %s has been received and is pending review.", opportunityLabel(c), c.BusinessName))
}

func approvedNotification(c *models.Commitment) *models.Notification {
	return newNotification(c, models.NotificationApplicationApproved, "Application Approved!",
		fmt.Sprintf("Your application for \"%s\" at %s has been approved!", opportunityLabel(c), c.BusinessName))
}

func rejectedNotification(c *models.Commitment) *models.Notification {
	return newNotification(c, models.NotificationApplicationRejected, "Application Status Update",
		fmt.Sprintf("Your application at %s has been declined.", c.BusinessName))
}
