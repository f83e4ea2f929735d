package notification

import (
	"context"
	"fmt"
	"strconv"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/service/metrics"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"go.uber.org/zap"
)

// EventNotification is the websocket event type carrying a new notification.
const EventNotification = "notification"

// Pusher is satisfied by *expo.PushClient.
type Pusher interface {
	Publish(message *expo.PushMessage) (expo.PushResponse, error)
}

// Publisher is satisfied by the websocket hub.
type Publisher interface {
	Publish(userID uint, eventType string, data interface{}) error
}

// Notifier stores a notification and then delivers it live. Only the store
// write can fail Notify; websocket and push failures are logged.
type Notifier struct {
	store  Store
	hub    Publisher
	pusher Pusher
	logger *zap.Logger
}

func NewNotifier(store Store, hub Publisher, pusher Pusher, logger *zap.Logger) *Notifier {
	return &Notifier{store: store, hub: hub, pusher: pusher, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, notification *models.Notification) error {
	if err := n.store.CreateNotification(ctx, notification); err != nil {
		return err
	}

	if n.hub != nil {
		err := n.hub.Publish(notification.UserID, EventNotification, notification)
		metrics.Delivered("websocket", err)
		if err != nil {
			n.logger.Warn("Failed to publish notification", zap.Uint("notification_id", notification.ID), zap.Error(err))
		}
	}

	if n.pusher != nil {
		err := n.push(ctx, notification)
		metrics.Delivered("push", err)
		if err != nil {
			n.logger.Warn("Failed to send push notification", zap.Uint("user_id", notification.UserID), zap.Error(err))
		}
	}
	return nil
}

func (n *Notifier) push(ctx context.Context, notification *models.Notification) error {
	devices, err := n.store.UserDevices(ctx, notification.UserID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	var validTokens []expo.ExponentPushToken
	var invalidTokens []string
	for _, device := range devices {
		token, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			invalidTokens = append(invalidTokens, device.Token)
			continue
		}
		validTokens = append(validTokens, token)
	}
	n.cleanupInvalidTokens(ctx, invalidTokens)
	if len(validTokens) == 0 {
		return nil
	}

	data := map[string]string{"type": notification.Type, "notification_id": strconv.FormatUint(uint64(notification.ID), 10)}
	if notification.RelatedCommitmentID != nil {
		data["commitment_id"] = strconv.FormatUint(uint64(*notification.RelatedCommitmentID), 10)
	}

	response, err := n.pusher.Publish(&expo.PushMessage{
		To:       validTokens,
		Title:    notification.Title,
		Body:     notification.Message,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish push notification: %w", err)
	}
	if err := response.ValidateResponse(); err != nil {
		return fmt.Errorf("push notification rejected: %w", err)
	}
	return nil
}

func (n *Notifier) cleanupInvalidTokens(ctx context.Context, tokens []string) {
	if len(tokens) == 0 {
		return
	}
	if err := n.store.DeleteDevicesByToken(ctx, tokens); err != nil {
		n.logger.Warn("Error cleaning up invalid push tokens", zap.Int("count", len(tokens)), zap.Error(err))
		return
	}
	n.logger.Info("Cleaned up invalid push tokens", zap.Int("count", len(tokens)))
}
