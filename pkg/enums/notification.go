package enums

// NotificationType is the notification_type column of notifications.
type NotificationType string

const (
	NotificationTypeOrderUpdate    NotificationType = "order_update"
	NotificationTypeBargainUpdate  NotificationType = "bargain_update"
	NotificationTypeReviewReceived NotificationType = "review_received"
)

var notificationTypes = []NotificationType{
	NotificationTypeOrderUpdate,
	NotificationTypeBargainUpdate,
	NotificationTypeReviewReceived,
}

func (n NotificationType) IsValid() bool {
	_, err := ParseNotificationType(string(n))
	return err == nil
}

func ParseNotificationType(raw string) (NotificationType, error) {
	return parse(notificationTypes, "notification type", raw)
}
