package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/outbox/payloads"
	"github.com/campusmart/campusmart-backend/pkg/types"
)

// BuildFromEnvelope turns one domain event into the notifications its participants should see.
// Event types with no audience return nil.
func BuildFromEnvelope(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) ([]models.Notification, error) {
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return nil, fmt.Errorf("invalid event id: %w", err)
	}
	actor := envelope.ActorID()

	switch eventType {
	case enums.EventOrderCreated:
		var p payloads.OrderCreatedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			newNotification(eventID, p.SellerID, enums.NotificationTypeOrderUpdate, "New order",
				"Someone ordered your item. Ask the buyer for their delivery code at handoff.", orderLink(p.OrderID)),
		}, nil

	case enums.EventOrderDelivered:
		var p payloads.OrderStatusEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			newNotification(eventID, p.BuyerID, enums.NotificationTypeOrderUpdate, "Order delivered",
				"Your order was handed over. You can now review the seller.", orderLink(p.OrderID)),
			newNotification(eventID, p.SellerID, enums.NotificationTypeOrderUpdate, "Sale completed",
				"The delivery code matched and the order is complete.", orderLink(p.OrderID)),
		}, nil

	case enums.EventOrderCanceled:
		var p payloads.OrderStatusEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		message := "Your order was cancelled."
		if p.Reason != nil && *p.Reason != "" {
			message = fmt.Sprintf("Your order was cancelled: %s.", *p.Reason)
		}
		var out []models.Notification
		for _, recipient := range []uuid.UUID{p.BuyerID, p.SellerID} {
			if recipient == actor {
				continue
			}
			out = append(out, newNotification(eventID, recipient, enums.NotificationTypeOrderUpdate, "Order cancelled", message, orderLink(p.OrderID)))
		}
		return out, nil

	case enums.EventOrderOTPRegenerated:
		var p payloads.OrderStatusEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		if actor == p.BuyerID {
			return nil, nil
		}
		return []models.Notification{
			newNotification(eventID, p.BuyerID, enums.NotificationTypeOrderUpdate, "New delivery code",
				"The seller requested a fresh delivery code. Open the order to see it.", orderLink(p.OrderID)),
		}, nil

	case enums.EventBargainProposed:
		var p payloads.BargainEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			newNotification(eventID, p.SellerID, enums.NotificationTypeBargainUpdate, "New price offer",
				fmt.Sprintf("A buyer offered %s for your item.", formatCents(p.PriceCents)), "/bargains/incoming"),
		}, nil

	case enums.EventBargainResponded:
		var p payloads.BargainEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		title, message := "Offer declined", fmt.Sprintf("The seller declined your offer of %s.", formatCents(p.PriceCents))
		if p.Status == enums.BargainStatusAccepted {
			title, message = "Offer accepted", fmt.Sprintf("The seller accepted %s. It applies at checkout.", formatCents(p.PriceCents))
		}
		return []models.Notification{
			newNotification(eventID, p.BuyerID, enums.NotificationTypeBargainUpdate, title, message, "/cart"),
		}, nil

	case enums.EventReviewSubmitted:
		var p payloads.ReviewSubmittedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			newNotification(eventID, p.RevieweeID, enums.NotificationTypeReviewReceived, "New review",
				fmt.Sprintf("You received a %d-star review. Your rating is now %.1f from %d reviews.", p.Rating, p.NewAverage, p.RatingCount),
				fmt.Sprintf("/users/%s/reviews", p.RevieweeID)),
		}, nil
	}
	return nil, nil
}

func newNotification(eventID, userID uuid.UUID, kind enums.NotificationType, title, message, link string) models.Notification {
	return models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		EventID: eventID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    &link,
	}
}

func orderLink(orderID uuid.UUID) string {
	return "/orders/" + orderID.String()
}

func formatCents(cents int) string {
	return "$" + types.FormatCents(cents)
}
