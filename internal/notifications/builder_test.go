package notifications

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/outbox/payloads"
)

func envelopeFor(t *testing.T, actor uuid.UUID, data any) outbox.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}
	if actor != uuid.Nil {
		env.Actor = &outbox.ActorRef{UserID: actor}
	}
	return env
}

func TestBuildOrderCreatedNotifiesSeller(t *testing.T) {
	buyer, seller, order := uuid.New(), uuid.New(), uuid.New()
	env := envelopeFor(t, buyer, payloads.OrderCreatedEvent{OrderID: order, BuyerID: buyer, SellerID: seller, Quantity: 1, UnitPriceCents: 1500})

	got, err := BuildFromEnvelope(enums.EventOrderCreated, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].UserID != seller {
		t.Fatalf("expected one notification for the seller, got %+v", got)
	}
	if got[0].EventID.String() != env.EventID {
		t.Fatalf("event id not carried over")
	}
	if got[0].Link == nil || *got[0].Link != "/orders/"+order.String() {
		t.Fatalf("unexpected link %v", got[0].Link)
	}
}

func TestBuildOrderDeliveredNotifiesBothParties(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	env := envelopeFor(t, seller, payloads.OrderStatusEvent{OrderID: uuid.New(), BuyerID: buyer, SellerID: seller, Status: enums.OrderStatusDelivered})

	got, err := BuildFromEnvelope(enums.EventOrderDelivered, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].UserID != buyer || got[1].UserID != seller {
		t.Fatalf("expected buyer and seller notifications, got %+v", got)
	}
}

func TestBuildOrderCanceledSkipsActor(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	reason := "changed my mind"
	env := envelopeFor(t, buyer, payloads.OrderStatusEvent{OrderID: uuid.New(), BuyerID: buyer, SellerID: seller, Status: enums.OrderStatusCancelled, Reason: &reason})

	got, err := BuildFromEnvelope(enums.EventOrderCanceled, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].UserID != seller {
		t.Fatalf("expected only the seller to be told, got %+v", got)
	}
	if !strings.Contains(got[0].Message, reason) {
		t.Fatalf("expected reason in message, got %q", got[0].Message)
	}

	system := envelopeFor(t, uuid.Nil, payloads.OrderStatusEvent{OrderID: uuid.New(), BuyerID: buyer, SellerID: seller, Status: enums.OrderStatusCancelled})
	got, err = BuildFromEnvelope(enums.EventOrderCanceled, system)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both parties for a system cancellation, got %d", len(got))
	}
}

func TestBuildOTPRegeneratedOnlyWhenSellerAsked(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	payload := payloads.OrderStatusEvent{OrderID: uuid.New(), BuyerID: buyer, SellerID: seller, Status: enums.OrderStatusPending}

	got, err := BuildFromEnvelope(enums.EventOrderOTPRegenerated, envelopeFor(t, buyer, payload))
	if err != nil || len(got) != 0 {
		t.Fatalf("buyer regenerating their own code should not notify, got %v %v", got, err)
	}

	got, err = BuildFromEnvelope(enums.EventOrderOTPRegenerated, envelopeFor(t, seller, payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].UserID != buyer {
		t.Fatalf("expected buyer notification, got %+v", got)
	}
}

func TestBuildBargainMessagesFormatPrice(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	proposed := envelopeFor(t, buyer, payloads.BargainEvent{CartItemID: uuid.New(), BuyerID: buyer, SellerID: seller, PriceCents: 1250, Status: enums.BargainStatusPending})

	got, err := BuildFromEnvelope(enums.EventBargainProposed, proposed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].UserID != seller || !strings.Contains(got[0].Message, "$12.50") {
		t.Fatalf("unexpected proposal notification %+v", got)
	}

	accepted := envelopeFor(t, seller, payloads.BargainEvent{CartItemID: uuid.New(), BuyerID: buyer, SellerID: seller, PriceCents: 900, Status: enums.BargainStatusAccepted})
	got, err = BuildFromEnvelope(enums.EventBargainResponded, accepted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].UserID != buyer || got[0].Title != "Offer accepted" {
		t.Fatalf("unexpected response notification %+v", got)
	}
}

func TestBuildReviewSubmittedNotifiesReviewee(t *testing.T) {
	reviewer, reviewee := uuid.New(), uuid.New()
	env := envelopeFor(t, reviewer, payloads.ReviewSubmittedEvent{ReviewID: uuid.New(), ReviewerID: reviewer, RevieweeID: reviewee, Rating: 4, NewAverage: 4.5, RatingCount: 2})

	got, err := BuildFromEnvelope(enums.EventReviewSubmitted, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].UserID != reviewee || got[0].Type != enums.NotificationTypeReviewReceived {
		t.Fatalf("unexpected review notification %+v", got)
	}
}

func TestBuildRejectsBadEventID(t *testing.T) {
	env := outbox.PayloadEnvelope{EventID: "nope", Data: json.RawMessage(`{}`)}
	if _, err := BuildFromEnvelope(enums.EventOrderCreated, env); err == nil {
		t.Fatalf("expected error for invalid event id")
	}
}
