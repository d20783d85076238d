package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/internal/orderhistory"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/outbox/payloads"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
	"github.com/campusmart/campusmart-backend/pkg/security"
)

const defaultOTPTTL = 24 * time.Hour

// Service defines the order lifecycle: checkout, delivery confirmation and cancellation.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) ([]CreatedOrder, error)
	Get(ctx context.Context, orderID, requesterID uuid.UUID) (*OrderView, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	RegenerateOTP(ctx context.Context, orderID, requesterID uuid.UUID) (*OTPResult, error)
	VerifyAndDeliver(ctx context.Context, input DeliverInput) (*StatusResult, error)
	Cancel(ctx context.Context, input CancelInput) (*StatusResult, error)
	History(ctx context.Context, orderID, requesterID uuid.UUID) ([]orderhistory.Transition, error)
}

// ServiceParams wires the order service. History, Metrics, Logger, Now and GenerateOTP are optional.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Cart        CartLines
	Catalog     Catalog
	Captcha     HumanVerifier
	History     historyStore
	Metrics     transitionMetrics
	Logger      *logger.Logger
	OTPLength   int
	OTPTTL      time.Duration
	Now         func() time.Time
	GenerateOTP func(length int) (string, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	cart        CartLines
	catalog     Catalog
	captcha     HumanVerifier
	history     historyStore
	metrics     transitionMetrics
	logg        *logger.Logger
	otpLength   int
	otpTTL      time.Duration
	now         func() time.Time
	generateOTP func(length int) (string, error)
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart lines required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Captcha == nil {
		return nil, fmt.Errorf("human verifier required")
	}
	svc := &service{
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		cart:        params.Cart,
		catalog:     params.Catalog,
		captcha:     params.Captcha,
		history:     params.History,
		metrics:     params.Metrics,
		logg:        params.Logger,
		otpLength:   params.OTPLength,
		otpTTL:      params.OTPTTL,
		now:         params.Now,
		generateOTP: params.GenerateOTP,
	}
	if svc.history == nil {
		svc.history = orderhistory.Noop{}
	}
	if svc.otpLength <= 0 {
		svc.otpLength = security.DefaultOTPLength
	}
	if svc.otpTTL <= 0 {
		svc.otpTTL = defaultOTPTTL
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	if svc.generateOTP == nil {
		svc.generateOTP = security.GenerateOTP
	}
	return svc, nil
}

// LineProblem explains why one cart line blocked checkout.
type LineProblem struct {
	LineID uuid.UUID `json:"line_id"`
	ItemID uuid.UUID `json:"item_id"`
	Reason string    `json:"reason"`
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) ([]CreatedOrder, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	token := strings.TrimSpace(input.CaptchaToken)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "captcha token required")
	}
	human, err := s.captcha.Verify(ctx, token, input.RemoteIP)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify captcha")
	}
	if !human {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "captcha verification failed")
	}

	now := s.now()
	var created []models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		lines, err := s.cart.CheckoutLines(ctx, tx, input.BuyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		itemIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			itemIDs = append(itemIDs, line.ItemID)
		}
		items, err := s.catalog.LockForCheckout(ctx, tx, itemIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}

		problems := []LineProblem{}
		orders := make([]models.Order, 0, len(lines))
		lineIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			item, ok := items[line.ItemID]
			if reason := checkoutProblem(line, item, ok, input.BuyerID); reason != "" {
				problems = append(problems, LineProblem{LineID: line.ID, ItemID: line.ItemID, Reason: reason})
				continue
			}
			otp, err := s.generateOTP(s.otpLength)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate delivery code")
			}
			expiresAt := now.Add(s.otpTTL)
			order := models.Order{
				ID:             uuid.New(),
				ItemID:         item.ID,
				BuyerID:        input.BuyerID,
				SellerID:       item.SellerID,
				Quantity:       line.Quantity,
				UnitPriceCents: item.PriceCents,
				Status:         enums.OrderStatusPending,
				DeliveryOTP:    &otp,
				OTPExpiresAt:   &expiresAt,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if line.HasAcceptedBargain() {
				price := *line.BargainPriceCents
				order.BargainedPriceCents = &price
			}
			orders = append(orders, order)
			lineIDs = append(lineIDs, line.ID)
		}
		if len(problems) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout rejected").
				WithDetails(map[string]any{"lines": problems})
		}

		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrders(ctx, orders); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create orders")
		}
		if err := s.cart.RemoveLines(ctx, tx, lineIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart lines")
		}
		for _, order := range orders {
			event := outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				OccurredAt:    now,
				Actor:         buildActor(input.BuyerID, roleBuyer),
				Data: payloads.OrderCreatedEvent{
					OrderID:             order.ID,
					ItemID:              order.ItemID,
					BuyerID:             order.BuyerID,
					SellerID:            order.SellerID,
					Quantity:            order.Quantity,
					UnitPriceCents:      order.UnitPriceCents,
					BargainedPriceCents: order.BargainedPriceCents,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
			}
		}
		created = orders
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]CreatedOrder, 0, len(created))
	for _, order := range created {
		s.afterTransition(ctx, order, "", enums.OrderStatusPending, input.BuyerID, "")
		result = append(result, CreatedOrder{OrderID: order.ID, ItemID: order.ItemID, OTPIssued: true})
	}
	return result, nil
}

func checkoutProblem(line models.CartItem, item models.Item, found bool, buyerID uuid.UUID) string {
	switch {
	case !found:
		return "item no longer exists"
	case item.SellerID == buyerID:
		return "cannot buy your own item"
	case !item.IsAvailable:
		return "item is not available"
	case line.Quantity < 1:
		return "quantity must be at least 1"
	case line.Quantity > item.Quantity:
		return "quantity exceeds available stock"
	default:
		return ""
	}
}

func (s *service) Get(ctx context.Context, orderID, requesterID uuid.UUID) (*OrderView, error) {
	order, err := loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, requesterID, actionView); err != nil {
		return nil, err
	}
	view := toOrderView(*order, requesterID)
	return &view, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.RequesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	query := ListQuery{
		UserID: input.RequesterID,
		Status: input.Status,
		Limit:  pagination.LimitWithBuffer(input.Params.Limit),
	}
	if input.Params.Cursor != "" {
		cursor, err := pagination.ParseCursor(input.Params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.ListOrders(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	rows, next := pagination.Trim(rows, input.Params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	nextCursor := ""
	if next != nil {
		nextCursor = pagination.EncodeCursor(*next)
	}

	views := make([]OrderView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toOrderView(row, input.RequesterID))
	}
	return &ListResult{Orders: views, Cursor: nextCursor}, nil
}

func (s *service) RegenerateOTP(ctx context.Context, orderID, requesterID uuid.UUID) (*OTPResult, error) {
	now := s.now()
	var (
		result  *OTPResult
		current *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := authorize(order, requesterID, actionRegenerate); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return notPending(order.Status)
		}

		otp, err := s.generateOTP(s.otpLength)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate delivery code")
		}
		expiresAt := now.Add(s.otpTTL)
		replaced, err := repo.ReplaceOTP(ctx, order.ID, otp, expiresAt, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace delivery code")
		}
		if !replaced {
			return reloadConflict(ctx, repo, order.ID)
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderOTPRegenerated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Actor:         buildActor(requesterID, roleOf(*order, requesterID)),
			Data:          statusEvent(*order, enums.OrderStatusPending, nil),
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
		}

		result = &OTPResult{OrderID: order.ID, OTPIssued: true, ExpiresAt: &expiresAt}
		if order.BuyerID == requesterID {
			result.OTP = &otp
		}
		current = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordHistory(ctx, *current, enums.OrderStatusPending, enums.OrderStatusPending, requesterID, "otp_regenerated")
	return result, nil
}

func (s *service) VerifyAndDeliver(ctx context.Context, input DeliverInput) (*StatusResult, error) {
	otp := strings.TrimSpace(input.OTP)
	if otp == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "otp required")
	}

	now := s.now()
	var (
		delivered *models.Order
		closed    []models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorize(order, input.RequesterID, actionDeliver); err != nil {
			return err
		}
		if err := checkDeliverable(order, otp, now); err != nil {
			return err
		}

		// Claim the item row before the order row; concurrent deliveries of one item serialize here.
		sold, err := s.catalog.MarkSold(ctx, tx, order.ItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item sold")
		}
		if !sold {
			latest, err := loadOrder(ctx, repo, order.ID)
			if err != nil {
				return err
			}
			if latest.Status != enums.OrderStatusPending {
				return notPending(latest.Status)
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item already sold")
		}

		ok, err := repo.MarkDelivered(ctx, order.ID, otp, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
		if !ok {
			latest, err := loadOrder(ctx, repo, order.ID)
			if err != nil {
				return err
			}
			if err := checkDeliverable(latest, otp, now); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		order.Status = enums.OrderStatusDelivered
		if err := s.emitStatus(ctx, tx, *order, input.RequesterID, enums.EventOrderDelivered, nil, now); err != nil {
			return err
		}

		pending, err := repo.FindPendingByItem(ctx, order.ItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load competing orders")
		}
		reason := CancelReasonItemSold
		for _, other := range pending {
			if other.ID == order.ID {
				continue
			}
			canceled, err := repo.MarkCanceled(ctx, other.ID, input.RequesterID, &reason, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel competing order")
			}
			if !canceled {
				continue
			}
			other.Status = enums.OrderStatusCancelled
			other.CancelReason = &reason
			if err := s.emitStatus(ctx, tx, other, input.RequesterID, enums.EventOrderCanceled, &reason, now); err != nil {
				return err
			}
			closed = append(closed, other)
		}
		delivered = order
		return nil
	})
	if err != nil {
		s.observeRejection(err)
		return nil, err
	}

	s.afterTransition(ctx, *delivered, enums.OrderStatusPending, enums.OrderStatusDelivered, input.RequesterID, "")
	for _, other := range closed {
		s.afterTransition(ctx, other, enums.OrderStatusPending, enums.OrderStatusCancelled, input.RequesterID, CancelReasonItemSold)
	}
	return &StatusResult{OrderID: delivered.ID, Status: StatusLabel(enums.OrderStatusDelivered)}, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*StatusResult, error) {
	reason := normalizeReason(input.Reason)
	now := s.now()
	var canceled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorize(order, input.RequesterID, actionCancel); err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			return notPending(order.Status)
		}
		ok, err := repo.MarkCanceled(ctx, order.ID, input.RequesterID, reason, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return reloadConflict(ctx, repo, order.ID)
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelReason = reason
		if err := s.emitStatus(ctx, tx, *order, input.RequesterID, enums.EventOrderCanceled, reason, now); err != nil {
			return err
		}
		canceled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	reasonText := ""
	if reason != nil {
		reasonText = *reason
	}
	s.afterTransition(ctx, *canceled, enums.OrderStatusPending, enums.OrderStatusCancelled, input.RequesterID, reasonText)
	return &StatusResult{OrderID: canceled.ID, Status: StatusLabel(enums.OrderStatusCancelled)}, nil
}

func (s *service) History(ctx context.Context, orderID, requesterID uuid.UUID) ([]orderhistory.Transition, error) {
	order, err := loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, requesterID, actionView); err != nil {
		return nil, err
	}
	entries, err := s.history.History(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	return entries, nil
}

// checkDeliverable classifies a delivery attempt without mutating anything.
// An expired code is reported as expired whatever value was supplied.
func checkDeliverable(order *models.Order, otp string, now time.Time) error {
	if order.Status != enums.OrderStatusPending {
		return notPending(order.Status)
	}
	if order.DeliveryOTP == nil || order.OTPExpiresAt == nil || !now.Before(*order.OTPExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeOTPExpired, "delivery code expired, request a new one")
	}
	if !security.OTPEqual(*order.DeliveryOTP, otp) {
		return pkgerrors.New(pkgerrors.CodeOTPMismatch, "delivery code does not match")
	}
	return nil
}

func notPending(status enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending").
		WithDetails(map[string]any{"status": StatusLabel(status)})
}

// reloadConflict re-reads an order after a conditional update matched nothing.
func reloadConflict(ctx context.Context, repo Repository, orderID uuid.UUID) error {
	latest, err := loadOrder(ctx, repo, orderID)
	if err != nil {
		return err
	}
	if latest.Status != enums.OrderStatusPending {
		return notPending(latest.Status)
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
}

func loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func normalizeReason(reason *string) *string {
	if reason == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, order models.Order, actorID uuid.UUID, eventType enums.OutboxEventType, reason *string, now time.Time) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		OccurredAt:    now,
		Actor:         buildActor(actorID, roleOf(order, actorID)),
		Data:          statusEvent(order, order.Status, reason),
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
	}
	return nil
}

func statusEvent(order models.Order, status enums.OrderStatus, reason *string) payloads.OrderStatusEvent {
	return payloads.OrderStatusEvent{
		OrderID:    order.ID,
		ItemID:     order.ItemID,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID,
		Status:     status,
		TotalCents: order.TotalCents(),
		Reason:     reason,
	}
}

func buildActor(userID uuid.UUID, role string) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: role}
}

func (s *service) afterTransition(ctx context.Context, order models.Order, from, to enums.OrderStatus, actorID uuid.UUID, reason string) {
	if s.metrics != nil {
		s.metrics.IncTransition(string(to))
	}
	s.recordHistory(ctx, order, from, to, actorID, reason)
}

// recordHistory is best effort: the transition is already committed.
func (s *service) recordHistory(ctx context.Context, order models.Order, from, to enums.OrderStatus, actorID uuid.UUID, reason string) {
	entry := orderhistory.Transition{
		OrderID:    order.ID.String(),
		ItemID:     order.ItemID.String(),
		BuyerID:    order.BuyerID.String(),
		SellerID:   order.SellerID.String(),
		From:       string(from),
		To:         string(to),
		ActorID:    actorID.String(),
		Reason:     reason,
		OccurredAt: s.now(),
	}
	if err := s.history.Record(ctx, entry); err != nil && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "record order history", err)
	}
}

func (s *service) observeRejection(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeOTPMismatch):
		s.metrics.IncOTPRejection("mismatch")
	case pkgerrors.IsCode(err, pkgerrors.CodeOTPExpired):
		s.metrics.IncOTPRejection("expired")
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		s.metrics.IncOTPRejection("conflict")
	}
}
