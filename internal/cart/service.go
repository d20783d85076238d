package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/outbox/payloads"
	"github.com/campusmart/campusmart-backend/pkg/types"
)

const maxBargainMessageLength = 500

// Service exposes cart and bargain operations.
type Service interface {
	AddOrUpdate(ctx context.Context, userID uuid.UUID, input AddInput) (*LineDTO, error)
	List(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Remove(ctx context.Context, userID, lineID uuid.UUID) error
	SaveForLater(ctx context.Context, userID, lineID uuid.UUID, saved bool) error
	Bargain(ctx context.Context, userID, lineID uuid.UUID, input BargainInput) (*LineDTO, error)
	RespondBargain(ctx context.Context, sellerID, lineID uuid.UUID, accept bool) (*LineDTO, error)
	IncomingBargains(ctx context.Context, sellerID uuid.UUID) ([]IncomingBargainDTO, error)
}

type service struct {
	repo   CartRepository
	items  ItemLookup
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, items ItemLookup, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("item lookup required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		items:  items,
		tx:     tx,
		outbox: outbox,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) AddOrUpdate(ctx context.Context, userID uuid.UUID, input AddInput) (*LineDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	item, err := s.loadItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	switch {
	case item.SellerID == userID:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot add your own item to the cart")
	case !item.IsAvailable:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "item is not available")
	case input.Quantity > item.Quantity:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds available stock").
			WithDetails(map[string]any{"available": item.Quantity})
	}

	line, err := s.upsert(ctx, userID, input)
	if err != nil {
		return nil, err
	}
	dto := newLineDTO(*line, item)
	return &dto, nil
}

func (s *service) upsert(ctx context.Context, userID uuid.UUID, input AddInput) (*models.CartItem, error) {
	now := s.now()
	existing, err := s.repo.FindByUserItem(ctx, userID, input.ItemID)
	switch {
	case err == nil:
		return s.updateQuantity(ctx, existing, input.Quantity, now)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	line := &models.CartItem{
		ID:        uuid.New(),
		UserID:    userID,
		ItemID:    input.ItemID,
		Quantity:  input.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, line); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		// a concurrent add won the insert; fold this request into its line
		existing, findErr := s.repo.FindByUserItem(ctx, userID, input.ItemID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load cart line")
		}
		return s.updateQuantity(ctx, existing, input.Quantity, now)
	}
	return line, nil
}

func (s *service) updateQuantity(ctx context.Context, line *models.CartItem, quantity int, now time.Time) (*models.CartItem, error) {
	if line.Quantity == quantity {
		return line, nil
	}
	line.Quantity = quantity
	if line.BargainStatus != nil && *line.BargainStatus != enums.BargainStatusAccepted {
		line.ClearBargain()
	}
	line.UpdatedAt = now
	if err := s.repo.Save(ctx, line); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	return line, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	lines, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
	}
	items, err := s.itemsFor(ctx, lines)
	if err != nil {
		return nil, err
	}

	out := &CartDTO{Items: []LineDTO{}, SavedForLater: []LineDTO{}}
	for _, line := range lines {
		var item *models.Item
		if found, ok := items[line.ItemID]; ok {
			item = &found
		}
		dto := newLineDTO(line, item)
		if line.SavedForLater {
			out.SavedForLater = append(out.SavedForLater, dto)
			continue
		}
		out.Items = append(out.Items, dto)
		out.SubtotalCents += dto.LineTotalCents
	}
	out.Subtotal = types.FormatCents(out.SubtotalCents)
	return out, nil
}

func (s *service) Remove(ctx context.Context, userID, lineID uuid.UUID) error {
	ok, err := s.repo.DeleteOwned(ctx, userID, lineID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	return nil
}

func (s *service) SaveForLater(ctx context.Context, userID, lineID uuid.UUID, saved bool) error {
	ok, err := s.repo.SetSavedForLater(ctx, userID, lineID, saved, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	return nil
}

func (s *service) Bargain(ctx context.Context, userID, lineID uuid.UUID, input BargainInput) (*LineDTO, error) {
	line, err := s.loadLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	item, err := s.loadItem(ctx, line.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "item is not available")
	}
	if input.PriceCents < 0 || input.PriceCents >= item.PriceCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bargain price must be below the list price").
			WithDetails(map[string]any{"list_price_cents": item.PriceCents})
	}
	if line.BargainStatus != nil && *line.BargainStatus == enums.BargainStatusAccepted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bargain already accepted")
	}
	message := strings.TrimSpace(input.Message)
	if len(message) > maxBargainMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("message must be at most %d characters", maxBargainMessageLength))
	}

	now := s.now()
	price := input.PriceCents
	status := enums.BargainStatusPending
	line.BargainPriceCents = &price
	line.BargainStatus = &status
	line.BargainRespondedAt = nil
	line.BargainMessage = nil
	if message != "" {
		line.BargainMessage = &message
	}
	line.UpdatedAt = now

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.ProposeBargain(ctx, userID, line.ID, price, line.BargainMessage, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save bargain")
		}
		if !ok {
			// Either the line was removed or the seller accepted after the read above.
			if _, err := repo.FindLine(ctx, line.ID); errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bargain already accepted")
		}
		return s.emitBargain(ctx, tx, enums.EventBargainProposed, *line, *item, userID, "buyer", now)
	})
	if err != nil {
		return nil, err
	}
	dto := newLineDTO(*line, item)
	return &dto, nil
}

func (s *service) RespondBargain(ctx context.Context, sellerID, lineID uuid.UUID, accept bool) (*LineDTO, error) {
	line, err := s.loadLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	item, err := s.loadItem(ctx, line.ItemID)
	if err != nil {
		return nil, err
	}
	switch {
	case line.UserID == sellerID:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can respond to a bargain")
	case item.SellerID != sellerID:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bargain not found")
	case line.BargainStatus == nil || *line.BargainStatus != enums.BargainStatusPending:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bargain is not pending")
	}

	status := enums.BargainStatusRejected
	if accept {
		status = enums.BargainStatusAccepted
	}
	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).RespondBargain(ctx, line.ID, status, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "respond to bargain")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "bargain is not pending")
		}
		line.BargainStatus = &status
		line.BargainRespondedAt = &now
		line.UpdatedAt = now
		return s.emitBargain(ctx, tx, enums.EventBargainResponded, *line, *item, sellerID, "seller", now)
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"line_id": line.ID.String(), "bargain_status": status.String()})
		s.logg.Info(logCtx, "bargain resolved")
	}
	dto := newLineDTO(*line, item)
	return &dto, nil
}

func (s *service) IncomingBargains(ctx context.Context, sellerID uuid.UUID) ([]IncomingBargainDTO, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	lines, err := s.repo.PendingBargainsForSeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list incoming bargains")
	}
	items, err := s.itemsFor(ctx, lines)
	if err != nil {
		return nil, err
	}
	out := make([]IncomingBargainDTO, 0, len(lines))
	for _, line := range lines {
		bargain := newBargainDTO(line)
		if bargain == nil {
			continue
		}
		dto := IncomingBargainDTO{
			LineID:    line.ID,
			BuyerID:   line.UserID,
			Quantity:  line.Quantity,
			Bargain:   *bargain,
			CreatedAt: line.CreatedAt,
		}
		if item, ok := items[line.ItemID]; ok {
			dto.Item = newItemSnapshot(item)
		}
		out = append(out, dto)
	}
	return out, nil
}

func (s *service) emitBargain(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, line models.CartItem, item models.Item, actorID uuid.UUID, role string, now time.Time) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateCartItem,
		AggregateID:   line.ID,
		Version:       1,
		OccurredAt:    now,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: role},
		Data: payloads.BargainEvent{
			CartItemID: line.ID,
			ItemID:     item.ID,
			BuyerID:    line.UserID,
			SellerID:   item.SellerID,
			PriceCents: *line.BargainPriceCents,
			Status:     *line.BargainStatus,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue bargain event")
	}
	return nil
}

func (s *service) itemsFor(ctx context.Context, lines []models.CartItem) (map[uuid.UUID]models.Item, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return items, nil
}

func (s *service) loadLine(ctx context.Context, lineID uuid.UUID) (*models.CartItem, error) {
	if lineID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line id required")
	}
	line, err := s.repo.FindLine(ctx, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	return line, nil
}

func (s *service) loadItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}
