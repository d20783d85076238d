package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
	"github.com/campusmart/campusmart-backend/pkg/types"
)

const (
	maxNameLength        = 120
	maxDescriptionLength = 4000
	maxImages            = 8
)

// Service exposes listing management and search.
type Service interface {
	Create(ctx context.Context, sellerID uuid.UUID, input CreateInput) (*ItemDTO, error)
	Update(ctx context.Context, sellerID, itemID uuid.UUID, input UpdateInput) (*ItemDTO, error)
	Delete(ctx context.Context, sellerID, itemID uuid.UUID) error
	Get(ctx context.Context, itemID uuid.UUID) (*ItemDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type imageRemover interface {
	Delete(ctx context.Context, publicID string) error
}

type service struct {
	repo   *Repository
	tx     txRunner
	images imageRemover
	logg   *logger.Logger
}

// NewService builds the catalog service. images may be nil when object storage is not configured.
func NewService(repo *Repository, tx txRunner, images imageRemover, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("item repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, images: images, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, sellerID uuid.UUID, input CreateInput) (*ItemDTO, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name, err := validateName(input.Name)
	if err != nil {
		return nil, err
	}
	description, err := validateDescription(input.Description)
	if err != nil {
		return nil, err
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	quantity := defaultQuantity
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}
	categories, err := validateCategories(input.Categories)
	if err != nil {
		return nil, err
	}
	images, err := validateImages(input.Images)
	if err != nil {
		return nil, err
	}

	item := &models.Item{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Name:        name,
		Description: description,
		PriceCents:  input.PriceCents,
		Quantity:    quantity,
		Categories:  categories,
		Images:      images,
		IsAvailable: true,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	dto := NewItemDTO(*item)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, sellerID, itemID uuid.UUID, input UpdateInput) (*ItemDTO, error) {
	item, err := s.loadOwned(ctx, sellerID, itemID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := validateName(*input.Name)
		if err != nil {
			return nil, err
		}
		item.Name = name
	}
	if input.Description != nil {
		description, err := validateDescription(*input.Description)
		if err != nil {
			return nil, err
		}
		item.Description = description
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
		}
		item.PriceCents = *input.PriceCents
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
		}
		item.Quantity = *input.Quantity
	}
	if input.Categories != nil {
		categories, err := validateCategories(*input.Categories)
		if err != nil {
			return nil, err
		}
		item.Categories = categories
	}
	if input.Images != nil {
		images, err := validateImages(*input.Images)
		if err != nil {
			return nil, err
		}
		item.Images = images
	}
	if err := s.repo.Save(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
	}
	dto := NewItemDTO(*item)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, sellerID, itemID uuid.UUID) error {
	var images types.ItemImages
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.loadOwnedWith(ctx, repo, sellerID, itemID)
		if err != nil {
			return err
		}
		pending, err := repo.CountOrders(ctx, item.ID, enums.OrderStatusPending)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending orders")
		}
		if pending > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item has pending orders").
				WithDetails(map[string]any{"pending_orders": pending})
		}
		if err := repo.DeleteCartLines(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart lines")
		}
		if err := repo.Delete(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
		}
		images = item.Images
		return nil
	})
	if err != nil {
		return err
	}
	s.removeImages(ctx, images)
	return nil
}

func (s *service) Get(ctx context.Context, itemID uuid.UUID) (*ItemDTO, error) {
	item, err := s.load(ctx, s.repo, itemID)
	if err != nil {
		return nil, err
	}
	dto := NewItemDTO(*item)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	limit := pagination.NormalizeLimit(input.Params.Limit)
	query := ListQuery{
		Query:         input.Query,
		SellerID:      input.SellerID,
		MinPriceCents: input.MinPriceCents,
		MaxPriceCents: input.MaxPriceCents,
		AvailableOnly: true,
		Limit:         pagination.LimitWithBuffer(input.Params.Limit),
	}
	if input.AvailableOnly != nil {
		query.AvailableOnly = *input.AvailableOnly
	}
	if strings.TrimSpace(input.Category) != "" {
		category, err := enums.ParseItemCategory(input.Category)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		query.Category = &category
	}
	if query.MinPriceCents != nil && query.MaxPriceCents != nil && *query.MinPriceCents > *query.MaxPriceCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min price exceeds max price")
	}
	if input.Params.Cursor != "" {
		cursor, err := pagination.ParseCursor(input.Params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	result := &ListResult{Items: make([]ItemDTO, 0, len(rows)), Cursor: nextCursor}
	for _, row := range rows {
		result.Items = append(result.Items, NewItemDTO(row))
	}
	return result, nil
}

func (s *service) loadOwned(ctx context.Context, sellerID, itemID uuid.UUID) (*models.Item, error) {
	return s.loadOwnedWith(ctx, s.repo, sellerID, itemID)
}

func (s *service) loadOwnedWith(ctx context.Context, repo *Repository, sellerID, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.load(ctx, repo, itemID)
	if err != nil {
		return nil, err
	}
	if item.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can change this item")
	}
	return item, nil
}

func (s *service) load(ctx context.Context, repo *Repository, itemID uuid.UUID) (*models.Item, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := repo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

func (s *service) removeImages(ctx context.Context, images types.ItemImages) {
	if s.images == nil {
		return
	}
	for _, image := range images {
		if image.PublicID == "" {
			continue
		}
		if err := s.images.Delete(ctx, image.PublicID); err != nil && s.logg != nil {
			logCtx := s.logg.WithField(ctx, "public_id", image.PublicID)
			s.logg.Warn(logCtx, "item image cleanup failed: "+err.Error())
		}
	}
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(name) > maxNameLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	return name, nil
}

func validateDescription(raw string) (string, error) {
	description := strings.TrimSpace(raw)
	if len(description) > maxDescriptionLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	return description, nil
}

func validateCategories(raw []string) (types.ItemCategories, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one category is required")
	}
	parsed, err := enums.ParseItemCategories(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	return types.ItemCategories(parsed), nil
}

func validateImages(raw []types.ItemImage) (types.ItemImages, error) {
	if len(raw) > maxImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d images allowed", maxImages))
	}
	images := make(types.ItemImages, 0, len(raw))
	for _, image := range raw {
		url := strings.TrimSpace(image.URL)
		if url == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "image url is required")
		}
		images = append(images, types.ItemImage{URL: url, PublicID: strings.TrimSpace(image.PublicID)})
	}
	return images, nil
}
