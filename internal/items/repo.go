package items

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	"github.com/campusmart/campusmart-backend/pkg/pagination"
)

// ListQuery is the repository-level search over listings.
type ListQuery struct {
	Query         string
	Category      *enums.ItemCategory
	SellerID      *uuid.UUID
	MinPriceCents *int
	MaxPriceCents *int
	AvailableOnly bool
	Limit         int
	Cursor        *pagination.Cursor
}

// Repository persists catalog items.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a catalog repository to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDs loads the listed items keyed by id. Missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	out := make(map[uuid.UUID]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *Repository) Save(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Item{}).Error
}

// DeleteCartLines drops every cart line pointing at the item.
func (r *Repository) DeleteCartLines(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("item_id = ?", itemID).Delete(&models.CartItem{}).Error
}

// CountOrders counts orders on the item in the given status.
func (r *Repository) CountOrders(ctx context.Context, itemID uuid.UUID, status enums.OrderStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("item_id = ? AND status = ?", itemID, status).
		Count(&count).Error
	return count, err
}

func (r *Repository) List(ctx context.Context, query ListQuery) ([]models.Item, error) {
	q := r.db.WithContext(ctx).Model(&models.Item{})
	if term := strings.ToLower(strings.TrimSpace(query.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if query.Category != nil {
		q = r.withCategory(q, *query.Category)
	}
	if query.SellerID != nil {
		q = q.Where("seller_id = ?", *query.SellerID)
	}
	if query.MinPriceCents != nil {
		q = q.Where("price_cents >= ?", *query.MinPriceCents)
	}
	if query.MaxPriceCents != nil {
		q = q.Where("price_cents <= ?", *query.MaxPriceCents)
	}
	if query.AvailableOnly {
		q = q.Where("is_available = ?", true)
	}
	if query.Cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	var rows []models.Item
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) withCategory(q *gorm.DB, category enums.ItemCategory) *gorm.DB {
	if db.IsPostgres(r.db) {
		encoded, _ := json.Marshal([]enums.ItemCategory{category})
		return q.Where("categories @> ?::jsonb", string(encoded))
	}
	return q.Where("categories LIKE ?", `%"`+string(category)+`"%`)
}

// LockForCheckout loads the items inside tx. On Postgres the rows are share-locked so a concurrent
// delivery cannot flip availability until the checkout commits.
func (r *Repository) LockForCheckout(ctx context.Context, tx *gorm.DB, itemIDs []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	conn := r.WithTx(tx).db
	out := make(map[uuid.UUID]models.Item, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	q := conn.WithContext(ctx).Where("id IN ?", itemIDs)
	if db.IsPostgres(conn) {
		q = q.Clauses(clause.Locking{Strength: "SHARE"})
	}
	var rows []models.Item
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// MarkSold flips an available item to unavailable inside tx and reports whether this call did it.
func (r *Repository) MarkSold(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) (bool, error) {
	res := r.WithTx(tx).db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND is_available = ?", itemID, true).
		Updates(map[string]any{
			"is_available": false,
			"updated_at":   time.Now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}
