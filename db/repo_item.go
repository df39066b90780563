// db/repo_item.go
package db

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_marketplace/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Item Catalog

func (r *Repo) CreateItem(ctx context.Context, it *models.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.Status = models.ItemAvailable
	return r.DB.WithContext(ctx).Create(it).Error
}

func (r *Repo) FindItemByID(ctx context.Context, id string) (*models.Item, error) {
	if err := checkID(id, "item"); err != nil {
		return nil, err
	}
	var it models.Item
	if err := r.DB.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "item")
	}
	return &it, nil
}

// ListAvailable 只返回当前可被请求的物品
func (r *Repo) ListAvailable(ctx context.Context, f models.ItemFilter) ([]models.Item, error) {
	q := r.DB.WithContext(ctx).Model(&models.Item{}).
		Where("status = ?", models.ItemAvailable).
		Order("created_at DESC")
	if f.MunicipalityID != "" {
		q = q.Where("municipality_id = ?", f.MunicipalityID)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Type != "" {
		q = q.Where("transaction_type = ?", f.Type)
	}
	items := []models.Item{}
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkPending: available -> pending_transaction，CAS 保证并发下只有一个成功
func (r *Repo) MarkPending(ctx context.Context, tx *gorm.DB, itemID string) error {
	return r.casItemStatus(ctx, tx, itemID, models.ItemAvailable, models.ItemPendingTransaction)
}

// Release: pending_transaction -> available；已是 available 时直接成功
func (r *Repo) Release(ctx context.Context, tx *gorm.DB, itemID string) error {
	err := r.casItemStatus(ctx, tx, itemID, models.ItemPendingTransaction, models.ItemAvailable)
	if err == nil {
		return nil
	}
	var it models.Item
	if e := r.conn(ctx, tx).First(&it, "id = ?", itemID).Error; e != nil {
		return notFound(e, "item")
	}
	if it.Status == models.ItemAvailable {
		return nil
	}
	return err
}

// MarkUnavailable 用于售出、捐出或争议冻结
func (r *Repo) MarkUnavailable(ctx context.Context, tx *gorm.DB, itemID string) error {
	return r.casItemStatus(ctx, tx, itemID, models.ItemPendingTransaction, models.ItemUnavailable)
}

// RemoveItem 下架；仅物主，且只能在无进行中交易时
func (r *Repo) RemoveItem(ctx context.Context, itemID, ownerID string) (*models.Item, error) {
	if err := checkID(itemID, "item"); err != nil {
		return nil, err
	}
	var out models.Item
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", itemID).Error; err != nil {
			return notFound(err, "item")
		}
		if out.OwnerID != ownerID {
			return fmt.Errorf("remove item %s: %w", itemID, models.ErrForbidden)
		}
		if err := r.casItemStatus(ctx, tx, itemID, models.ItemAvailable, models.ItemRemoved); err != nil {
			return err
		}
		out.Status = models.ItemRemoved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) casItemStatus(ctx context.Context, tx *gorm.DB, itemID string, from, to models.ItemStatus) error {
	res := r.conn(ctx, tx).Model(&models.Item{}).
		Where("id = ? AND status = ?", itemID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var n int64
	if err := r.conn(ctx, tx).Model(&models.Item{}).Where("id = ?", itemID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", itemID, models.ErrNotFound)
	}
	return fmt.Errorf("item %s is not %s: %w", itemID, from, models.ErrConflict)
}

// OwnerItemRow 物主视角：物品 + 当前进行中的交易（可空）
type OwnerItemRow struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	Category        string                 `json:"category"`
	TransactionType models.TransactionType `json:"transaction_type"`
	MunicipalityID  string                 `json:"municipality_id"`
	Status          models.ItemStatus      `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`

	ActiveTransactionID *string `json:"active_transaction_id,omitempty"`
	BuyerID             *string `json:"buyer_id,omitempty"`
	TransactionStatus   *string `json:"transaction_status,omitempty"`
}

func (r *Repo) ListOwnerItems(ctx context.Context, ownerID string) ([]OwnerItemRow, error) {
	rows := []OwnerItemRow{}
	err := r.DB.WithContext(ctx).
		Table(models.ItemTable+" i").
		Select(`
			i.id, i.title, i.category, i.transaction_type, i.municipality_id, i.status, i.created_at,
			t.id     AS active_transaction_id,
			t.buyer_id,
			t.status AS transaction_status
		`).
		Joins("LEFT JOIN "+models.TransactionTable+" t ON t.item_id = i.id AND t.status IN ?", activeStatuses()).
		Where("i.owner_id = ? AND i.status <> ?", ownerID, models.ItemRemoved).
		Order("i.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
