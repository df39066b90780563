// db/repo_transaction.go
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Gin_postgres_redis_marketplace/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transaction Ledger
//
// 每个操作都在一个数据库事务内完成：交易状态、物品状态、审计记录三者一起提交或一起回滚。

// CreateTransaction: 锁住 item → CAS 占用 → 新建交易 → 写审计
func (r *Repo) CreateTransaction(ctx context.Context, itemID, buyerID string) (*models.Transaction, error) {
	if err := checkID(itemID, "item"); err != nil {
		return nil, err
	}
	var out *models.Transaction
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.Item
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&it, "id = ?", itemID).Error; err != nil {
			return notFound(err, "item")
		}
		if it.OwnerID == buyerID {
			return fmt.Errorf("request own item: %w", models.ErrForbidden)
		}
		if it.Status != models.ItemAvailable {
			return fmt.Errorf("item %s is %s: %w", it.ID, it.Status, models.ErrConflict)
		}
		if err := r.MarkPending(ctx, tx, it.ID); err != nil {
			return err
		}

		now := time.Now().UTC()
		t := &models.Transaction{
			ID:              uuid.NewString(),
			ItemID:          it.ID,
			BuyerID:         buyerID,
			SellerID:        it.OwnerID,
			TransactionType: it.TransactionType,
			Status:          models.StatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Create(t).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("item %s already has an active transaction: %w", it.ID, models.ErrConflict)
			}
			return err
		}
		if err := r.appendAudit(ctx, tx, &models.AuditEntry{
			TransactionID: t.ID,
			Action:        models.ActionCreate,
			ToStatus:      models.StatusPending,
			ActorID:       buyerID,
			CreatedAt:     now,
		}); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type TransitionInput struct {
	TransactionID string
	ActorID       string
	Action        models.Action
	Notes         *string
	// 可选：在状态变更前写入 pickup / dispute 等字段
	Apply func(t *models.Transaction)
}

// Transition 执行一次状态转移，返回更新后的交易和本次写入的审计记录。
// 非法转移返回 ErrInvalidTransition，且不产生任何写入。
func (r *Repo) Transition(ctx context.Context, in TransitionInput) (*models.Transaction, *models.AuditEntry, error) {
	if err := checkID(in.TransactionID, "transaction"); err != nil {
		return nil, nil, err
	}
	var t models.Transaction
	var entry *models.AuditEntry
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&t, "id = ?", in.TransactionID).Error; err != nil {
			return notFound(err, "transaction")
		}
		from := t.Status
		next, err := t.Next(in.Action)
		if err != nil {
			return err
		}
		if in.Apply != nil {
			in.Apply(&t)
		}
		now := time.Now().UTC()
		t.Status = next
		t.UpdatedAt = now

		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ?", t.ID, from).
			Updates(map[string]any{
				"status":          t.Status,
				"pickup_at":       t.PickupAt,
				"pickup_location": t.PickupLocation,
				"dispute_reason":  t.DisputeReason,
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("transaction %s changed concurrently: %w", t.ID, models.ErrConflict)
		}

		entry = &models.AuditEntry{
			TransactionID: t.ID,
			Action:        in.Action,
			FromStatus:    from,
			ToStatus:      next,
			ActorID:       in.ActorID,
			Notes:         in.Notes,
			CreatedAt:     now,
		}
		if err := r.appendAudit(ctx, tx, entry); err != nil {
			return err
		}
		return r.applyItemEffect(ctx, tx, &t)
	})
	if err != nil {
		return nil, nil, err
	}
	return &t, entry, nil
}

// applyItemEffect 根据交易进入的状态更新物品可见性
func (r *Repo) applyItemEffect(ctx context.Context, tx *gorm.DB, t *models.Transaction) error {
	switch t.Status {
	case models.StatusRejected, models.StatusCancelled:
		return r.Release(ctx, tx, t.ItemID)
	case models.StatusCompleted:
		if t.TransactionType == models.TypeLend {
			return r.Release(ctx, tx, t.ItemID)
		}
		return r.MarkUnavailable(ctx, tx, t.ItemID)
	case models.StatusDisputed:
		return r.MarkUnavailable(ctx, tx, t.ItemID)
	}
	return nil
}

func (r *Repo) FindTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	if err := checkID(id, "transaction"); err != nil {
		return nil, err
	}
	var t models.Transaction
	if err := r.DB.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "transaction")
	}
	return &t, nil
}

// ListMine 当前用户作为买方 / 卖方的交易，最新在前
func (r *Repo) ListMine(ctx context.Context, userID string) (asBuyer, asSeller []models.Transaction, err error) {
	asBuyer = []models.Transaction{}
	asSeller = []models.Transaction{}
	if err = r.DB.WithContext(ctx).
		Where("buyer_id = ?", userID).
		Order("created_at DESC").
		Find(&asBuyer).Error; err != nil {
		return nil, nil, err
	}
	if err = r.DB.WithContext(ctx).
		Where("seller_id = ?", userID).
		Order("created_at DESC").
		Find(&asSeller).Error; err != nil {
		return nil, nil, err
	}
	return asBuyer, asSeller, nil
}
