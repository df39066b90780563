package db

import (
	"context"
	"fmt"

	"Gin_postgres_redis_marketplace/models"

	"gorm.io/gorm"
)

// appendAudit 只在 Ledger 的事务内调用
func (r *Repo) appendAudit(ctx context.Context, tx *gorm.DB, e *models.AuditEntry) error {
	if err := r.conn(ctx, tx).Create(e).Error; err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit 按写入顺序返回，最早的在前
func (r *Repo) ListAudit(ctx context.Context, transactionID string) ([]models.AuditEntry, error) {
	if err := checkID(transactionID, "transaction"); err != nil {
		return nil, err
	}
	out := []models.AuditEntry{}
	if err := r.DB.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
