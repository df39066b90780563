package db

import (
	"context"
	"errors"
	"fmt"

	"Gin_postgres_redis_marketplace/logger"
	"Gin_postgres_redis_marketplace/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct {
	DB  *gorm.DB
	Log *logger.Logger
}

func NewRepo(db *gorm.DB, log *logger.Logger) *Repo {
	return &Repo{DB: db, Log: log.With("component", "repo")}
}

// conn 在事务内用 tx，否则用根连接
func (r *Repo) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		tx = r.DB
	}
	return tx.WithContext(ctx)
}

// notFound 把 gorm 的未找到转换为领域错误
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return err
}

// checkID 拒绝非标准格式的 id；Postgres 的 uuid 列对这类输入直接报 22P02
func checkID(id, what string) error {
	if len(id) != 36 {
		return fmt.Errorf("%s %q: %w", what, id, models.ErrNotFound)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %q: %w", what, id, models.ErrNotFound)
	}
	return nil
}

// Users

func (r *Repo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := checkID(id, "user"); err != nil {
		return nil, err
	}
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
