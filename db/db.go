package db

import (
	"fmt"
	"strings"

	"Gin_postgres_redis_marketplace/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func ConnectDB(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Item{}, &models.Transaction{}, &models.AuditEntry{}); err != nil {
		return err
	}

	// 同一物品最多一条未结束的交易；与 MarkPending 的 CAS 互为兜底
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_active_per_item
	  ON %s (item_id)
	  WHERE status IN (%s);
	`, models.TransactionTable, models.TransactionTable, quotedActiveStatuses())).Error; err != nil {
		return err
	}

	// 审计按交易顺序读取
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_tx_seq
	  ON %s (transaction_id, id);
	`, models.AuditTable, models.AuditTable)).Error; err != nil {
		return err
	}
	return nil
}

func quotedActiveStatuses() string {
	parts := make([]string, 0, len(models.ActiveStatuses))
	for _, s := range models.ActiveStatuses {
		parts = append(parts, "'"+string(s)+"'")
	}
	return strings.Join(parts, ",")
}

func activeStatuses() []string {
	out := make([]string, 0, len(models.ActiveStatuses))
	for _, s := range models.ActiveStatuses {
		out = append(out, string(s))
	}
	return out
}
