// Package dbtest 为测试提供独立的内存 SQLite；不被服务进程引用。
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 打开一个独立的内存 SQLite 并执行 migrate。
// 连接池只保留一条连接，并发事务会在池上排队。
func Open(t testing.TB, migrate func(*gorm.DB) error) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if migrate != nil {
		if err := migrate(conn); err != nil {
			t.Fatalf("migrate test db: %v", err)
		}
	}
	return conn
}
