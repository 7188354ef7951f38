package ioc

import (
	"fmt"

	"github.com/KNICEX/coin-status-watcher/internal/repo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 打开 sqlite 并建表, dsn 为文件路径
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err = repo.InitTables(db); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return db, nil
}
