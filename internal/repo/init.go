package repo

import (
	"github.com/KNICEX/coin-status-watcher/internal/entity"
	"gorm.io/gorm"
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(&entity.StatusChange{})
}
