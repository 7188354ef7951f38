package entity

import "time"

// StatusChange 已成功推送的一条状态通知, 仅做审计, 重启后不会用来恢复状态
type StatusChange struct {
	Id        int64  `gorm:"primaryKey;autoIncrement"`
	Coin      string `gorm:"index"`
	Kind      string `gorm:"index"` // initial / change
	Networks  int
	Message   string
	CycleId   string
	CreatedAt time.Time `gorm:"index"`
}

const (
	StatusChangeKindInitial = "initial"
	StatusChangeKindChange  = "change"
)
