package models

import "time"

// LockedBalance tracks the minor-unit amount of tokens the escrow ledger
// custodies for an account. Funds never go negative; every debit is guarded
// by a covering-balance precondition before it is applied.
type LockedBalance struct {
	Account   string    `gorm:"column:account;primaryKey"`
	Funds     int64     `gorm:"column:funds;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
