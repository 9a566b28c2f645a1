package models

import "time"

// TokenAccount is a row of the reference token ledger: one fungible balance
// per account in the platform asset, in minor units. Production deployments
// can swap this table for a client of the real ledger behind token.Ledger.
type TokenAccount struct {
	Account   string    `gorm:"column:account;primaryKey"`
	Balance   int64     `gorm:"column:balance;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
