package models

import "time"

// Juror is an account eligible for random selection on disputes. An account
// registered here can never also appear in the users table.
type Juror struct {
	Account          string    `gorm:"column:account;primaryKey"`
	ExternalDataHash string    `gorm:"column:external_data_hash;type:char(64);not null"`
	PasswordHash     string    `gorm:"column:password_hash;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}
