package models

import "time"

// User is a marketplace participant who can deal and bid on requests.
// Rating only moves through acceptance and dispute outcomes and never drops
// below zero.
type User struct {
	Account          string    `gorm:"column:account;primaryKey"`
	Rating           int64     `gorm:"column:rating;not null;default:0"`
	ExternalDataHash string    `gorm:"column:external_data_hash;type:char(64);not null"`
	PasswordHash     string    `gorm:"column:password_hash;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
