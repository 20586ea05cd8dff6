package model

import "time"

// Session stores one exported Telegram account session owned by a bot user.
// Records are append-only: nothing is mutated after creation except IsActive.
type Session struct {
	ID           uint  `gorm:"primaryKey"`
	OwnerID      int64 `gorm:"index"`
	Phone        string
	SessionToken string `gorm:"column:session_token"`
	RemoteUserID int64
	Username     string
	DisplayName  string
	Device       string
	IsActive     bool `gorm:"default:true"`
	CreatedAt    time.Time
}
