package datastore

import "time"

// User is a registered account. Password holds a hash, never plaintext.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName pins the table name.
func (User) TableName() string { return "users" }

// HistoryEntry records one classification made by a user.
type HistoryEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index:idx_history_user_date,priority:1;not null" json:"user_id"`
	User       User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Image      string    `gorm:"size:255;not null" json:"image"`
	Prediction string    `gorm:"size:255;not null" json:"prediction"`
	Date       time.Time `gorm:"type:datetime;index:idx_history_user_date,priority:2;not null;default:CURRENT_TIMESTAMP" json:"date"`
}

// TableName pins the table name.
func (HistoryEntry) TableName() string { return "history" }
