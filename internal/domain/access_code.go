package domain

import "time"

// AccessCode 管理员签发的限时访问码。
type AccessCode struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code       string    `json:"code" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiryDays int       `json:"expiryDays" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt" gorm:"index;not null"`
	IsUsed     bool      `json:"isUsed"`
}

// Expired 判断访问码在 now 时刻是否已过期。
func (c *AccessCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Usable 未过期且未被使用。
func (c *AccessCode) Usable(now time.Time) bool {
	return !c.Expired(now) && !c.IsUsed
}
