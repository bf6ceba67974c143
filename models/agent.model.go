package models

import (
	"time"

	"gorm.io/gorm"
)

// Agent is a sales agent or supervisor who works proposals.
type Agent struct {
	gorm.Model
	Name                string     `gorm:"default:''" json:"name"`
	Email               string     `gorm:"unique;not null" json:"email"`
	Mobile              string     `gorm:"default:''" json:"mobile"`
	Role                string     `gorm:"default:'AGENT'" json:"role"` // AGENT or SUPERVISOR
	Password            string     `gorm:"not null" json:"-"`
	LastLogin           *time.Time `json:"lastLogin"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LastFailedLogin     *time.Time `json:"-"`
	IsBlocked           bool       `gorm:"default:false" json:"isBlocked"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	IsDeleted           bool       `gorm:"default:false" json:"-"`
}
