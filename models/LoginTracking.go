package models

import (
	"time"

	"gorm.io/gorm"
)

type LoginTracking struct {
	gorm.Model
	AgentID   uint      `gorm:"index" json:"agentId"`
	IPAddress string    `json:"ipAddress"`
	Device    string    `json:"device"`
	Timestamp time.Time `json:"timestamp"`
}
