package domain

import (
	"time"
)

// AdminLog records one admin write against the catalog
type AdminLog struct {
	ID        int64     `json:"id,string"`
	OprName   string    `gorm:"size:100" json:"opr_name"`
	OprIp     string    `gorm:"size:64" json:"opr_ip"`
	OptAction string    `gorm:"size:64;index" json:"opt_action"`
	OptDesc   string    `gorm:"type:text" json:"opt_desc"`
	OptTime   time.Time `gorm:"index" json:"opt_time"`
}

// TableName Specify table name
func (AdminLog) TableName() string {
	return "admin_log"
}
