// models/audit.go
package models

import "time"

const StockMovementTable = "gso_stock_movements"
const ScanLogTable = "gso_scan_log"

// Stock movement kinds.
const (
	MovementIssue      = "issue"
	MovementReturn     = "return"
	MovementAdjustment = "adjustment"
)

// StockMovement is an append-only audit row for every stock change.
type StockMovement struct {
	ID         string  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SupplyID   string  `gorm:"type:uuid;index;not null" json:"supplyId"`
	InstanceID *string `gorm:"type:uuid" json:"instanceId,omitempty"`
	RequestID  *string `gorm:"type:uuid" json:"requestId,omitempty"`
	Kind       string  `gorm:"size:20;not null" json:"kind"`
	// Positive for stock in, negative for out.
	Quantity     int       `gorm:"not null" json:"quantity"`
	PrevQuantity int       `gorm:"not null" json:"prevQuantity"`
	NewQuantity  int       `gorm:"not null" json:"newQuantity"`
	RefCode      string    `gorm:"size:100" json:"refCode,omitempty"`
	ActorID      string    `gorm:"type:uuid" json:"actorId,omitempty"`
	Notes        string    `gorm:"size:500" json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ScanLog records every identifier-resolution attempt, successful or not.
type ScanLog struct {
	ID       string  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID  string  `gorm:"type:uuid" json:"actorId"`
	Code     string  `gorm:"size:255;not null" json:"code"`
	Kind     string  `gorm:"size:20" json:"kind,omitempty"`
	EntityID *string `gorm:"type:uuid" json:"entityId,omitempty"`
	Success  bool    `gorm:"not null;default:false" json:"success"`
	Error    string  `gorm:"size:255" json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (StockMovement) TableName() string { return StockMovementTable }
func (ScanLog) TableName() string       { return ScanLogTable }
