// models/request.go
package models

import "time"

const RequestTable = "gso_supply_requests"
const BatchGroupTable = "gso_batch_groups"

// Line-item kinds.
const (
	KindConsumable = "consumable"
	KindEquipment  = "equipment"
)

// Request statuses. Requests are created at commit time, already issued;
// consumable-only requests have nothing to return and close immediately.
const (
	RequestIssued            = "issued"
	RequestPartiallyReturned = "partially_returned"
	RequestReturned          = "returned"
)

// Batch group statuses.
const (
	BatchOpen     = "open"
	BatchPartial  = "partial"
	BatchReturned = "returned"
)

// SupplyRequest is one committed line of a batch.
type SupplyRequest struct {
	ID           string  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestCode  string  `gorm:"size:50;uniqueIndex;not null" json:"requestCode"`
	RequesterID  string  `gorm:"type:uuid;index;not null" json:"requesterId"`
	BatchGroupID *string `gorm:"type:uuid;index" json:"batchGroupId,omitempty"`
	SupplyID     string  `gorm:"type:uuid;index;not null" json:"supplyId"`
	Kind         string  `gorm:"size:20;not null" json:"kind"`
	Quantity     int     `gorm:"not null;default:1" json:"quantity"`
	Purpose      string  `gorm:"size:500" json:"purpose,omitempty"`
	Priority     string  `gorm:"size:10;not null;default:'normal'" json:"priority"`
	Status       string  `gorm:"size:20;not null;index" json:"status"`

	IssuedAt  time.Time `gorm:"not null" json:"issuedAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BatchGroup ties the requests of one multi-line submission together.
// Groups are never deleted; they stay behind as audit.
type BatchGroup struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID string    `gorm:"type:uuid;index;not null" json:"requesterId"`
	Status      string    `gorm:"size:20;not null;default:'open'" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (SupplyRequest) TableName() string { return RequestTable }
func (BatchGroup) TableName() string    { return BatchGroupTable }
