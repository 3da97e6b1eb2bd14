// models/supply.go
package models

import "time"

const SupplyTable = "gso_supplies"
const InstanceTable = "gso_equipment_instances"

// Instance lifecycle statuses. "returned" is the window between an item's
// own return and its batch group completing; completion flips it to
// "available" again.
const (
	InstanceAvailable   = "available"
	InstanceReserved    = "reserved"
	InstanceIssued      = "issued"
	InstanceReturned    = "returned"
	InstanceLost        = "lost"
	InstanceMaintenance = "maintenance"
	InstanceRetired     = "retired"
)

// Supply is the catalog template for an inventory item. Consumables are
// tracked purely by quantity; equipment is tracked per EquipmentInstance.
// Invariant (also a schema CHECK): 0 <= reserved_quantity <= quantity.
type Supply struct {
	ID               string `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string `gorm:"size:200;not null" json:"name"`
	Unit             string `gorm:"size:20;not null;default:'pcs'" json:"unit"`
	IsConsumable     bool   `gorm:"not null;default:true" json:"isConsumable"`
	Quantity         int    `gorm:"not null;default:0" json:"quantity"`
	ReservedQuantity int    `gorm:"not null;default:0" json:"reservedQuantity"`
	MinStockLevel    int    `gorm:"not null;default:5" json:"minStockLevel"`
	// Default loan period in days when the request carries no due interval.
	DefaultBorrowDays int  `gorm:"not null;default:3" json:"defaultBorrowDays"`
	IsActive          bool `gorm:"not null;default:true" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EquipmentInstance is one serialized physical unit of an equipment supply.
type EquipmentInstance struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	SupplyID     string `gorm:"type:uuid;index;not null" json:"supplyId"`
	InstanceCode string `gorm:"size:120;uniqueIndex;not null" json:"instanceCode"`
	SerialNumber string `gorm:"size:120" json:"serialNumber,omitempty"`
	Status       string `gorm:"size:20;not null;default:'available';index" json:"status"`
	IsActive     bool   `gorm:"not null;default:true" json:"isActive"`

	LastBorrowedAt *time.Time `json:"lastBorrowedAt,omitempty"`
	LastReturnedAt *time.Time `json:"lastReturnedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Supply) TableName() string            { return SupplyTable }
func (EquipmentInstance) TableName() string { return InstanceTable }
