// models/borrowed.go
package models

import "time"

const BorrowedItemTable = "gso_borrowed_items"

// Return conditions recorded when an item comes back.
const (
	ReturnPending = "pending"
	ReturnGood    = "good"
	ReturnDamaged = "damaged"
	ReturnLost    = "lost"
)

// BorrowedItem records one equipment instance on loan against one request.
// Created exactly once at issue; returned_at is set exactly once.
type BorrowedItem struct {
	ID           string  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID    string  `gorm:"type:uuid;index;not null" json:"requestId"`
	BatchGroupID *string `gorm:"type:uuid;index" json:"batchGroupId,omitempty"`
	InstanceID   string  `gorm:"type:uuid;index;not null" json:"instanceId"`
	BorrowerID   string  `gorm:"type:uuid;index;not null" json:"borrowerId"`

	IssuedAt time.Time `gorm:"not null" json:"issuedAt"`
	DueAt    time.Time `gorm:"not null;index" json:"dueAt"`

	ReturnedAt   *time.Time `gorm:"index" json:"returnedAt,omitempty"`
	ReturnStatus string     `gorm:"size:20;not null;default:'pending'" json:"returnStatus"`
	ReturnNotes  string     `gorm:"size:500" json:"returnNotes,omitempty"`
	ReceivedBy   *string    `gorm:"type:uuid" json:"receivedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (BorrowedItem) TableName() string { return BorrowedItemTable }
