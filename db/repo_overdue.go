// db/repo_overdue.go
package db

import (
	"context"
	"time"

	"supplyhub/models"
)

// HasOverdue is a derived read, recomputed on every call. There is no
// cached flag anywhere: the predicate is true iff the requester holds at
// least one open borrowed item past its due date right now.
func (r *Repo) HasOverdue(ctx context.Context, requesterID string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.BorrowedItem{}).
		Where("borrower_id = ? AND returned_at IS NULL AND due_at < NOW()", requesterID).
		Count(&n).Error
	return n > 0, err
}

// OverdueRow is one overdue loan with enough context for the rejection
// payload and the reporting endpoint.
type OverdueRow struct {
	BorrowedItemID string    `json:"borrowedItemId"`
	InstanceID     string    `json:"instanceId"`
	InstanceCode   string    `json:"instanceCode"`
	SupplyName     string    `json:"supplyName"`
	IssuedAt       time.Time `json:"issuedAt"`
	DueAt          time.Time `json:"dueAt"`
	OverdueDays    int       `json:"overdueDays"`
}

func (r *Repo) ListOverdue(ctx context.Context, requesterID string) ([]OverdueRow, error) {
	var rows []OverdueRow
	err := r.DB.WithContext(ctx).
		Table(models.BorrowedItemTable+" b").
		Select(`
			b.id AS borrowed_item_id,
			b.instance_id,
			i.instance_code,
			s.name AS supply_name,
			b.issued_at,
			b.due_at,
			GREATEST(0, EXTRACT(DAY FROM NOW() - b.due_at))::int AS overdue_days
		`).
		Joins("JOIN "+models.InstanceTable+" i ON i.id = b.instance_id").
		Joins("JOIN "+models.SupplyTable+" s ON s.id = i.supply_id").
		Where("b.borrower_id = ? AND b.returned_at IS NULL AND b.due_at < NOW()", requesterID).
		Order("b.due_at ASC").
		Scan(&rows).Error
	return rows, err
}
