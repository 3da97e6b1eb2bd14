// db/repo_lifecycle.go
package db

import (
	"context"
	"fmt"
	"time"

	"supplyhub/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecordReturnInput struct {
	BorrowedItemID string
	ReceivedBy     string
	// good (default) or damaged; lost goes through MarkLost only.
	Condition string
	Notes     string
}

type ReturnResult struct {
	Item          models.BorrowedItem  `json:"item"`
	Request       models.SupplyRequest `json:"request"`
	Group         *models.BatchGroup   `json:"batchGroup,omitempty"`
	GroupComplete bool                 `json:"groupComplete"`
	RemainingOpen int                  `json:"remainingOpen"`
}

// RecordReturn closes one borrowed item and re-evaluates its completion
// scope (the batch group, or the request when the loan was ungrouped).
// The sibling count and the status flip happen inside one critical section
// per scope: the scope row is locked before either.
func (r *Repo) RecordReturn(ctx context.Context, in RecordReturnInput) (*ReturnResult, error) {
	cond := in.Condition
	if cond == "" {
		cond = models.ReturnGood
	}
	if cond != models.ReturnGood && cond != models.ReturnDamaged {
		return nil, fmt.Errorf("return condition %q not allowed here", cond)
	}

	var out ReturnResult
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bi, err := lockBorrowedItem(tx, in.BorrowedItemID)
		if err != nil {
			return err
		}
		if bi.ReturnStatus == models.ReturnLost {
			return ErrAlreadyLost
		}
		if bi.ReturnedAt != nil {
			return ErrAlreadyReturned
		}

		if err := lockScope(tx, bi); err != nil {
			return err
		}

		now := time.Now().UTC()
		received := in.ReceivedBy
		updates := map[string]any{
			"returned_at":   now,
			"return_status": cond,
			"return_notes":  in.Notes,
		}
		if received != "" {
			updates["received_by"] = received
		}
		if err := tx.Model(&models.BorrowedItem{}).
			Where("id = ?", bi.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		bi.ReturnedAt = &now
		bi.ReturnStatus = cond

		// damaged units go to maintenance instead of back on the shelf
		instStatus := models.InstanceReturned
		if cond == models.ReturnDamaged {
			instStatus = models.InstanceMaintenance
		}
		if err := tx.Model(&models.EquipmentInstance{}).
			Where("id = ? AND status = ?", bi.InstanceID, models.InstanceIssued).
			Updates(map[string]any{
				"status":           instStatus,
				"last_returned_at": now,
			}).Error; err != nil {
			return err
		}

		if err := r.logReturnMovement(tx, bi, now); err != nil {
			return err
		}

		return r.completeScope(tx, bi, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type MarkLostInput struct {
	BorrowedItemID string
	ActorID        string
	Notes          string
}

// MarkLost is the administrative terminal transition. The item counts as
// closed for batch completion; the instance never returns to the pool.
func (r *Repo) MarkLost(ctx context.Context, in MarkLostInput) (*ReturnResult, error) {
	var out ReturnResult
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bi, err := lockBorrowedItem(tx, in.BorrowedItemID)
		if err != nil {
			return err
		}
		if bi.ReturnStatus == models.ReturnLost {
			return ErrAlreadyLost
		}
		if bi.ReturnedAt != nil {
			return ErrAlreadyReturned
		}

		if err := lockScope(tx, bi); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.BorrowedItem{}).
			Where("id = ?", bi.ID).
			Updates(map[string]any{
				"returned_at":   now,
				"return_status": models.ReturnLost,
				"return_notes":  in.Notes,
				"received_by":   in.ActorID,
			}).Error; err != nil {
			return err
		}
		bi.ReturnedAt = &now
		bi.ReturnStatus = models.ReturnLost

		if err := tx.Model(&models.EquipmentInstance{}).
			Where("id = ?", bi.InstanceID).
			Update("status", models.InstanceLost).Error; err != nil {
			return err
		}

		var inst models.EquipmentInstance
		if err := tx.First(&inst, "id = ?", bi.InstanceID).Error; err != nil {
			return err
		}
		mv := models.StockMovement{
			SupplyID:   inst.SupplyID,
			InstanceID: &bi.InstanceID,
			RequestID:  &bi.RequestID,
			Kind:       models.MovementAdjustment,
			Quantity:   -1,
			ActorID:    in.ActorID,
			Notes:      "written off as lost",
		}
		var s models.Supply
		if err := tx.First(&s, "id = ?", inst.SupplyID).Error; err != nil {
			return err
		}
		mv.PrevQuantity = s.Quantity
		mv.NewQuantity = s.Quantity
		if err := tx.Create(&mv).Error; err != nil {
			return err
		}

		return r.completeScope(tx, bi, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func lockBorrowedItem(tx *gorm.DB, id string) (*models.BorrowedItem, error) {
	var bi models.BorrowedItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&bi, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bi, nil
}

// lockScope takes the per-group (or per-request) row lock that makes the
// sibling count and the status flip one critical section.
func lockScope(tx *gorm.DB, bi *models.BorrowedItem) error {
	if bi.BatchGroupID != nil {
		var g models.BatchGroup
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&g, "id = ?", *bi.BatchGroupID).Error
	}
	var req models.SupplyRequest
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", bi.RequestID).Error
}

// completeScope recomputes the request status, then the group status, and
// releases returned instances back to available once the scope is done.
func (r *Repo) completeScope(tx *gorm.DB, bi *models.BorrowedItem, out *ReturnResult) error {
	var openForRequest int64
	if err := tx.Model(&models.BorrowedItem{}).
		Where("request_id = ? AND returned_at IS NULL", bi.RequestID).
		Count(&openForRequest).Error; err != nil {
		return err
	}
	reqStatus := models.RequestPartiallyReturned
	if openForRequest == 0 {
		reqStatus = models.RequestReturned
	}
	if err := tx.Model(&models.SupplyRequest{}).
		Where("id = ?", bi.RequestID).
		Update("status", reqStatus).Error; err != nil {
		return err
	}

	if bi.BatchGroupID == nil {
		if openForRequest == 0 {
			if err := releaseReturnedInstances(tx, "request_id = ?", bi.RequestID); err != nil {
				return err
			}
			out.GroupComplete = true
		}
		out.RemainingOpen = int(openForRequest)
		return loadReturnResult(tx, bi, out)
	}

	groupID := *bi.BatchGroupID
	var openForGroup int64
	if err := tx.Model(&models.BorrowedItem{}).
		Where("batch_group_id = ? AND returned_at IS NULL", groupID).
		Count(&openForGroup).Error; err != nil {
		return err
	}
	status := models.BatchPartial
	if openForGroup == 0 {
		status = models.BatchReturned
	}
	if err := tx.Model(&models.BatchGroup{}).
		Where("id = ?", groupID).
		Update("status", status).Error; err != nil {
		return err
	}
	if openForGroup == 0 {
		if err := releaseReturnedInstances(tx, "batch_group_id = ?", groupID); err != nil {
			return err
		}
		out.GroupComplete = true
	}
	out.RemainingOpen = int(openForGroup)
	return loadReturnResult(tx, bi, out)
}

// releaseReturnedInstances flips this scope's "returned" instances back to
// available. Damaged (maintenance) and lost units stay where they are.
func releaseReturnedInstances(tx *gorm.DB, scopeCond string, scopeArg any) error {
	sub := tx.Model(&models.BorrowedItem{}).Select("instance_id").Where(scopeCond, scopeArg)
	return tx.Model(&models.EquipmentInstance{}).
		Where("id IN (?) AND status = ?", sub, models.InstanceReturned).
		Update("status", models.InstanceAvailable).Error
}

func (r *Repo) logReturnMovement(tx *gorm.DB, bi *models.BorrowedItem, at time.Time) error {
	var inst models.EquipmentInstance
	if err := tx.First(&inst, "id = ?", bi.InstanceID).Error; err != nil {
		return err
	}
	var s models.Supply
	if err := tx.First(&s, "id = ?", inst.SupplyID).Error; err != nil {
		return err
	}
	mv := models.StockMovement{
		SupplyID:     inst.SupplyID,
		InstanceID:   &bi.InstanceID,
		RequestID:    &bi.RequestID,
		Kind:         models.MovementReturn,
		Quantity:     1,
		PrevQuantity: s.Quantity,
		NewQuantity:  s.Quantity,
		ActorID:      bi.BorrowerID,
		CreatedAt:    at,
	}
	return tx.Create(&mv).Error
}

func loadReturnResult(tx *gorm.DB, bi *models.BorrowedItem, out *ReturnResult) error {
	if err := tx.First(&out.Item, "id = ?", bi.ID).Error; err != nil {
		return err
	}
	if err := tx.First(&out.Request, "id = ?", bi.RequestID).Error; err != nil {
		return err
	}
	if bi.BatchGroupID != nil {
		var g models.BatchGroup
		if err := tx.First(&g, "id = ?", *bi.BatchGroupID).Error; err != nil {
			return err
		}
		out.Group = &g
	}
	return nil
}

func (r *Repo) FindBorrowedItemByID(ctx context.Context, id string) (*models.BorrowedItem, error) {
	var bi models.BorrowedItem
	if err := r.DB.WithContext(ctx).First(&bi, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bi, nil
}

// ListLoans filters borrowed items by borrower, instance and open state.
func (r *Repo) ListLoans(ctx context.Context, borrowerID, instanceID, status string) ([]models.BorrowedItem, error) {
	q := r.DB.WithContext(ctx).Model(&models.BorrowedItem{}).Order("issued_at DESC")
	if borrowerID != "" {
		q = q.Where("borrower_id = ?", borrowerID)
	}
	if instanceID != "" {
		q = q.Where("instance_id = ?", instanceID)
	}
	if status == "open" {
		q = q.Where("returned_at IS NULL")
	} else if status == "returned" {
		q = q.Where("returned_at IS NOT NULL")
	}
	var items []models.BorrowedItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// BatchReturnRow is one line of a batch return-status report.
type BatchReturnRow struct {
	BorrowedItemID string     `json:"borrowedItemId"`
	InstanceID     string     `json:"instanceId"`
	InstanceCode   string     `json:"instanceCode"`
	SupplyName     string     `json:"supplyName"`
	DueAt          time.Time  `json:"dueAt"`
	ReturnedAt     *time.Time `json:"returnedAt,omitempty"`
	ReturnStatus   string     `json:"returnStatus"`
	Overdue        bool       `json:"overdue"`
}

type BatchReturnStatus struct {
	BatchGroupID string           `json:"batchGroupId"`
	Status       string           `json:"status"`
	TotalItems   int              `json:"totalItems"`
	Returned     int              `json:"returnedItems"`
	Pending      int              `json:"pendingItems"`
	AllReturned  bool             `json:"allReturned"`
	Items        []BatchReturnRow `json:"items"`
}

func (r *Repo) BatchReturnStatus(ctx context.Context, batchGroupID string) (*BatchReturnStatus, error) {
	g, err := r.FindBatchGroupByID(ctx, batchGroupID)
	if err != nil {
		return nil, err
	}

	var rows []BatchReturnRow
	err = r.DB.WithContext(ctx).
		Table(models.BorrowedItemTable+" b").
		Select(`
			b.id AS borrowed_item_id,
			b.instance_id,
			i.instance_code,
			s.name AS supply_name,
			b.due_at,
			b.returned_at,
			b.return_status,
			CASE WHEN b.returned_at IS NULL AND b.due_at < NOW() THEN TRUE ELSE FALSE END AS overdue
		`).
		Joins("JOIN "+models.InstanceTable+" i ON i.id = b.instance_id").
		Joins("JOIN "+models.SupplyTable+" s ON s.id = i.supply_id").
		Where("b.batch_group_id = ?", batchGroupID).
		Order("b.issued_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	returned := 0
	for _, row := range rows {
		if row.ReturnedAt != nil {
			returned++
		}
	}
	return &BatchReturnStatus{
		BatchGroupID: g.ID,
		Status:       g.Status,
		TotalItems:   len(rows),
		Returned:     returned,
		Pending:      len(rows) - returned,
		AllReturned:  len(rows) == returned,
		Items:        rows,
	}, nil
}
