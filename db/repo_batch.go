// db/repo_batch.go
package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"supplyhub/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LineItem is one validated line of a batch submission.
type LineItem struct {
	Kind  string `json:"kind" binding:"required"`
	RefID string `json:"refId" binding:"required"`
	Qty   int    `json:"qty" binding:"required"`
}

type SubmitBatchInput struct {
	RequesterID string
	Items       []LineItem
	// Zero means each supply's default borrow period.
	DueInterval time.Duration
	Purpose     string
	Priority    string
}

type BatchResult struct {
	BatchGroupID *string                `json:"batchGroupId,omitempty"`
	Requests     []models.SupplyRequest `json:"requests"`
	Borrowed     []models.BorrowedItem  `json:"borrowedItems"`
	// True when the batch held no equipment lines and closed at commit.
	Closed bool `json:"closed"`
}

// ValidateItems rejects malformed batches before any I/O happens.
func ValidateItems(items []LineItem) error {
	if len(items) == 0 {
		return &InvalidBatchError{Reason: "no line items"}
	}
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		if it.Kind != models.KindConsumable && it.Kind != models.KindEquipment {
			return &InvalidBatchError{Reason: fmt.Sprintf("line %d: unknown kind %q", i, it.Kind)}
		}
		if it.RefID == "" {
			return &InvalidBatchError{Reason: fmt.Sprintf("line %d: missing refId", i)}
		}
		if it.Qty < 1 {
			return &InvalidBatchError{Reason: fmt.Sprintf("line %d: qty must be >= 1", i)}
		}
		key := it.Kind + ":" + it.RefID
		if seen[key] {
			return &InvalidBatchError{Reason: "duplicate line item " + key}
		}
		seen[key] = true
	}
	return nil
}

// SubmitBatch validates and commits a multi-line request as one unit.
// Contract: overdue gate first, then a lock-free dry run over every line
// (whole batch rejected on any miss, nothing touched), then a single
// transaction that locks the touched supply rows in deterministic order and
// re-checks under lock. A lost race between dry run and commit rolls every
// reservation back and surfaces ErrConflict for the caller to retry.
func (r *Repo) SubmitBatch(ctx context.Context, in SubmitBatchInput) (*BatchResult, error) {
	if err := ValidateItems(in.Items); err != nil {
		return nil, err
	}

	overdue, err := r.HasOverdue(ctx, in.RequesterID)
	if err != nil {
		return nil, err
	}
	if overdue {
		return nil, &BlockedByOverdueError{RequesterID: in.RequesterID}
	}

	failed, err := r.dryRun(ctx, in.Items)
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		return nil, &BatchUnavailableError{Failed: failed}
	}

	var out BatchResult
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.commitBatch(tx, in, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// dryRun checks every line without locks or mutation and reports all
// failures at once, not just the first.
func (r *Repo) dryRun(ctx context.Context, items []LineItem) ([]FailedItem, error) {
	var failed []FailedItem
	for _, it := range items {
		s, err := r.FindSupplyByID(ctx, it.RefID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				failed = append(failed, FailedItem{
					Kind: it.Kind, RefID: it.RefID,
					ErrorKind: KindUnknownSupply, Requested: it.Qty,
				})
				continue
			}
			return nil, err
		}
		switch it.Kind {
		case models.KindConsumable:
			if !s.IsConsumable || !s.IsActive {
				failed = append(failed, FailedItem{
					Kind: it.Kind, RefID: it.RefID,
					ErrorKind: KindUnknownSupply, Requested: it.Qty,
				})
				continue
			}
			avail := s.Quantity - s.ReservedQuantity
			if avail < it.Qty {
				failed = append(failed, FailedItem{
					Kind: it.Kind, RefID: it.RefID,
					ErrorKind: KindInsufficientStock, Requested: it.Qty, Available: avail,
				})
			}
		case models.KindEquipment:
			if s.IsConsumable || !s.IsActive {
				failed = append(failed, FailedItem{
					Kind: it.Kind, RefID: it.RefID,
					ErrorKind: KindUnknownSupply, Requested: it.Qty,
				})
				continue
			}
			n, err := r.AvailableInstanceCount(ctx, it.RefID)
			if err != nil {
				return nil, err
			}
			if n < it.Qty {
				failed = append(failed, FailedItem{
					Kind: it.Kind, RefID: it.RefID,
					ErrorKind: KindInstanceUnavailable, Requested: it.Qty, Available: n,
				})
			}
		}
	}
	return failed, nil
}

func (r *Repo) commitBatch(tx *gorm.DB, in SubmitBatchInput, out *BatchResult) error {
	now := time.Now().UTC()

	// Lock every touched supply row in ascending (kind, refId) order so
	// overlapping batches can never deadlock each other.
	lockOrder := make([]LineItem, len(in.Items))
	copy(lockOrder, in.Items)
	sort.Slice(lockOrder, func(i, j int) bool {
		if lockOrder[i].Kind != lockOrder[j].Kind {
			return lockOrder[i].Kind < lockOrder[j].Kind
		}
		return lockOrder[i].RefID < lockOrder[j].RefID
	})
	supplies := make(map[string]*models.Supply, len(lockOrder))
	for _, it := range lockOrder {
		s, err := lockSupply(tx, it.RefID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// passed the dry run, gone now: lost race
				return ErrConflict
			}
			return err
		}
		supplies[it.RefID] = s
	}

	// Reserve in line-item order, tracking what we took so a mid-batch miss
	// can put everything back before surfacing Conflict.
	type stockReservation struct {
		supplyID string
		qty      int
	}
	var reservedStock []stockReservation
	var reservedInstIDs []string
	undo := func() {
		for _, sr := range reservedStock {
			_ = releaseStock(tx, sr.supplyID, sr.qty)
		}
		_ = releaseInstances(tx, reservedInstIDs)
	}

	instancesByLine := make(map[int][]models.EquipmentInstance)
	var movements []models.StockMovement
	for i, item := range in.Items {
		s := supplies[item.RefID]
		switch item.Kind {
		case models.KindConsumable:
			if err := reserveStock(tx, s, item.Qty); err != nil {
				var short *InsufficientStockError
				if errors.As(err, &short) {
					undo()
					return ErrConflict
				}
				return err
			}
			reservedStock = append(reservedStock, stockReservation{supplyID: s.ID, qty: item.Qty})
			prev := s.Quantity - s.ReservedQuantity
			movements = append(movements, models.StockMovement{
				SupplyID: s.ID, Kind: models.MovementIssue,
				Quantity: -item.Qty, PrevQuantity: prev, NewQuantity: prev - item.Qty,
				ActorID: in.RequesterID,
			})
		case models.KindEquipment:
			picked, err := reserveInstances(tx, s.ID, item.Qty)
			if err != nil {
				var short *InstanceUnavailableError
				if errors.As(err, &short) {
					undo()
					return ErrConflict
				}
				return err
			}
			instancesByLine[i] = picked
			reservedInstIDs = append(reservedInstIDs, instanceIDs(picked)...)
			var remaining int64
			if err := tx.Model(&models.EquipmentInstance{}).
				Where("supply_id = ? AND status = ? AND is_active = TRUE", s.ID, models.InstanceAvailable).
				Count(&remaining).Error; err != nil {
				return err
			}
			movements = append(movements, models.StockMovement{
				SupplyID: s.ID, Kind: models.MovementIssue,
				Quantity: -item.Qty, PrevQuantity: int(remaining) + item.Qty, NewQuantity: int(remaining),
				ActorID: in.RequesterID,
			})
		}
	}

	// Everything reserved; now the bookkeeping rows.
	var group *models.BatchGroup
	var groupID *string
	if len(in.Items) > 1 {
		group = &models.BatchGroup{
			ID:          uuid.NewString(),
			RequesterID: in.RequesterID,
			Status:      models.BatchOpen,
		}
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		groupID = &group.ID
	}

	priority := in.Priority
	if priority == "" {
		priority = "normal"
	}

	for i, item := range in.Items {
		s := supplies[item.RefID]
		req := models.SupplyRequest{
			ID:           uuid.NewString(),
			RequesterID:  in.RequesterID,
			BatchGroupID: groupID,
			SupplyID:     s.ID,
			Kind:         item.Kind,
			Quantity:     item.Qty,
			Purpose:      in.Purpose,
			Priority:     priority,
			Status:       models.RequestIssued,
			IssuedAt:     now,
		}
		req.RequestCode = requestCode(req.ID, now)
		if item.Kind == models.KindConsumable {
			// nothing to return; the line closes at commit
			req.Status = models.RequestReturned
		}
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		out.Requests = append(out.Requests, req)

		reqID := req.ID
		for m := range movements {
			if movements[m].SupplyID == s.ID && movements[m].RequestID == nil {
				movements[m].RequestID = &reqID
				movements[m].RefCode = req.RequestCode
			}
		}

		if item.Kind != models.KindEquipment {
			continue
		}
		dueAt := now.Add(in.DueInterval)
		if in.DueInterval <= 0 {
			dueAt = now.Add(time.Duration(s.DefaultBorrowDays) * 24 * time.Hour)
		}
		for _, inst := range instancesByLine[i] {
			bi := models.BorrowedItem{
				ID:           uuid.NewString(),
				RequestID:    req.ID,
				BatchGroupID: groupID,
				InstanceID:   inst.ID,
				BorrowerID:   in.RequesterID,
				IssuedAt:     now,
				DueAt:        dueAt,
				ReturnStatus: models.ReturnPending,
			}
			if err := tx.Create(&bi).Error; err != nil {
				return err
			}
			out.Borrowed = append(out.Borrowed, bi)
		}
	}

	if err := markInstancesIssued(tx, reservedInstIDs, now); err != nil {
		return err
	}
	for _, mv := range movements {
		m := mv
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
	}

	if len(out.Borrowed) == 0 {
		out.Closed = true
		if group != nil {
			if err := tx.Model(&models.BatchGroup{}).
				Where("id = ?", group.ID).
				Update("status", models.BatchReturned).Error; err != nil {
				return err
			}
		}
	}

	out.BatchGroupID = groupID
	return nil
}
