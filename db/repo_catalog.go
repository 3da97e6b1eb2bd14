// db/repo_catalog.go
package db

import (
	"context"
	"errors"
	"time"

	"supplyhub/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Availability reads. Lock-free; the dry-run phase works off these and the
// commit phase re-checks under row locks.

func (r *Repo) AvailableStock(ctx context.Context, supplyID string) (int, error) {
	var s models.Supply
	if err := r.DB.WithContext(ctx).
		Select("quantity", "reserved_quantity").
		First(&s, "id = ? AND is_active = TRUE", supplyID).Error; err != nil {
		return 0, err
	}
	return s.Quantity - s.ReservedQuantity, nil
}

func (r *Repo) CheckAvailability(ctx context.Context, supplyID string, qty int) (bool, error) {
	avail, err := r.AvailableStock(ctx, supplyID)
	if err != nil {
		return false, err
	}
	return avail >= qty, nil
}

func (r *Repo) AvailableInstanceCount(ctx context.Context, supplyID string) (int, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.EquipmentInstance{}).
		Where("supply_id = ? AND status = ? AND is_active = TRUE", supplyID, models.InstanceAvailable).
		Count(&n).Error
	return int(n), err
}

// In-transaction primitives. Callers hold the supply row lock (SELECT ...
// FOR UPDATE) before touching stock or instances of that supply.

func lockSupply(tx *gorm.DB, supplyID string) (*models.Supply, error) {
	var s models.Supply
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ? AND is_active = TRUE", supplyID).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// reserveStock bumps reserved_quantity. The conditional WHERE re-checks the
// headroom so a stale read can never push reserved past quantity.
func reserveStock(tx *gorm.DB, s *models.Supply, qty int) error {
	res := tx.Model(&models.Supply{}).
		Where("id = ? AND quantity - reserved_quantity >= ?", s.ID, qty).
		Update("reserved_quantity", gorm.Expr("reserved_quantity + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return &InsufficientStockError{
			SupplyID:  s.ID,
			Requested: qty,
			Available: s.Quantity - s.ReservedQuantity,
		}
	}
	return nil
}

// releaseStock reverses a prior reserveStock (rollback path).
func releaseStock(tx *gorm.DB, supplyID string, qty int) error {
	return tx.Model(&models.Supply{}).
		Where("id = ? AND reserved_quantity >= ?", supplyID, qty).
		Update("reserved_quantity", gorm.Expr("reserved_quantity - ?", qty)).Error
}

// reserveInstances picks count available instances of the supply, ascending
// id for determinism, locks them and flips them to reserved.
func reserveInstances(tx *gorm.DB, supplyID string, count int) ([]models.EquipmentInstance, error) {
	var picked []models.EquipmentInstance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("supply_id = ? AND status = ? AND is_active = TRUE", supplyID, models.InstanceAvailable).
		Order("id ASC").
		Limit(count).
		Find(&picked).Error
	if err != nil {
		return nil, err
	}
	if len(picked) < count {
		return nil, &InstanceUnavailableError{
			SupplyID:  supplyID,
			Requested: count,
			Available: len(picked),
		}
	}
	ids := instanceIDs(picked)
	if err := tx.Model(&models.EquipmentInstance{}).
		Where("id IN ?", ids).
		Update("status", models.InstanceReserved).Error; err != nil {
		return nil, err
	}
	for i := range picked {
		picked[i].Status = models.InstanceReserved
	}
	return picked, nil
}

// releaseInstances reverts reserved instances to available (rollback path).
func releaseInstances(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&models.EquipmentInstance{}).
		Where("id IN ? AND status = ?", ids, models.InstanceReserved).
		Update("status", models.InstanceAvailable).Error
}

// markInstancesIssued finishes the commit path for reserved instances.
func markInstancesIssued(tx *gorm.DB, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&models.EquipmentInstance{}).
		Where("id IN ? AND status = ?", ids, models.InstanceReserved).
		Updates(map[string]any{
			"status":           models.InstanceIssued,
			"last_borrowed_at": at,
		}).Error
}

func instanceIDs(its []models.EquipmentInstance) []string {
	ids := make([]string, 0, len(its))
	for _, it := range its {
		ids = append(ids, it.ID)
	}
	return ids
}

// Administrative corrections. The only path that changes quantity after
// seeding; every change leaves a StockMovement behind.

type AdjustStockInput struct {
	SupplyID string
	Delta    int
	ActorID  string
	Notes    string
}

func (r *Repo) AdjustStock(ctx context.Context, in AdjustStockInput) (*models.Supply, error) {
	var out models.Supply
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := lockSupply(tx, in.SupplyID)
		if err != nil {
			return err
		}
		newQty := s.Quantity + in.Delta
		if newQty < s.ReservedQuantity {
			return &InsufficientStockError{
				SupplyID:  s.ID,
				Requested: -in.Delta,
				Available: s.Quantity - s.ReservedQuantity,
			}
		}
		if err := tx.Model(&models.Supply{}).
			Where("id = ?", s.ID).
			Update("quantity", newQty).Error; err != nil {
			return err
		}
		mv := models.StockMovement{
			SupplyID:     s.ID,
			Kind:         models.MovementAdjustment,
			Quantity:     in.Delta,
			PrevQuantity: s.Quantity,
			NewQuantity:  newQty,
			ActorID:      in.ActorID,
			Notes:        in.Notes,
		}
		if err := tx.Create(&mv).Error; err != nil {
			return err
		}
		out = *s
		out.Quantity = newQty
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

var errInstanceBusy = errors.New("instance has an open loan")

// SetInstanceStatus is the admin override for maintenance/retired moves and
// for putting a serviced unit back on the shelf. Issued units must go
// through the return flow instead.
func (r *Repo) SetInstanceStatus(ctx context.Context, instanceID, status string) (*models.EquipmentInstance, error) {
	switch status {
	case models.InstanceAvailable, models.InstanceMaintenance, models.InstanceRetired:
	default:
		return nil, errors.New("status not settable: " + status)
	}

	var out models.EquipmentInstance
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.EquipmentInstance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&it, "id = ?", instanceID).Error; err != nil {
			return err
		}
		if it.Status == models.InstanceIssued || it.Status == models.InstanceReserved {
			return errInstanceBusy
		}
		if err := tx.Model(&models.EquipmentInstance{}).
			Where("id = ?", it.ID).
			Update("status", status).Error; err != nil {
			return err
		}
		it.Status = status
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
