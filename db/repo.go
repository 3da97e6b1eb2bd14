package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"supplyhub/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

var ErrNotFound = gorm.ErrRecordNotFound

// Supplies

func (r *Repo) CreateSupply(ctx context.Context, s *models.Supply) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *Repo) FindSupplyByID(ctx context.Context, id string) (*models.Supply, error) {
	var s models.Supply
	if err := r.DB.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SupplyRow is a Supply plus its derived availability figures.
type SupplyRow struct {
	models.Supply
	Available  int  `json:"available"`
	IsLowStock bool `json:"isLowStock"`
}

// ListSupplies returns active supplies with availability. For consumables
// availability is quantity - reserved; for equipment it is the count of
// available instances.
func (r *Repo) ListSupplies(ctx context.Context, q string) ([]SupplyRow, error) {
	tx := r.DB.WithContext(ctx).Model(&models.Supply{}).Where("is_active = TRUE")
	if q = strings.TrimSpace(q); q != "" {
		tx = tx.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	var supplies []models.Supply
	if err := tx.Order("name ASC").Find(&supplies).Error; err != nil {
		return nil, err
	}

	rows := make([]SupplyRow, 0, len(supplies))
	for _, s := range supplies {
		row := SupplyRow{Supply: s}
		if s.IsConsumable {
			row.Available = s.Quantity - s.ReservedQuantity
		} else {
			n, err := r.AvailableInstanceCount(ctx, s.ID)
			if err != nil {
				return nil, err
			}
			row.Available = n
		}
		row.IsLowStock = row.Available <= s.MinStockLevel
		rows = append(rows, row)
	}
	return rows, nil
}

// Equipment instances

func (r *Repo) CreateInstance(ctx context.Context, it *models.EquipmentInstance) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	var s models.Supply
	if err := r.DB.WithContext(ctx).First(&s, "id = ?", it.SupplyID).Error; err != nil {
		return err
	}
	if s.IsConsumable {
		return errors.New("supply is consumable, instances not tracked")
	}
	return r.DB.WithContext(ctx).Create(it).Error
}

func (r *Repo) FindInstanceByID(ctx context.Context, id string) (*models.EquipmentInstance, error) {
	var it models.EquipmentInstance
	if err := r.DB.WithContext(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Repo) ListInstances(ctx context.Context, supplyID string) ([]models.EquipmentInstance, error) {
	var its []models.EquipmentInstance
	err := r.DB.WithContext(ctx).
		Where("supply_id = ? AND is_active = TRUE", supplyID).
		Order("id ASC").
		Find(&its).Error
	return its, err
}

// Requests

func (r *Repo) FindRequestByID(ctx context.Context, id string) (*models.SupplyRequest, error) {
	var req models.SupplyRequest
	if err := r.DB.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repo) ListRequestsByRequester(ctx context.Context, requesterID string) ([]models.SupplyRequest, error) {
	var reqs []models.SupplyRequest
	err := r.DB.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("issued_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *Repo) FindBatchGroupByID(ctx context.Context, id string) (*models.BatchGroup, error) {
	var g models.BatchGroup
	if err := r.DB.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// Audit

func (r *Repo) AddScanLog(ctx context.Context, l *models.ScanLog) error {
	return r.DB.WithContext(ctx).Create(l).Error
}

func (r *Repo) ListStockMovements(ctx context.Context, supplyID string, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var ms []models.StockMovement
	err := r.DB.WithContext(ctx).
		Where("supply_id = ?", supplyID).
		Order("created_at DESC").
		Limit(limit).
		Find(&ms).Error
	return ms, err
}

func requestCode(id string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))[:8]
	return "REQ-" + at.Format("20060102") + "-" + suffix
}
