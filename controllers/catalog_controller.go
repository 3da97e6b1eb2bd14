// controllers/catalog_controller.go
package controllers

import (
	"net/http"
	"strconv"

	"supplyhub/app"
	"supplyhub/db"
	"supplyhub/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CatalogController struct{ *Srv }

func NewCatalogController(s *Srv) *CatalogController { return &CatalogController{Srv: s} }

// 管理员登记一个物资条目
func (cc *CatalogController) CreateSupply(c *gin.Context) {
	var in struct {
		Name              string `json:"name" binding:"required"`
		Unit              string `json:"unit"`
		IsConsumable      *bool  `json:"isConsumable"`
		Quantity          int    `json:"quantity"`
		MinStockLevel     int    `json:"minStockLevel"`
		DefaultBorrowDays int    `json:"defaultBorrowDays"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	s := &models.Supply{
		ID:                uuid.NewString(),
		Name:              in.Name,
		Unit:              in.Unit,
		IsConsumable:      true,
		Quantity:          in.Quantity,
		MinStockLevel:     in.MinStockLevel,
		DefaultBorrowDays: in.DefaultBorrowDays,
		IsActive:          true,
	}
	if s.Unit == "" {
		s.Unit = "pcs"
	}
	if in.IsConsumable != nil {
		s.IsConsumable = *in.IsConsumable
	}
	if s.MinStockLevel <= 0 {
		s.MinStockLevel = 5
	}
	if s.DefaultBorrowDays <= 0 {
		s.DefaultBorrowDays = 3
	}
	if err := cc.Repo.CreateSupply(c.Request.Context(), s); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, s)
}

// 管理员登记一台设备实例
func (cc *CatalogController) CreateInstance(c *gin.Context) {
	var in struct {
		SupplyID     string `json:"supplyId" binding:"required"`
		InstanceCode string `json:"instanceCode" binding:"required"`
		SerialNumber string `json:"serialNumber"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	it := &models.EquipmentInstance{
		ID:           uuid.NewString(),
		SupplyID:     in.SupplyID,
		InstanceCode: in.InstanceCode,
		SerialNumber: in.SerialNumber,
		Status:       models.InstanceAvailable,
		IsActive:     true,
	}
	if err := cc.Repo.CreateInstance(c.Request.Context(), it); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

// 列表（含可用量与低库存标记）
func (cc *CatalogController) ListSupplies(c *gin.Context) {
	rows, err := cc.Repo.ListSupplies(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"supplies": rows})
}

func (cc *CatalogController) ListInstances(c *gin.Context) {
	its, err := cc.Repo.ListInstances(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"instances": its})
}

// AdjustStock is the audited administrative quantity correction.
func (cc *CatalogController) AdjustStock(c *gin.Context) {
	var in struct {
		Delta int    `json:"delta" binding:"required"`
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	s, err := cc.Repo.AdjustStock(c.Request.Context(), db.AdjustStockInput{
		SupplyID: c.Param("id"),
		Delta:    in.Delta,
		ActorID:  c.GetHeader(app.RequesterHeader),
		Notes:    in.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (cc *CatalogController) SetInstanceStatus(c *gin.Context) {
	var in struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	it, err := cc.Repo.SetInstanceStatus(c.Request.Context(), c.Param("id"), in.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// 库存流水（审计）
func (cc *CatalogController) ListMovements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	ms, err := cc.Repo.ListStockMovements(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"movements": ms})
}
