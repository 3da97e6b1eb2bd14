// controllers/srv.go
package controllers

import (
	"errors"
	"net/http"

	"supplyhub/app"
	"supplyhub/db"
	"supplyhub/scan"
	"supplyhub/session"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Srv struct {
	Repo *db.Repo
	Idem *session.IdemStore
	Cfg  app.Config
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Repo: db.NewRepo(a.DB),
		Idem: session.NewIdemStore(a.RDB, a.Config.IdemTTL),
		Cfg:  a.Config,
	}
}

// respondError maps the error taxonomy onto HTTP. Business-state errors are
// final; only Conflict tells the caller a retry can help.
func respondError(c *gin.Context, err error) {
	var invalid *db.InvalidBatchError
	var blocked *db.BlockedByOverdueError
	var unavailable *db.BatchUnavailableError
	var shortStock *db.InsufficientStockError
	var shortInst *db.InstanceUnavailableError
	var unknown *scan.UnknownIdentifierError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, app.H{
			"status": "rejected", "errorKind": "InvalidBatch", "error": err.Error(),
		})
	case errors.As(err, &blocked):
		c.JSON(http.StatusConflict, app.H{
			"status": "rejected", "errorKind": "BlockedByOverdue",
			"requesterId": blocked.RequesterID, "error": err.Error(),
		})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusConflict, app.H{
			"status": "rejected", "failedItems": unavailable.Failed, "error": err.Error(),
		})
	case errors.Is(err, db.ErrConflict):
		c.JSON(http.StatusConflict, app.H{
			"status": "rejected", "errorKind": "Conflict", "retryable": true, "error": err.Error(),
		})
	case errors.As(err, &shortStock):
		c.JSON(http.StatusConflict, app.H{
			"errorKind": "InsufficientStock", "supplyId": shortStock.SupplyID,
			"requested": shortStock.Requested, "available": shortStock.Available,
			"error": err.Error(),
		})
	case errors.As(err, &shortInst):
		c.JSON(http.StatusConflict, app.H{
			"errorKind": "InstanceUnavailable", "supplyId": shortInst.SupplyID,
			"requested": shortInst.Requested, "available": shortInst.Available,
			"error": err.Error(),
		})
	case errors.Is(err, db.ErrAlreadyReturned):
		c.JSON(http.StatusConflict, app.H{"errorKind": "AlreadyReturned", "error": err.Error()})
	case errors.Is(err, db.ErrAlreadyLost):
		c.JSON(http.StatusConflict, app.H{"errorKind": "AlreadyLost", "error": err.Error()})
	case errors.As(err, &unknown):
		c.JSON(http.StatusNotFound, app.H{"errorKind": "UnknownIdentifier", "error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, app.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
	}
}
