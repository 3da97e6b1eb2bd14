// controllers/scan_controller.go
package controllers

import (
	"net/http"

	"supplyhub/app"
	"supplyhub/models"
	"supplyhub/scan"

	"github.com/gin-gonic/gin"
)

type ScanController struct{ *Srv }

func NewScanController(s *Srv) *ScanController { return &ScanController{Srv: s} }

// Scan resolves an opaque scanned code to an entity reference. Every
// attempt, good or bad, leaves a scan-log row behind.
func (sc *ScanController) Scan(c *gin.Context) {
	var in struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	actor := app.RequesterID(c)

	logRow := models.ScanLog{ActorID: actor, Code: in.Code}

	ref, err := scan.Parse(in.Code)
	if err != nil {
		logRow.Error = err.Error()
		_ = sc.Repo.AddScanLog(c.Request.Context(), &logRow)
		respondError(c, err)
		return
	}

	resolved, err := sc.Repo.ResolveRef(c.Request.Context(), ref)
	if err != nil {
		logRow.Kind = ref.Kind
		logRow.Error = err.Error()
		_ = sc.Repo.AddScanLog(c.Request.Context(), &logRow)
		respondError(c, err)
		return
	}

	logRow.Kind = resolved.Kind
	logRow.EntityID = &resolved.ID
	logRow.Success = true
	_ = sc.Repo.AddScanLog(c.Request.Context(), &logRow)

	c.JSON(http.StatusOK, resolved)
}
