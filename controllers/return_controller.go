// controllers/return_controller.go
package controllers

import (
	"net/http"

	"supplyhub/app"
	"supplyhub/db"

	"github.com/gin-gonic/gin"
)

type ReturnController struct{ *Srv }

func NewReturnController(s *Srv) *ReturnController { return &ReturnController{Srv: s} }

// Return records one item coming back and reports the updated item plus
// batch progress. Repeat calls fail AlreadyReturned; consumables have no
// return path at all.
func (rc *ReturnController) Return(c *gin.Context) {
	itemID := c.Param("borrowedItemId")
	if itemID == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing borrowed item id"})
		return
	}

	var in struct {
		Condition string `json:"condition"`
		Notes     string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&in)

	res, err := rc.Repo.RecordReturn(c.Request.Context(), db.RecordReturnInput{
		BorrowedItemID: itemID,
		ReceivedBy:     app.RequesterID(c),
		Condition:      in.Condition,
		Notes:          in.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// MarkLost is the administrative write-off; not reachable from the normal
// return flow.
func (rc *ReturnController) MarkLost(c *gin.Context) {
	itemID := c.Param("id")
	var in struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&in)

	res, err := rc.Repo.MarkLost(c.Request.Context(), db.MarkLostInput{
		BorrowedItemID: itemID,
		ActorID:        c.GetHeader(app.RequesterHeader),
		Notes:          in.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListLoans lists borrow records. ?status=open|returned&instanceId=
func (rc *ReturnController) ListLoans(c *gin.Context) {
	items, err := rc.Repo.ListLoans(c.Request.Context(),
		app.RequesterID(c), c.Query("instanceId"), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}
