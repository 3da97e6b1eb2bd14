// controllers/batch_controller.go
package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"supplyhub/app"
	"supplyhub/db"
	"supplyhub/session"

	"github.com/gin-gonic/gin"
)

type BatchController struct{ *Srv }

func NewBatchController(s *Srv) *BatchController { return &BatchController{Srv: s} }

const idemHeader = "Idempotency-Key"

// Conflict is the one retryable error class; bounded attempts, short backoff.
const conflictAttempts = 3

type submitBatchReq struct {
	Items    []db.LineItem `json:"items" binding:"required"`
	DueDays  int           `json:"dueDays"`
	Purpose  string        `json:"purpose"`
	Priority string        `json:"priority"`
}

// Submit commits a whole batch or none of it. A caller-supplied
// Idempotency-Key makes resubmission after a timeout safe: a replay gets
// the original response instead of a second reservation.
func (bc *BatchController) Submit(c *gin.Context) {
	requesterID := app.RequesterID(c)

	var in submitBatchReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if err := db.ValidateItems(in.Items); err != nil {
		respondError(c, err)
		return
	}

	key := c.GetHeader(idemHeader)
	claimed := false
	if key != "" {
		ok, prev, err := bc.Idem.Claim(c.Request.Context(), requesterID, key)
		if err != nil {
			if errors.Is(err, session.ErrInFlight) {
				c.JSON(http.StatusConflict, app.H{"error": "submission in flight, try again"})
				return
			}
			c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
			return
		}
		if prev != nil {
			c.Header("Idempotent-Replay", "true")
			c.Data(http.StatusOK, "application/json", prev)
			return
		}
		claimed = ok
	}

	input := db.SubmitBatchInput{
		RequesterID: requesterID,
		Items:       in.Items,
		DueInterval: time.Duration(in.DueDays) * 24 * time.Hour,
		Purpose:     in.Purpose,
		Priority:    in.Priority,
	}

	var res *db.BatchResult
	var err error
	for attempt := 1; attempt <= conflictAttempts; attempt++ {
		res, err = bc.Repo.SubmitBatch(c.Request.Context(), input)
		if !errors.Is(err, db.ErrConflict) {
			break
		}
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	if err != nil {
		if claimed {
			_ = bc.Idem.Release(c.Request.Context(), requesterID, key)
		}
		respondError(c, err)
		return
	}

	body, _ := json.Marshal(app.H{
		"status":        "accepted",
		"batchGroupId":  res.BatchGroupID,
		"requests":      res.Requests,
		"borrowedItems": res.Borrowed,
		"closed":        res.Closed,
	})
	if claimed {
		_ = bc.Idem.Complete(c.Request.Context(), requesterID, key, body)
	}
	c.Data(http.StatusCreated, "application/json", body)
}

// MyRequests lists the caller's committed requests, newest first.
func (bc *BatchController) MyRequests(c *gin.Context) {
	reqs, err := bc.Repo.ListRequestsByRequester(c.Request.Context(), app.RequesterID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"requests": reqs})
}

// MyOverdue reports the caller's currently overdue loans.
func (bc *BatchController) MyOverdue(c *gin.Context) {
	rid := app.RequesterID(c)
	rows, err := bc.Repo.ListOverdue(c.Request.Context(), rid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"hasOverdue": len(rows) > 0, "items": rows})
}

// BatchStatus reports per-item return progress for a batch group.
func (bc *BatchController) BatchStatus(c *gin.Context) {
	id := c.Param("id")
	st, err := bc.Repo.BatchReturnStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
