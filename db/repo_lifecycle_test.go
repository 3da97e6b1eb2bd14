package db

import (
	"context"
	"errors"
	"testing"

	"supplyhub/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// issueBatch commits a batch and fails the test on any error.
func issueBatch(t *testing.T, r *Repo, requester string, items []LineItem) *BatchResult {
	t.Helper()
	res, err := r.SubmitBatch(context.Background(), SubmitBatchInput{
		RequesterID: requester,
		Items:       items,
	})
	require.NoError(t, err)
	return res
}

func TestReturnFlowPartialThenComplete(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	laptop := seedSupply(t, r, "Laptop", 3, false)
	seedInstances(t, r, laptop.ID, 3)
	paper := seedSupply(t, r, "A4 Paper", 100, true)
	requester := uuid.NewString()

	res := issueBatch(t, r, requester, []LineItem{
		{Kind: models.KindEquipment, RefID: laptop.ID, Qty: 3},
		{Kind: models.KindConsumable, RefID: paper.ID, Qty: 10},
	})
	require.Len(t, res.Borrowed, 3)
	require.NotNil(t, res.BatchGroupID)

	// two of three back: group stays partial
	for i := 0; i < 2; i++ {
		rr, err := r.RecordReturn(ctx, RecordReturnInput{
			BorrowedItemID: res.Borrowed[i].ID,
			ReceivedBy:     uuid.NewString(),
		})
		require.NoError(t, err)
		assert.False(t, rr.GroupComplete)
		assert.Equal(t, 2-i, rr.RemainingOpen)
		require.NotNil(t, rr.Group)
		assert.Equal(t, models.BatchPartial, rr.Group.Status)
		assert.Equal(t, models.RequestPartiallyReturned, rr.Request.Status)
		// held in "returned" limbo until the whole group is back
		assert.Equal(t, models.InstanceReturned, instanceState(t, r, res.Borrowed[i].InstanceID).Status)
	}

	// last one completes the group and releases the fleet
	rr, err := r.RecordReturn(ctx, RecordReturnInput{
		BorrowedItemID: res.Borrowed[2].ID,
		ReceivedBy:     uuid.NewString(),
	})
	require.NoError(t, err)
	assert.True(t, rr.GroupComplete)
	assert.Zero(t, rr.RemainingOpen)
	assert.Equal(t, models.BatchReturned, rr.Group.Status)
	assert.Equal(t, models.RequestReturned, rr.Request.Status)
	for _, bi := range res.Borrowed {
		assert.Equal(t, models.InstanceAvailable, instanceState(t, r, bi.InstanceID).Status)
	}

	st, err := r.BatchReturnStatus(ctx, *res.BatchGroupID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalItems)
	assert.Equal(t, 3, st.Returned)
	assert.Zero(t, st.Pending)
	assert.True(t, st.AllReturned)
}

func TestReturnIsNotRepeatable(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	laptop := seedSupply(t, r, "Laptop", 1, false)
	seedInstances(t, r, laptop.ID, 1)
	res := issueBatch(t, r, uuid.NewString(), []LineItem{
		{Kind: models.KindEquipment, RefID: laptop.ID, Qty: 1},
	})

	_, err := r.RecordReturn(ctx, RecordReturnInput{BorrowedItemID: res.Borrowed[0].ID})
	require.NoError(t, err)

	_, err = r.RecordReturn(ctx, RecordReturnInput{BorrowedItemID: res.Borrowed[0].ID})
	assert.True(t, errors.Is(err, ErrAlreadyReturned))

	_, err = r.MarkLost(ctx, MarkLostInput{BorrowedItemID: res.Borrowed[0].ID, ActorID: uuid.NewString()})
	assert.True(t, errors.Is(err, ErrAlreadyReturned))
}

func TestMarkLostIsTerminal(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	laptop := seedSupply(t, r, "Laptop", 2, false)
	seedInstances(t, r, laptop.ID, 2)
	res := issueBatch(t, r, uuid.NewString(), []LineItem{
		{Kind: models.KindEquipment, RefID: laptop.ID, Qty: 2},
	})

	admin := uuid.NewString()
	rr, err := r.MarkLost(ctx, MarkLostInput{
		BorrowedItemID: res.Borrowed[0].ID,
		ActorID:        admin,
		Notes:          "not recovered",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReturnLost, rr.Item.ReturnStatus)
	assert.False(t, rr.GroupComplete)
	assert.Equal(t, models.InstanceLost, instanceState(t, r, res.Borrowed[0].InstanceID).Status)

	_, err = r.MarkLost(ctx, MarkLostInput{BorrowedItemID: res.Borrowed[0].ID, ActorID: admin})
	assert.True(t, errors.Is(err, ErrAlreadyLost))
	_, err = r.RecordReturn(ctx, RecordReturnInput{BorrowedItemID: res.Borrowed[0].ID})
	assert.True(t, errors.Is(err, ErrAlreadyLost))

	// a lost item still counts toward completion
	rr, err = r.RecordReturn(ctx, RecordReturnInput{BorrowedItemID: res.Borrowed[1].ID})
	require.NoError(t, err)
	assert.True(t, rr.GroupComplete)

	// completion never resurrects a lost unit
	assert.Equal(t, models.InstanceLost, instanceState(t, r, res.Borrowed[0].InstanceID).Status)
	assert.Equal(t, models.InstanceAvailable, instanceState(t, r, res.Borrowed[1].InstanceID).Status)
}

func TestDamagedReturnGoesToMaintenance(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	proj := seedSupply(t, r, "Projector", 1, false)
	seedInstances(t, r, proj.ID, 1)
	res := issueBatch(t, r, uuid.NewString(), []LineItem{
		{Kind: models.KindEquipment, RefID: proj.ID, Qty: 1},
	})

	rr, err := r.RecordReturn(ctx, RecordReturnInput{
		BorrowedItemID: res.Borrowed[0].ID,
		Condition:      models.ReturnDamaged,
		Notes:          "cracked lens",
	})
	require.NoError(t, err)
	assert.True(t, rr.GroupComplete)
	// completion releases "returned" units only; damaged stays out of the pool
	assert.Equal(t, models.InstanceMaintenance, instanceState(t, r, res.Borrowed[0].InstanceID).Status)
}

func TestReturnRejectsLostCondition(t *testing.T) {
	r := testRepo(t)
	laptop := seedSupply(t, r, "Laptop", 1, false)
	seedInstances(t, r, laptop.ID, 1)
	res := issueBatch(t, r, uuid.NewString(), []LineItem{
		{Kind: models.KindEquipment, RefID: laptop.ID, Qty: 1},
	})

	_, err := r.RecordReturn(context.Background(), RecordReturnInput{
		BorrowedItemID: res.Borrowed[0].ID,
		Condition:      models.ReturnLost,
	})
	require.Error(t, err)
}

func TestUngroupedLoanCompletesOnItsRequest(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	laptop := seedSupply(t, r, "Laptop", 2, false)
	seedInstances(t, r, laptop.ID, 2)
	res := issueBatch(t, r, uuid.NewString(), []LineItem{
		{Kind: models.KindEquipment, RefID: laptop.ID, Qty: 2},
	})
	require.Nil(t, res.BatchGroupID)
	for _, bi := range res.Borrowed {
		assert.Nil(t, bi.BatchGroupID)
	}

	rr, err := r.RecordReturn(ctx, RecordReturnInput{BorrowedItemID: res.Borrowed[0].ID})
	require.NoError(t, err)
	assert.Nil(t, rr.Group)
	assert.False(t, rr.GroupComplete)
	assert.Equal(t, models.RequestPartiallyReturned, rr.Request.Status)

	rr, err = r.RecordReturn(ctx, RecordReturnInput{BorrowedItemID: res.Borrowed[1].ID})
	require.NoError(t, err)
	assert.True(t, rr.GroupComplete)
	assert.Equal(t, models.RequestReturned, rr.Request.Status)
	for _, bi := range res.Borrowed {
		assert.Equal(t, models.InstanceAvailable, instanceState(t, r, bi.InstanceID).Status)
	}
}

func TestListLoansFilters(t *testing.T) {
	r := testRepo(t)
	ctx := context.Background()

	laptop := seedSupply(t, r, "Laptop", 2, false)
	seedInstances(t, r, laptop.ID, 2)
	borrower := uuid.NewString()
	res := issueBatch(t, r, borrower, []LineItem{
		{Kind: models.KindEquipment, RefID: laptop.ID, Qty: 2},
	})
	_, err := r.RecordReturn(ctx, RecordReturnInput{BorrowedItemID: res.Borrowed[0].ID})
	require.NoError(t, err)

	open, err := r.ListLoans(ctx, borrower, "", "open")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, res.Borrowed[1].ID, open[0].ID)

	closed, err := r.ListLoans(ctx, borrower, "", "returned")
	require.NoError(t, err)
	require.Len(t, closed, 1)

	all, err := r.ListLoans(ctx, "", res.Borrowed[0].InstanceID, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}
