package expense_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellovesfromage/warehouse-system/audit"
	"github.com/mellovesfromage/warehouse-system/core"
	"github.com/mellovesfromage/warehouse-system/expense"
)

var (
	requester = core.Actor{Ref: core.ActorRef{ID: "2", Name: "Warehouse 1 Manager"}}
	admin     = core.Actor{Ref: core.ActorRef{ID: "1", Name: "Admin User"}, Admin: true, FinanceDelegate: true}
	delegate  = core.Actor{Ref: core.ActorRef{ID: "3", Name: "Finance Admin"}, FinanceDelegate: true}
)

func newWorkflow(t *testing.T) (*expense.Workflow, *audit.Log) {
	t.Helper()
	activity := audit.NewLog(audit.Options{Capacity: 100, Logger: zerolog.Nop()})
	return expense.NewWorkflow(activity, expense.Options{Logger: zerolog.Nop()}), activity
}

func submitFuel(t *testing.T, wf *expense.Workflow) expense.Expense {
	t.Helper()
	e, err := wf.Submit(context.Background(), expense.SubmitInput{
		Title: "Fuel", Amount: decimal.NewFromInt(500), Category: "Transport",
	}, requester)
	require.NoError(t, err)
	return e
}

// allTransitions attempts every transition with valid input and a capable actor.
func allTransitions(wf *expense.Workflow, id string) map[string]error {
	ctx := context.Background()
	errs := map[string]error{}
	_, errs["approve"] = wf.Approve(ctx, id, delegate.Ref, admin)
	_, errs["reject"] = wf.Reject(ctx, id, "no", admin)
	_, errs["revoke"] = wf.Revoke(ctx, id, admin)
	_, errs["return"] = wf.Return(ctx, id, "no", delegate)
	_, errs["pay"] = wf.Pay(ctx, id, expense.PayInput{Method: "Cash", Reference: "R1"}, admin)
	return errs
}

// =============================================================================
// SCENARIO
// =============================================================================

func TestExpense_FuelScenario(t *testing.T) {
	wf, activity := newWorkflow(t)
	ctx := context.Background()

	// GIVEN: R submits Fuel for 500
	e := submitFuel(t, wf)
	assert.Equal(t, expense.StatusPendingAdminReview, e.Status)
	require.Len(t, e.Timeline, 1)
	assert.Equal(t, "Warehouse 1 Manager submitted an expense request.", e.Timeline[0].Note)

	// WHEN: the admin approves and delegates to finance
	e, err := wf.Approve(ctx, e.ID, delegate.Ref, admin)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, expense.StatusApprovedPendingPayment, e.Status)
	require.NotNil(t, e.DelegatedTo)
	assert.Equal(t, "3", e.DelegatedTo.ID)
	require.Len(t, e.Timeline, 2)
	assert.Equal(t, "Admin User approved this expense and delegated payment to Finance Admin.", e.Timeline[1].Note)

	// WHEN: the delegatee pays
	e, err = wf.Pay(ctx, e.ID, expense.PayInput{Method: "MobileMoney", Reference: "MM123"}, delegate)
	require.NoError(t, err)

	// THEN: paid and terminal
	assert.Equal(t, expense.StatusPaid, e.Status)
	require.Len(t, e.Timeline, 3)
	assert.Equal(t, "Finance Admin processed payment: MobileMoney (ref MM123)", e.Timeline[2].Note)
	assert.Equal(t, "MM123", e.PaymentReference)
	require.NotNil(t, e.PaidBy)
	assert.Equal(t, "3", e.PaidBy.ID)
	assert.True(t, e.Status.IsTerminal())

	for name, err := range allTransitions(wf, e.ID) {
		assert.ErrorIs(t, err, core.ErrInvalidTransition, name)
	}
	got, err := wf.Get(e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Timeline, 3)
	assert.Equal(t, 3, activity.Len())
}

// =============================================================================
// TOTALITY
// =============================================================================

func TestExpense_TransitionsRejectWrongStates(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()

	// PendingAdminReview accepts only approve and reject.
	e := submitFuel(t, wf)
	_, err := wf.Revoke(ctx, e.ID, admin)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = wf.Return(ctx, e.ID, "why", delegate)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = wf.Pay(ctx, e.ID, expense.PayInput{Method: "Cash", Reference: "R"}, admin)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	got, err := wf.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, expense.StatusPendingAdminReview, got.Status)
	assert.Len(t, got.Timeline, 1)

	// ApprovedPendingPayment rejects approve and reject.
	_, err = wf.Approve(ctx, e.ID, delegate.Ref, admin)
	require.NoError(t, err)
	_, err = wf.Approve(ctx, e.ID, delegate.Ref, admin)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	_, err = wf.Reject(ctx, e.ID, "late", admin)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	// Rejected is terminal.
	r := submitFuel(t, wf)
	r, err = wf.Reject(ctx, r.ID, "duplicate claim", admin)
	require.NoError(t, err)
	assert.Equal(t, "duplicate claim", r.RejectionReason)
	assert.Equal(t, "Admin User rejected this expense: duplicate claim", r.Timeline[1].Note)
	for name, err := range allTransitions(wf, r.ID) {
		assert.ErrorIs(t, err, core.ErrInvalidTransition, name)
	}
}

func TestExpense_RevokeAndReturnGoBackToReview(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()
	e := submitFuel(t, wf)

	e, err := wf.Approve(ctx, e.ID, delegate.Ref, admin)
	require.NoError(t, err)
	e, err = wf.Revoke(ctx, e.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, expense.StatusPendingAdminReview, e.Status)
	assert.Nil(t, e.DelegatedTo)
	assert.Equal(t, "Admin User revoked the approval delegated to Finance Admin.", e.Timeline[2].Note)

	e, err = wf.Approve(ctx, e.ID, delegate.Ref, admin)
	require.NoError(t, err)
	e, err = wf.Return(ctx, e.ID, "missing receipt", delegate)
	require.NoError(t, err)
	assert.Equal(t, expense.StatusPendingAdminReview, e.Status)
	assert.Nil(t, e.DelegatedTo)
	assert.Equal(t, "Finance Admin returned this expense for review: missing receipt", e.Timeline[4].Note)
	assert.Len(t, e.Timeline, 5)
}

// =============================================================================
// ROLES AND INPUT
// =============================================================================

func TestExpense_RoleChecks(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()
	e := submitFuel(t, wf)

	_, err := wf.Approve(ctx, e.ID, delegate.Ref, requester)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, err = wf.Reject(ctx, e.ID, "no", requester)
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = wf.Approve(ctx, e.ID, delegate.Ref, admin)
	require.NoError(t, err)

	// Only the delegatee may return; admin is not the delegatee here.
	_, err = wf.Return(ctx, e.ID, "no", admin)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, err = wf.Revoke(ctx, e.ID, delegate)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, err = wf.Pay(ctx, e.ID, expense.PayInput{Method: "Cash", Reference: "R"}, requester)
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	// An admin who is not the delegatee may still pay.
	paid, err := wf.Pay(ctx, e.ID, expense.PayInput{Method: "Cash", Reference: "R"}, admin)
	require.NoError(t, err)
	assert.Equal(t, expense.StatusPaid, paid.Status)
}

func TestExpense_InputValidation(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()

	for _, in := range []expense.SubmitInput{
		{Amount: decimal.NewFromInt(1), Category: "x"},
		{Title: "x", Amount: decimal.Zero, Category: "x"},
		{Title: "x", Amount: decimal.NewFromInt(-5), Category: "x"},
		{Title: "x", Amount: decimal.NewFromInt(1)},
	} {
		_, err := wf.Submit(ctx, in, requester)
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	}
	assert.Empty(t, wf.List())

	e := submitFuel(t, wf)
	_, err := wf.Approve(ctx, e.ID, core.ActorRef{}, admin)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = wf.Reject(ctx, e.ID, "  ", admin)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = wf.Approve(ctx, e.ID, delegate.Ref, admin)
	require.NoError(t, err)
	_, err = wf.Return(ctx, e.ID, "", delegate)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = wf.Pay(ctx, e.ID, expense.PayInput{Reference: "R"}, delegate)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = wf.Pay(ctx, e.ID, expense.PayInput{Method: "Cash"}, delegate)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	got, err := wf.Get(e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Timeline, 2)
	assert.Equal(t, expense.StatusApprovedPendingPayment, got.Status)

	_, err = wf.Approve(ctx, "missing", delegate.Ref, admin)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// =============================================================================
// TIMELINE
// =============================================================================

func TestExpense_TimelineIsAppendOnlyAndMonotonic(t *testing.T) {
	// GIVEN: a clock that jumps backwards after submission
	times := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	i := 0
	clock := func() time.Time { t := times[i]; i++; return t }
	wf := expense.NewWorkflow(nil, expense.Options{Logger: zerolog.Nop(), Clock: clock})
	ctx := context.Background()

	e := submitFuel(t, wf)
	first := e.Timeline[0]

	e, err := wf.Approve(ctx, e.ID, delegate.Ref, admin)
	require.NoError(t, err)
	e, err = wf.Pay(ctx, e.ID, expense.PayInput{Method: "Cash", Reference: "R"}, delegate)
	require.NoError(t, err)

	// THEN: earlier entries are untouched and timestamps never decrease
	require.Len(t, e.Timeline, 3)
	assert.Equal(t, first, e.Timeline[0])
	for j := 1; j < len(e.Timeline); j++ {
		assert.False(t, e.Timeline[j].Timestamp.Before(e.Timeline[j-1].Timestamp))
	}

	// Mutating a returned copy does not reach the stored expense.
	e.Timeline[0].Note = "tampered"
	got, err := wf.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Note, got.Timeline[0].Note)
}

func TestExpense_ConcurrentApproveAndRejectOnlyOneWins(t *testing.T) {
	wf, _ := newWorkflow(t)
	e := submitFuel(t, wf)

	var wg sync.WaitGroup
	results := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := wf.Approve(context.Background(), e.ID, delegate.Ref, admin)
			results <- err
		}()
		go func() {
			defer wg.Done()
			_, err := wf.Reject(context.Background(), e.ID, "no", admin)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, core.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, wins)

	got, err := wf.Get(e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Timeline, 2)
}

func TestExpense_ListNewestFirst(t *testing.T) {
	wf, _ := newWorkflow(t)
	a := submitFuel(t, wf)
	b := submitFuel(t, wf)

	list := wf.List()
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Equal(t, a.ID, list[1].ID)
}

func TestExpense_ApproveResolvesDelegateLast(t *testing.T) {
	wf, _ := newWorkflow(t)
	ctx := context.Background()
	e := submitFuel(t, wf)
	calls := 0
	badDelegate := func() (core.ActorRef, error) {
		calls++
		return core.ActorRef{}, core.Invalid("delegate_to", "unknown user 99")
	}

	// WHEN: A non-admin approves
	_, err := wf.ApproveResolving(ctx, e.ID, badDelegate, requester)

	// THEN: The role check fails before any lookup
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Zero(t, calls)

	// WHEN: The admin approves with a failing lookup
	_, err = wf.ApproveResolving(ctx, e.ID, badDelegate, admin)

	// THEN: The lookup error is returned and nothing changes
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, 1, calls)
	got, err := wf.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, expense.StatusPendingAdminReview, got.Status)

	// WHEN: The expense is paid and approval is attempted again
	_, err = wf.Approve(ctx, e.ID, delegate.Ref, admin)
	require.NoError(t, err)
	_, err = wf.Pay(ctx, e.ID, expense.PayInput{Method: "Cash", Reference: "R1"}, delegate)
	require.NoError(t, err)
	_, err = wf.ApproveResolving(ctx, e.ID, badDelegate, admin)

	// THEN: State wins
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	assert.Equal(t, 1, calls)

	_, err = wf.ApproveResolving(ctx, "missing", badDelegate, admin)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
