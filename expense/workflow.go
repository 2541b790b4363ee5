/*
Package expense implements the expense claim workflow and its timeline.

STATE MACHINE:

	            Submit
	               │
	               ▼
	   ┌────────────────────────┐   Reject    ┌──────────┐
	   │   PendingAdminReview   │────────────►│ Rejected │
	   └────────────────────────┘             └──────────┘
	     Approve │       ▲
	             │       │ Revoke (admin) / Return (delegatee)
	             ▼       │
	   ┌────────────────────────┐    Pay      ┌──────┐
	   │ ApprovedPendingPayment │────────────►│ Paid │
	   └────────────────────────┘             └──────┘

Every transition checks the current state first, then the actor's role,
then the transition's input. A successful transition appends exactly one
timeline entry and one activity entry. Rejected and Paid are terminal.

The Amount is fixed at submission.
*/
package expense

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mellovesfromage/warehouse-system/audit"
	"github.com/mellovesfromage/warehouse-system/core"
)

// =============================================================================
// TYPES
// =============================================================================

type Status string

const (
	StatusPendingAdminReview     Status = "pending_admin_review"
	StatusApprovedPendingPayment Status = "approved_pending_payment"
	StatusPaid                   Status = "paid"
	StatusRejected               Status = "rejected"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusRejected
}

type TimelineEntry struct {
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Actor     core.ActorRef `json:"actor"`
	Note      string        `json:"note"`
}

type Expense struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Amount           decimal.Decimal `json:"amount"`
	Category         string          `json:"category"`
	Description      string          `json:"description,omitempty"`
	RequestedBy      core.ActorRef   `json:"requested_by"`
	Status           Status          `json:"status"`
	DelegatedTo      *core.ActorRef  `json:"delegated_to,omitempty"`
	ApprovedBy       *core.ActorRef  `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	PaidBy           *core.ActorRef  `json:"paid_by,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Timeline         []TimelineEntry `json:"timeline"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (e *Expense) clone() Expense {
	c := *e
	c.Timeline = append([]TimelineEntry(nil), e.Timeline...)
	c.DelegatedTo = cloneRef(e.DelegatedTo)
	c.ApprovedBy = cloneRef(e.ApprovedBy)
	c.PaidBy = cloneRef(e.PaidBy)
	c.ApprovedAt = cloneTime(e.ApprovedAt)
	c.PaidAt = cloneTime(e.PaidAt)
	return c
}

func cloneRef(r *core.ActorRef) *core.ActorRef {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SubmitInput describes a new claim.
type SubmitInput struct {
	Title       string
	Amount      decimal.Decimal
	Category    string
	Description string
}

type PayInput struct {
	Method    string
	Reference string
}

// =============================================================================
// WORKFLOW
// =============================================================================

type Options struct {
	Logger zerolog.Logger
	Clock  core.Clock
}

type Workflow struct {
	activity *audit.Log
	log      zerolog.Logger
	clock    core.Clock
	locks    *core.KeyedMutex

	mu    sync.RWMutex
	byID  map[string]*Expense
	order []string
}

func NewWorkflow(activity *audit.Log, opts Options) *Workflow {
	return &Workflow{
		activity: activity,
		log:      opts.Logger.With().Str("component", "expense").Logger(),
		clock:    opts.Clock.OrDefault(),
		locks:    core.NewKeyedMutex(),
		byID:     make(map[string]*Expense),
	}
}

// Submit creates a claim awaiting admin review.
func (w *Workflow) Submit(ctx context.Context, in SubmitInput, actor core.Actor) (Expense, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Expense{}, core.Invalid("title", "is required")
	}
	if !in.Amount.IsPositive() {
		return Expense{}, core.Invalid("amount", "must be greater than zero")
	}
	if strings.TrimSpace(in.Category) == "" {
		return Expense{}, core.Invalid("category", "is required")
	}

	now := w.clock()
	e := &Expense{
		ID:          core.NewID(),
		Title:       in.Title,
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		RequestedBy: actor.Ref,
		Status:      StatusPendingAdminReview,
		CreatedAt:   now,
	}
	e.Timeline = []TimelineEntry{{
		Status:    e.Status,
		Timestamp: now,
		Actor:     actor.Ref,
		Note:      fmt.Sprintf("%s submitted an expense request.", actor.Ref),
	}}

	w.mu.Lock()
	w.byID[e.ID] = e
	w.order = append(w.order, e.ID)
	out := e.clone()
	w.mu.Unlock()

	w.record(ctx, actor, "expense.submit", out, "")
	return out, nil
}

// Approve sends the claim to a finance delegate for payment.
func (w *Workflow) Approve(ctx context.Context, id string, delegate core.ActorRef, actor core.Actor) (Expense, error) {
	return w.ApproveResolving(ctx, id, func() (core.ActorRef, error) { return delegate, nil }, actor)
}

// ApproveResolving is Approve with the delegate looked up by resolve. The
// lookup runs after the state and role checks, so its errors never mask a
// conflict or a missing permission.
func (w *Workflow) ApproveResolving(ctx context.Context, id string, resolve func() (core.ActorRef, error), actor core.Actor) (Expense, error) {
	return w.transition(ctx, id, "approve", StatusPendingAdminReview, actor, func(e *Expense, now time.Time) (string, error) {
		if !actor.Admin {
			return "", &core.UnauthorizedError{ActorID: actor.Ref.ID, Action: "approve expense", Need: "admin"}
		}
		delegate, err := resolve()
		if err != nil {
			return "", err
		}
		if delegate.IsZero() {
			return "", core.Invalid("delegate_to", "a finance delegate is required")
		}
		by, to := actor.Ref, delegate
		e.Status = StatusApprovedPendingPayment
		e.DelegatedTo = &to
		e.ApprovedBy, e.ApprovedAt = &by, &now
		return fmt.Sprintf("%s approved this expense and delegated payment to %s.", actor.Ref, delegate), nil
	})
}

// Reject closes the claim.
func (w *Workflow) Reject(ctx context.Context, id, reason string, actor core.Actor) (Expense, error) {
	return w.transition(ctx, id, "reject", StatusPendingAdminReview, actor, func(e *Expense, _ time.Time) (string, error) {
		if !actor.Admin {
			return "", &core.UnauthorizedError{ActorID: actor.Ref.ID, Action: "reject expense", Need: "admin"}
		}
		if strings.TrimSpace(reason) == "" {
			return "", core.Invalid("reason", "is required")
		}
		e.Status = StatusRejected
		e.RejectionReason = reason
		return fmt.Sprintf("%s rejected this expense: %s", actor.Ref, reason), nil
	})
}

// Revoke withdraws an approval before it is paid.
func (w *Workflow) Revoke(ctx context.Context, id string, actor core.Actor) (Expense, error) {
	return w.transition(ctx, id, "revoke", StatusApprovedPendingPayment, actor, func(e *Expense, _ time.Time) (string, error) {
		if !actor.Admin {
			return "", &core.UnauthorizedError{ActorID: actor.Ref.ID, Action: "revoke expense approval", Need: "admin"}
		}
		note := fmt.Sprintf("%s revoked the approval delegated to %s.", actor.Ref, refName(e.DelegatedTo))
		e.clearApproval()
		return note, nil
	})
}

// Return hands the claim back to admin review. Only the delegatee may
// return it.
func (w *Workflow) Return(ctx context.Context, id, reason string, actor core.Actor) (Expense, error) {
	return w.transition(ctx, id, "return", StatusApprovedPendingPayment, actor, func(e *Expense, _ time.Time) (string, error) {
		if !isDelegatee(e, actor) {
			return "", &core.UnauthorizedError{ActorID: actor.Ref.ID, Action: "return expense", Need: "delegatee"}
		}
		if strings.TrimSpace(reason) == "" {
			return "", core.Invalid("reason", "is required")
		}
		e.clearApproval()
		return fmt.Sprintf("%s returned this expense for review: %s", actor.Ref, reason), nil
	})
}

// Pay records the payment. The delegatee or any admin may pay.
func (w *Workflow) Pay(ctx context.Context, id string, in PayInput, actor core.Actor) (Expense, error) {
	return w.transition(ctx, id, "pay", StatusApprovedPendingPayment, actor, func(e *Expense, now time.Time) (string, error) {
		if !isDelegatee(e, actor) && !actor.Admin {
			return "", &core.UnauthorizedError{ActorID: actor.Ref.ID, Action: "pay expense", Need: "delegatee or admin"}
		}
		if strings.TrimSpace(in.Method) == "" {
			return "", core.Invalid("method", "is required")
		}
		if strings.TrimSpace(in.Reference) == "" {
			return "", core.Invalid("reference", "is required")
		}
		by := actor.Ref
		e.Status = StatusPaid
		e.PaidBy, e.PaidAt = &by, &now
		e.PaymentMethod, e.PaymentReference = in.Method, in.Reference
		return fmt.Sprintf("%s processed payment: %s (ref %s)", actor.Ref, in.Method, in.Reference), nil
	})
}

func (e *Expense) clearApproval() {
	e.Status = StatusPendingAdminReview
	e.DelegatedTo = nil
	e.ApprovedBy, e.ApprovedAt = nil, nil
}

func isDelegatee(e *Expense, actor core.Actor) bool {
	return e.DelegatedTo != nil && e.DelegatedTo.ID == actor.Ref.ID
}

func refName(r *core.ActorRef) string {
	if r == nil {
		return "nobody"
	}
	return r.String()
}

// transition runs apply on a private copy under the expense's lock and
// publishes it only if apply succeeds, so a failed check changes nothing.
func (w *Workflow) transition(
	ctx context.Context,
	id, action string,
	from Status,
	actor core.Actor,
	apply func(e *Expense, now time.Time) (string, error),
) (Expense, error) {
	unlock := w.locks.Lock(id)
	defer unlock()

	w.mu.RLock()
	stored, ok := w.byID[id]
	var draft Expense
	if ok {
		draft = stored.clone()
	}
	w.mu.RUnlock()
	if !ok {
		return Expense{}, core.NotFound("expense", id)
	}
	if draft.Status != from {
		return Expense{}, &core.TransitionError{Resource: "expense", ID: id, Action: action, From: string(draft.Status)}
	}

	now := w.clock()
	// Timeline timestamps never go backwards, even if the clock does.
	if last := draft.Timeline[len(draft.Timeline)-1].Timestamp; now.Before(last) {
		now = last
	}
	note, err := apply(&draft, now)
	if err != nil {
		return Expense{}, err
	}
	draft.Timeline = append(draft.Timeline, TimelineEntry{
		Status:    draft.Status,
		Timestamp: now,
		Actor:     actor.Ref,
		Note:      note,
	})

	w.mu.Lock()
	*stored = draft
	out := stored.clone()
	w.mu.Unlock()

	w.record(ctx, actor, "expense."+action, out, note)
	w.log.Debug().Str("expense", id).Str("action", action).Str("status", string(out.Status)).Msg("expense transition")
	return out, nil
}

func (w *Workflow) record(ctx context.Context, actor core.Actor, action string, e Expense, note string) {
	if w.activity == nil {
		return
	}
	detail := fmt.Sprintf("Expense %q (%s, %s): %s", e.Title, e.Amount.StringFixed(2), e.Category, e.Status)
	if note != "" {
		detail += " - " + note
	}
	w.activity.Append(ctx, actor.Ref, action, detail)
}

// =============================================================================
// READS
// =============================================================================

func (w *Workflow) Get(id string) (Expense, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.byID[id]
	if !ok {
		return Expense{}, core.NotFound("expense", id)
	}
	return e.clone(), nil
}

// List returns every expense, most recently submitted first.
func (w *Workflow) List() []Expense {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Expense, 0, len(w.order))
	for i := len(w.order) - 1; i >= 0; i-- {
		out = append(out, w.byID[w.order[i]].clone())
	}
	return out
}
