/*
Package core provides the shared vocabulary of the warehouse engine.

PURPOSE:
  Everything the domain packages (stock, waybill, invoice, expense, audit)
  have in common lives here: who performed an action, how errors are
  classified, how records are identified and timestamped, and how
  read-modify-write sequences on a single key are serialized.

KEY CONCEPTS IN THIS FILE (types.go):
  - ActorRef: Opaque reference to a person (id + display name)
  - Actor:    ActorRef plus role flags validated by the caller
  - Clock:    Time source, swappable in tests

DESIGN PRINCIPLES:
  1. The core never authenticates. Role flags arrive pre-validated and are
     only re-checked as defense-in-depth.
  2. No ambient globals: every component is constructed and injected.

SEE ALSO:
  - errors.go: Error kinds shared by every component
  - keylock.go: Per-key serialization
  - ids.go: Identifier generation
*/
package core

import "time"

// =============================================================================
// ACTORS
// =============================================================================

// ActorRef identifies who performed an action. The core treats it as opaque.
type ActorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IsZero reports whether the reference is empty.
func (a ActorRef) IsZero() bool { return a.ID == "" }

// String returns the display name, falling back to the id.
func (a ActorRef) String() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// Actor is an ActorRef together with the role flags the identity layer
// resolved for it.
type Actor struct {
	Ref             ActorRef
	Admin           bool
	FinanceDelegate bool
}

// SystemActor is used for seeding and automated reconciliation.
var SystemActor = Actor{Ref: ActorRef{ID: "system", Name: "System"}, Admin: true}

// =============================================================================
// CLOCK
// =============================================================================

// Clock returns the current time. Components default to time.Now.
type Clock func() time.Time

// UTCNow is the default clock.
func UTCNow() time.Time { return time.Now().UTC() }

// OrDefault returns c, or UTCNow when c is nil.
func (c Clock) OrDefault() Clock {
	if c == nil {
		return UTCNow
	}
	return c
}
