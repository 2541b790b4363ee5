package core

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// NewID returns a random identifier for a new record.
func NewID() string {
	return uuid.New().String()
}

// Sequence produces human-readable document numbers such as WB-000042.
// It is safe for concurrent use.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

// NewSequence creates a sequence whose numbers start at 1.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns the next number.
func (s *Sequence) Next() string {
	return fmt.Sprintf("%s-%06d", s.prefix, s.n.Add(1))
}
