package calculator

import (
	"github.com/carlo-colombo/cashsplitter/internal/models"
)

// EqualSplitStrategy divides an amount evenly across a fixed member set.
type EqualSplitStrategy struct {
	memberIDs []int64
}

// NewEqualSplitStrategy validates the member set and returns a strategy.
// The set must be non-empty and must not contain duplicate ids.
func NewEqualSplitStrategy(memberIDs []int64) (*EqualSplitStrategy, error) {
	if len(memberIDs) == 0 {
		return nil, models.NewValidationError("must have at least one participant")
	}
	seen := make(map[int64]bool, len(memberIDs))
	for _, id := range memberIDs {
		if seen[id] {
			return nil, models.NewValidationError("duplicate participant %d", id)
		}
		seen[id] = true
	}
	return &EqualSplitStrategy{memberIDs: append([]int64(nil), memberIDs...)}, nil
}

// Split computes each member's share of amount.
// Based on the algorithm: base = amount / n (truncated), and the first
// |amount - base*n| members, in the order supplied, get one extra cent of the
// remainder's sign. The shares always sum to amount exactly.
func (s *EqualSplitStrategy) Split(amount int64) []models.Movement {
	n := int64(len(s.memberIDs))
	base := amount / n
	remainder := amount - base*n

	step := int64(1)
	if remainder < 0 {
		step = -1
		remainder = -remainder
	}

	shares := make([]models.Movement, len(s.memberIDs))
	for i, id := range s.memberIDs {
		share := base
		if int64(i) < remainder {
			share += step
		}
		shares[i] = models.Movement{MemberID: id, Amount: share}
	}
	return shares
}
