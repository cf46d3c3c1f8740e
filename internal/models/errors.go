package models

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed construction input. The caller must fix
// the input and resubmit; it is never retried automatically.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictType classifies a merge conflict.
type ConflictType string

const (
	ConflictGroupID     ConflictType = "groupId"
	ConflictMember      ConflictType = "member"
	ConflictTransaction ConflictType = "transaction"
)

// Conflict is one structural disagreement between two replicas.
//
// Which fields are set depends on Type:
//   - groupId: Field ("description" or "timestamp"), Value1, Value2
//   - member: ID, Value1 and Value2 are the two names
//   - transaction: Description, Timestamp, Value1 and Value2 are the two movement lists
type Conflict struct {
	Type        ConflictType
	Field       string
	ID          int64
	Description string
	Timestamp   int64
	Value1      any
	Value2      any
}

func (c Conflict) String() string {
	switch c.Type {
	case ConflictGroupID:
		return fmt.Sprintf("groupId %s: %v != %v", c.Field, c.Value1, c.Value2)
	case ConflictMember:
		return fmt.Sprintf("member %d: %v != %v", c.ID, c.Value1, c.Value2)
	case ConflictTransaction:
		return fmt.Sprintf("transaction %q@%d: %v != %v", c.Description, c.Timestamp, c.Value1, c.Value2)
	default:
		return fmt.Sprintf("%s: %v != %v", c.Type, c.Value1, c.Value2)
	}
}

// MergeConflictError carries every conflict found by a merge attempt.
type MergeConflictError struct {
	Conflicts []Conflict
}

func (e *MergeConflictError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = c.String()
	}
	return fmt.Sprintf("merge conflict (%d): %s", len(e.Conflicts), strings.Join(parts, "; "))
}

// Decode failure kinds. A DecodeError always wraps exactly one of these.
var (
	ErrInvalidTopLevel         = errors.New("invalid top-level shape")
	ErrInvalidMember           = errors.New("invalid member format")
	ErrInvalidTransaction      = errors.New("invalid transaction format")
	ErrInvalidTransactionEntry = errors.New("invalid transaction-entry format")
	ErrDecodeFailed            = errors.New("failed to decode group")
)

// DecodeError reports a malformed wire payload.
type DecodeError struct {
	// Kind is one of the Err* sentinels above.
	Kind error
	// Detail is an optional human-readable hint (e.g., the offending index).
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return "decode: " + e.Kind.Error()
	}
	return fmt.Sprintf("decode: %s: %s", e.Kind, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}
