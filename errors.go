package objgraph

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested object does not exist.
	ErrNotFound = errors.New("objgraph: object not found")

	// ErrAlreadyExists is returned when inserting an object with an ID already in use.
	ErrAlreadyExists = errors.New("objgraph: object already exists")

	// ErrDuplicateEntity is returned when a schema name is defined twice.
	ErrDuplicateEntity = errors.New("objgraph: duplicate definition")

	// ErrUnknownEntity is returned when a name does not resolve to an entity.
	ErrUnknownEntity = errors.New("objgraph: unknown entity")

	// ErrUnknownAttribute is returned when an attribute is not part of the entity.
	ErrUnknownAttribute = errors.New("objgraph: unknown attribute")

	// ErrUnknownRelationship is returned when a relationship is not part of the entity.
	ErrUnknownRelationship = errors.New("objgraph: unknown relationship")

	// ErrCardinality is returned when a relationship would hold too many targets.
	ErrCardinality = errors.New("objgraph: cardinality violation")

	// ErrRequiredAttribute is returned when a non-optional attribute has no value.
	ErrRequiredAttribute = errors.New("objgraph: required attribute missing")

	// ErrImmutableAttribute is returned when an update sets an immutable attribute.
	ErrImmutableAttribute = errors.New("objgraph: immutable attribute")

	// ErrTypeMismatch is returned when a value does not match the attribute type.
	ErrTypeMismatch = errors.New("objgraph: type mismatch")

	// ErrDenyDelete is returned when a Deny delete rule blocks a delete.
	ErrDenyDelete = errors.New("objgraph: delete denied")

	// ErrCyclicCascade is returned when cascade delete rules form a cycle.
	ErrCyclicCascade = errors.New("objgraph: cyclic cascade")

	// ErrSchemaFinalized is returned when a finalized schema builder is mutated.
	ErrSchemaFinalized = errors.New("objgraph: schema already finalized")

	// ErrTxStarted is returned when Begin is called on an active transaction.
	ErrTxStarted = errors.New("objgraph: cannot start a transaction within a transaction")

	// ErrTxNotStarted is returned when staging, committing or rolling back
	// without an active transaction.
	ErrTxNotStarted = errors.New("objgraph: no active transaction")
)

// NotFoundError represents an error when an object is not found.
type NotFoundError struct {
	label string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("objgraph: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("objgraph: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label, or "object" when it is unknown.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError with the ID that was searched for.
func NewNotFoundError(label string, id any) *NotFoundError {
	if label == "" {
		label = "object"
	}
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// DuplicateEntityError is returned when an entity, attribute or relationship
// name is defined twice.
type DuplicateEntityError struct {
	Entity string
	Member string // attribute or relationship name; empty for the entity itself
}

// Error returns the error string.
func (e *DuplicateEntityError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("objgraph: entity %q already defines %q", e.Entity, e.Member)
	}
	return fmt.Sprintf("objgraph: entity %q already defined", e.Entity)
}

// Is reports whether the target matches ErrDuplicateEntity.
func (e *DuplicateEntityError) Is(err error) bool { return err == ErrDuplicateEntity }

// UnknownEntityError is returned when a referenced entity was never defined.
type UnknownEntityError struct {
	Entity string
}

// Error returns the error string.
func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("objgraph: unknown entity %q", e.Entity)
}

// Is reports whether the target matches ErrUnknownEntity.
func (e *UnknownEntityError) Is(err error) bool { return err == ErrUnknownEntity }

// UnknownAttributeError is returned for attributes not declared on the entity.
type UnknownAttributeError struct {
	Entity    string
	Attribute string
}

// Error returns the error string.
func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("objgraph: entity %q has no attribute %q", e.Entity, e.Attribute)
}

// Is reports whether the target matches ErrUnknownAttribute.
func (e *UnknownAttributeError) Is(err error) bool { return err == ErrUnknownAttribute }

// UnknownRelationshipError is returned for relationships not declared on the entity.
type UnknownRelationshipError struct {
	Entity       string
	Relationship string
}

// Error returns the error string.
func (e *UnknownRelationshipError) Error() string {
	return fmt.Sprintf("objgraph: entity %q has no relationship %q", e.Entity, e.Relationship)
}

// Is reports whether the target matches ErrUnknownRelationship.
func (e *UnknownRelationshipError) Is(err error) bool { return err == ErrUnknownRelationship }

// CardinalityViolationError is returned when a relationship would exceed its
// maximum number of targets, or would point at an object of the wrong entity.
type CardinalityViolationError struct {
	Ref          ObjectRef
	Relationship string
	Max          int // 0 means unbounded
	Got          int
	Reason       string
}

// Error returns the error string.
func (e *CardinalityViolationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("objgraph: relationship %s.%s: %s", e.Ref, e.Relationship, e.Reason)
	}
	return fmt.Sprintf("objgraph: relationship %s.%s allows at most %d target(s), got %d",
		e.Ref, e.Relationship, e.Max, e.Got)
}

// Is reports whether the target matches ErrCardinality.
func (e *CardinalityViolationError) Is(err error) bool { return err == ErrCardinality }

// IsCardinalityViolation returns true if the error is a CardinalityViolationError.
func IsCardinalityViolation(err error) bool {
	return errors.Is(err, ErrCardinality)
}

// RequiredAttributeMissingError is returned when a non-optional attribute
// has no value at commit time.
type RequiredAttributeMissingError struct {
	Ref       ObjectRef
	Attribute string
}

// Error returns the error string.
func (e *RequiredAttributeMissingError) Error() string {
	return fmt.Sprintf("objgraph: %s: required attribute %q is missing", e.Ref, e.Attribute)
}

// Is reports whether the target matches ErrRequiredAttribute.
func (e *RequiredAttributeMissingError) Is(err error) bool { return err == ErrRequiredAttribute }

// ImmutableAttributeError is returned when an update sets an attribute that
// can only be assigned on insert.
type ImmutableAttributeError struct {
	Ref       ObjectRef
	Attribute string
}

// Error returns the error string.
func (e *ImmutableAttributeError) Error() string {
	return fmt.Sprintf("objgraph: %s: attribute %q is immutable", e.Ref, e.Attribute)
}

// Is reports whether the target matches ErrImmutableAttribute.
func (e *ImmutableAttributeError) Is(err error) bool { return err == ErrImmutableAttribute }

// TypeMismatchError is returned when a value does not match the declared type.
type TypeMismatchError struct {
	Entity    string
	Attribute string
	Want      Kind
	Got       Kind
}

// Error returns the error string.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("objgraph: %s.%s expects %s, got %s", e.Entity, e.Attribute, e.Want, e.Got)
}

// Is reports whether the target matches ErrTypeMismatch.
func (e *TypeMismatchError) Is(err error) bool { return err == ErrTypeMismatch }

// DenyDeleteError is returned when a Deny delete rule blocks deleting an
// object that still has related objects.
type DenyDeleteError struct {
	Ref          ObjectRef
	Relationship string
	Related      int
}

// Error returns the error string.
func (e *DenyDeleteError) Error() string {
	return fmt.Sprintf("objgraph: cannot delete %s: relationship %q still has %d object(s)",
		e.Ref, e.Relationship, e.Related)
}

// Is reports whether the target matches ErrDenyDelete.
func (e *DenyDeleteError) Is(err error) bool { return err == ErrDenyDelete }

// CyclicCascadeError reports a cycle of entities linked by cascade delete rules.
type CyclicCascadeError struct {
	Path []string // entity names, first and last are equal
}

// Error returns the error string.
func (e *CyclicCascadeError) Error() string {
	return fmt.Sprintf("objgraph: cascade delete cycle: %s", strings.Join(e.Path, " -> "))
}

// Is reports whether the target matches ErrCyclicCascade.
func (e *CyclicCascadeError) Is(err error) bool { return err == ErrCyclicCascade }

// PrivacyError represents a privacy policy violation.
type PrivacyError struct {
	Entity string
	Op     string
	Err    error // decision returned by the policy
}

// Error returns the error string.
func (e *PrivacyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("objgraph: privacy denied %s on %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("objgraph: privacy denied %s on %s", e.Op, e.Entity)
}

// Unwrap returns the policy decision.
func (e *PrivacyError) Unwrap() error {
	return e.Err
}

// IsPrivacyError returns true if the error is a PrivacyError.
func IsPrivacyError(err error) bool {
	var e *PrivacyError
	return errors.As(err, &e)
}

// MutationError wraps a mutation error with the staged operation it came from.
type MutationError struct {
	Index int    // position of the operation in the transaction
	Op    string // "insert", "update", "delete" or "relate"
	Err   error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("objgraph: op %d (%s): %v", e.Index, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during a commit.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "objgraph: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("objgraph: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns an AggregateError holding the non-nil errors,
// or nil if there are none.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &AggregateError{Errors: filtered}
}
