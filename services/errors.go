package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrorKind classifies engine failures so the transport can pick a status code.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindStateConflict
	KindNotFound
	KindConcurrency
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindNotFound:
		return "not_found"
	case KindConcurrency:
		return "concurrency"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by every engine operation.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Code so wrapped copies with a different message still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrValidation = &Error{Kind: KindValidation, Code: "validation_error", Message: "invalid request"}

	ErrAlreadyRegistered        = &Error{Kind: KindStateConflict, Code: "already_registered", Message: "participant already registered for this event"}
	ErrEventNotOpen             = &Error{Kind: KindStateConflict, Code: "event_not_open", Message: "event is not open for registration"}
	ErrCapacityExceeded         = &Error{Kind: KindStateConflict, Code: "capacity_exceeded", Message: "round capacity exceeded"}
	ErrOutOfSequence            = &Error{Kind: KindStateConflict, Code: "out_of_sequence", Message: "round is not the registration's current unresolved round"}
	ErrRegistrationClosed       = &Error{Kind: KindStateConflict, Code: "registration_closed", Message: "registration is already terminal"}
	ErrNoFurtherRounds          = &Error{Kind: KindStateConflict, Code: "no_further_rounds", Message: "event is already at its final round"}
	ErrAtInitialRound           = &Error{Kind: KindStateConflict, Code: "at_initial_round", Message: "event is already at its first round"}
	ErrRegistrationNotCompleted = &Error{Kind: KindStateConflict, Code: "registration_not_completed", Message: "registration has not completed the event"}
	ErrEventNotPublishable      = &Error{Kind: KindStateConflict, Code: "event_not_publishable", Message: "only draft events can be published"}
	ErrEventNotCancellable      = &Error{Kind: KindStateConflict, Code: "event_not_cancellable", Message: "event cannot be cancelled"}
	ErrInvalidOutcome           = &Error{Kind: KindValidation, Code: "invalid_outcome", Message: "outcome must be one of passed, failed, eliminated"}
	ErrForbidden                = &Error{Kind: KindForbidden, Code: "forbidden", Message: "caller role is not allowed to perform this operation"}

	ErrEventNotFound        = &Error{Kind: KindNotFound, Code: "event_not_found", Message: "event not found"}
	ErrRegistrationNotFound = &Error{Kind: KindNotFound, Code: "registration_not_found", Message: "registration not found"}
	ErrCertificateNotFound  = &Error{Kind: KindNotFound, Code: "certificate_not_found", Message: "certificate not found"}

	ErrConcurrency = &Error{Kind: KindConcurrency, Code: "concurrency_conflict", Message: "concurrent update conflict, retry"}
)

// validationError builds a validation failure carrying a caller-facing message.
func validationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: ErrValidation.Code, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err; anything that is not an *Error is internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Postgres SQLSTATE codes the engine reacts to.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgInvalidTextRepr      = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation || errors.Is(err, gorm.ErrDuplicatedKey)
}

func isTransient(err error) bool {
	switch pgCode(err) {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}

// notFoundOr maps gorm's missing-row error onto a domain error, wrapping everything else.
func notFoundOr(err error, notFound error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || pgCode(err) == pgInvalidTextRepr {
		return notFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
