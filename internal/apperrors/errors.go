package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	UnknownTable         Kind = "UnknownTable"
	UnknownColumn        Kind = "UnknownColumn"
	MissingRequiredField Kind = "MissingRequiredField"
	InvalidFieldType     Kind = "InvalidFieldType"
	AmbiguousIdentity    Kind = "AmbiguousIdentity"
	ConstraintViolation  Kind = "ConstraintViolation"
	RecordNotFound       Kind = "RecordNotFound"
	StoreUnavailable     Kind = "StoreUnavailable"
	InvalidRequest       Kind = "InvalidRequest"
	Internal             Kind = "Internal"
)

// Error is the engine's error type. Message is safe to show to an admin;
// for ConstraintViolation it is the store's message verbatim.
type Error struct {
	Kind    Kind
	Message string
	Table   string
	Column  string
	Value   any
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind != ConstraintViolation {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so callers can write
// errors.Is(err, &apperrors.Error{Kind: apperrors.RecordNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// IsValidation reports whether the kind is raised before the store is touched.
func (k Kind) IsValidation() bool {
	switch k {
	case UnknownTable, UnknownColumn, MissingRequiredField, InvalidFieldType, InvalidRequest:
		return true
	}
	return false
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case UnknownTable, RecordNotFound:
		return http.StatusNotFound
	case UnknownColumn, MissingRequiredField, InvalidFieldType, InvalidRequest:
		return http.StatusBadRequest
	case AmbiguousIdentity, ConstraintViolation:
		return http.StatusConflict
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func NewUnknownTable(table string) *Error {
	return &Error{
		Kind:    UnknownTable,
		Table:   table,
		Message: fmt.Sprintf("table %q does not exist", table),
	}
}

func NewUnknownColumn(table, column string) *Error {
	return &Error{
		Kind:    UnknownColumn,
		Table:   table,
		Column:  column,
		Message: fmt.Sprintf("column %q does not exist in table %q", column, table),
	}
}

func NewMissingRequiredField(table, column string) *Error {
	return &Error{
		Kind:    MissingRequiredField,
		Table:   table,
		Column:  column,
		Message: fmt.Sprintf("column %q is required", column),
	}
}

func NewInvalidFieldType(column string, value any, reason string) *Error {
	return &Error{
		Kind:    InvalidFieldType,
		Column:  column,
		Value:   value,
		Message: fmt.Sprintf("invalid value %v for column %q: %s", value, column, reason),
	}
}

func NewAmbiguousIdentity(table, column, reason string) *Error {
	return &Error{
		Kind:    AmbiguousIdentity,
		Table:   table,
		Column:  column,
		Message: fmt.Sprintf("identity column %q of table %q is ambiguous: %s", column, table, reason),
	}
}

func NewConstraintViolation(message, detail string, err error) *Error {
	return &Error{
		Kind:    ConstraintViolation,
		Message: message,
		Detail:  detail,
		Err:     err,
	}
}

func NewRecordNotFound(table string, identity any) *Error {
	return &Error{
		Kind:    RecordNotFound,
		Table:   table,
		Value:   identity,
		Message: fmt.Sprintf("no row in %q with identity %v", table, identity),
	}
}

func NewStoreUnavailable(message string, err error) *Error {
	return &Error{
		Kind:    StoreUnavailable,
		Message: message,
		Err:     err,
	}
}

func NewInvalidRequest(message string) *Error {
	return &Error{
		Kind:    InvalidRequest,
		Message: message,
	}
}
