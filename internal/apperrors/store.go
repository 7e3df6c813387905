package apperrors

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// FromStore translates an error returned by the store into the taxonomy.
// Errors that already carry a kind, and errors it cannot classify, are
// returned unchanged.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromPgError(pgErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewStoreUnavailable("store did not answer in time", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return NewStoreUnavailable("store is unreachable", err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return NewStoreUnavailable("store is unreachable", err)
	}
	return err
}

func fromPgError(pgErr *pgconn.PgError) error {
	class := pgErr.Code
	if len(class) >= 2 {
		class = class[:2]
	}

	switch {
	case class == "23" || pgErr.Code == "P0001":
		return NewConstraintViolation(pgErr.Message, pgErr.Detail, pgErr)
	case class == "22":
		appErr := NewInvalidFieldType(pgErr.ColumnName, "", pgErr.Message)
		if pgErr.ColumnName == "" {
			appErr.Message = pgErr.Message
		}
		appErr.Err = pgErr
		return appErr
	case class == "08", class == "53", class == "57" && strings.HasPrefix(pgErr.Code, "57P"):
		return NewStoreUnavailable(pgErr.Message, pgErr)
	case pgErr.Code == "57014":
		return NewStoreUnavailable("statement timed out", pgErr)
	case pgErr.Code == "42P01":
		return &Error{Kind: UnknownTable, Table: pgErr.TableName, Message: pgErr.Message, Err: pgErr}
	case pgErr.Code == "42883":
		// no comparison operator for the column type, usually a guessed identity
		return &Error{Kind: InvalidRequest, Message: pgErr.Message, Err: pgErr}
	case pgErr.Code == "42703":
		return &Error{Kind: UnknownColumn, Column: pgErr.ColumnName, Message: pgErr.Message, Err: pgErr}
	}
	return pgErr
}
