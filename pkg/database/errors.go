package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	mssql "github.com/microsoft/go-mssqldb"

	apperrors "github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/errors"
)

// SQL Server error numbers that matter for classification.
const (
	msgDeadlockVictim  = 1205  // transaction deadlock victim
	msgLockTimeout     = 1222  // lock request timeout
	msgInvalidObject   = 208   // invalid object name
	msgInvalidColumn   = 207   // invalid column name
	msgLoginFailed     = 18456 // login failed for user
	msgPermissionDeny  = 229   // permission denied on object
	msgDatabaseOffline = 942   // database cannot be opened
)

// ClassifyStoreError converts a driver-level failure into the store error
// taxonomy. Deadlocks, timeouts and connection drops are transient; schema
// and auth failures are permanent. Unrecognized errors default to transient
// so the worker loop keeps retrying rather than wedging.
func ClassifyStoreError(err error, message string) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Number {
		case msgInvalidObject, msgInvalidColumn, msgLoginFailed, msgPermissionDeny, msgDatabaseOffline:
			return apperrors.PermanentStore(err, message)
		case msgDeadlockVictim, msgLockTimeout:
			return apperrors.TransientStore(err, message)
		}
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.EOF),
		errors.Is(err, context.DeadlineExceeded):
		return apperrors.TransientStore(err, message)
	}

	return apperrors.TransientStore(err, message)
}
