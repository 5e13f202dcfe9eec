package sqlite

import (
	"database/sql"
	"errors"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/aretw0/productbaker/pkg/core"
)

// classify maps native SQLite failures to storage reasons.
// Errors it does not recognize are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return core.NewError("", "", core.ReasonInvalidState, err)
	}

	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	// extended result codes carry the primary code in the low byte
	switch sqliteErr.Code() & 0xff {
	case sqlite3lib.SQLITE_PERM, sqlite3lib.SQLITE_READONLY, sqlite3lib.SQLITE_AUTH, sqlite3lib.SQLITE_CANTOPEN:
		return core.NewError("", "", core.ReasonAccessDenied, err)
	case sqlite3lib.SQLITE_FULL:
		return core.NewError("", "", core.ReasonQuotaExceeded, err)
	case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
		return core.NewError("", "", core.ReasonBlocked, err)
	case sqlite3lib.SQLITE_MISUSE, sqlite3lib.SQLITE_CORRUPT, sqlite3lib.SQLITE_NOTADB:
		return core.NewError("", "", core.ReasonInvalidState, err)
	}
	return err
}
