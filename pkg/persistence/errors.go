package persistence

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("persistence: not found")

// Error wraps a failed persistence operation with the site and
// underlying driver error, mirroring the teacher's struct-error
// convention (operation name, context, wrapped cause).
type Error struct {
	Op   string
	Site uint64
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persistence %s (site %d): %v", e.Op, e.Site, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// mapMySQLError classifies a driver error into a persistence.Error,
// recognizing the MySQL error numbers that matter to callers (duplicate
// key, deadlock/lock-wait-timeout) the way the teacher's postgres store
// classifies pg error codes.
func mapMySQLError(op string, site uint64, err error) error {
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062: // ER_DUP_ENTRY
			return &Error{Op: op, Site: site, Err: fmt.Errorf("duplicate row: %w", err)}
		case 1213, 1205: // ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
			return &Error{Op: op, Site: site, Err: fmt.Errorf("lock contention, retry: %w", err)}
		}
	}

	return &Error{Op: op, Site: site, Err: err}
}
