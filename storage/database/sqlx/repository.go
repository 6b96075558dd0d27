package sqlxrepos

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shuleboard/core"
)

const uniqueViolation = "23505"

// dbClosedMsg is the message of the unexported error database/sql returns once DB.Close has been called.
const dbClosedMsg = "sql: database is closed"

type repository struct {
	exec core.DBExecutor
}

// dbError wraps err with msg. A closed connection pool becomes a core shutdown error.
func dbError(err error, msg string) error {
	if errors.Is(err, sql.ErrConnDone) || errors.Cause(err).Error() == dbClosedMsg {
		return core.NewShutdownError(msg + ": " + err.Error())
	}
	return errors.Wrap(err, msg)
}

// trapNoRowsErr maps psql "no rows" err to `notFound`
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return dbError(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// validID reports whether id can be looked up in a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
