package mysql

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/storage"
)

// Server error numbers worth retrying.
const (
	errConCount       = 1040 // ER_CON_COUNT_ERROR: too many connections
	errLockWait       = 1205 // ER_LOCK_WAIT_TIMEOUT
	errLockDeadlock   = 1213 // ER_LOCK_DEADLOCK
	errServerGone     = 2006 // CR_SERVER_GONE_ERROR
	errServerLost     = 2013 // CR_SERVER_LOST
	errServerShutdown = 1053 // ER_SERVER_SHUTDOWN
)

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errConCount, errLockWait, errLockDeadlock, errServerGone, errServerLost, errServerShutdown:
			return true
		}
		return false
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	return storage.IsNetworkTransient(err)
}
