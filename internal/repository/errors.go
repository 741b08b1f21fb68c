// Package repository defines the MySQL data access layer and the error
// values shared across repositories.  Handlers and services use errors.Is
// against these sentinels instead of inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the referenced row does not exist, or when a
// conditional update matched nothing (e.g. joining a session that already
// ended).
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with a unique key, such as
// registering an email or username that is already taken.
var ErrConflict = errors.New("conflict")

// isDuplicate reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
