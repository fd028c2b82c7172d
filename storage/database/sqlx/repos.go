// Package sqlxrepos implements the core repository interfaces with
// hand-written SQL over sqlx and PostgreSQL.
package sqlxrepos

import "strconv"

func itoa(n int) string {
	return strconv.Itoa(n)
}
