// Package accountdb implements account.Repository on gorm. Postgres is the
// production dialect; SQLite serves local runs and tests.
package accountdb
