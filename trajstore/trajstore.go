// Package trajstore selects a trajectory persistence backend.
package trajstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gurpartap/taskloop/agent"
	"github.com/Gurpartap/taskloop/trajstore/badger"
	"github.com/Gurpartap/taskloop/trajstore/file"
	"github.com/Gurpartap/taskloop/trajstore/inmem"
	"github.com/Gurpartap/taskloop/trajstore/sqlite"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverFile   = "file"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown trajectory store driver")

// Store is the full backend surface used by the CLI and HTTP API.
type Store interface {
	agent.TrajectoryStore
	List(ctx context.Context) ([]string, error)
	Close() error
}

var (
	_ Store = (*inmem.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*badger.Store)(nil)
	_ Store = (*file.Store)(nil)
)

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverMemory, DriverSQLite, DriverBadger, DriverFile}
}

// Open constructs the named backend. path is a database file for sqlite, a
// directory for badger and file, and ignored for memory.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return inmem.New(), nil
	case DriverSQLite:
		return sqlite.Open(path)
	case DriverBadger:
		return badger.Open(path)
	case DriverFile:
		if path == "" {
			return nil, fmt.Errorf("open file store: path is required")
		}
		return file.Open(path)
	default:
		return nil, fmt.Errorf("%w: %q (allowed: %v)", ErrUnknownDriver, driver, Drivers())
	}
}
