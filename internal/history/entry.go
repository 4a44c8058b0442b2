// Package history persists captured commands per host and per UTC day.
package history

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the per-day bucket key.
const DateLayout = "2006-01-02"

// DefaultMaxPerDay caps the entries kept for one host on one day.
const DefaultMaxPerDay = 200

// Entry is one captured command as stored and served to clients.
type Entry struct {
	ID             string    `json:"id"`
	User           string    `json:"user,omitempty"`
	Cmd            string    `json:"cmd"`
	Output         string    `json:"output"`
	Duration       int64     `json:"duration"` // milliseconds
	Timestamp      time.Time `json:"timestamp"`
	Host           string    `json:"host"`
	ConnectionName string    `json:"connectionName"`
	ExecutionType  string    `json:"executionType"`
}

// Day returns the entry's bucket key.
func (e Entry) Day() string {
	return e.Timestamp.UTC().Format(DateLayout)
}

// ByDate maps a day key to entries, newest first.
type ByDate map[string][]Entry

// ErrStorage matches every error returned by the store.
var ErrStorage = errors.New("history storage")

// StorageError wraps a persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports true for ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
