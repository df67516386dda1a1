package shared

import "context"

// Storage keys under which the roster and the ledger are persisted.
const (
	KeyStudents   = "students"
	KeyAttendance = "attendance"
)

// Store is the string-keyed byte store the roster and the ledger write
// through. Get reports ok=false for an absent key.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
