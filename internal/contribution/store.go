package contribution

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by stores after Close.
var ErrClosed = errors.New("contribution store is closed")

// Store persists valid and invalid contributions. Implementations are safe
// for concurrent use.
type Store interface {
	// SaveValid assigns an id and timestamp when missing and returns the
	// stored record.
	SaveValid(ctx context.Context, c Contribution) (Contribution, error)
	SaveInvalid(ctx context.Context, c InvalidContribution) error
	// ListByStation returns the newest contributions first. A non-positive
	// limit returns all of them.
	ListByStation(ctx context.Context, stationID string, limit int) ([]Contribution, error)
	Close() error
}

// Open selects a store by driver name. An empty driver or "memory" returns
// a MemoryStore; "postgres" and "mysql" open a SQLStore and migrate it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", "memory":
		return NewMemoryStore(), nil
	case DriverPostgres, DriverMySQL:
		s, err := OpenSQL(driver, dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q (must be memory, %s or %s)", driver, DriverPostgres, DriverMySQL)
	}
}
