package contribution

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // postgres driver
)

// Supported SQL drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// SQLStore persists contributions through database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// OpenSQL opens a connection pool for driver. MySQL DSNs are normalized to
// parse timestamps into time.Time.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s store needs a DSN", driver)
	}
	driver = strings.ToLower(driver)
	if driver == DriverMySQL {
		normalized, err := normalizeMySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		dsn = normalized
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return NewSQLStore(db, driver)
}

// NewSQLStore wraps an existing pool. dialect selects placeholder and DDL
// syntax.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	switch dialect {
	case DriverPostgres, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported SQL dialect %q", dialect)
	}
	return &SQLStore{db: db, dialect: dialect, now: time.Now}, nil
}

func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Migrate creates the contribution tables when they are absent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate contribution store: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) schema() []string {
	floatType, timeType := "DOUBLE PRECISION", "TIMESTAMPTZ"
	if s.dialect == DriverMySQL {
		floatType, timeType = "DOUBLE", "DATETIME(6)"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS contributions (
	id VARCHAR(36) PRIMARY KEY,
	contributor_id VARCHAR(36) NOT NULL,
	station_id VARCHAR(16) NOT NULL,
	water_height ` + floatType + ` NULL,
	temperature ` + floatType + ` NULL,
	source VARCHAR(8) NOT NULL,
	received_at ` + timeType + ` NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS invalid_contributions (
	id VARCHAR(36) PRIMARY KEY,
	contributor_id VARCHAR(36) NOT NULL,
	reference TEXT NOT NULL,
	reason VARCHAR(64) NOT NULL,
	received_at ` + timeType + ` NOT NULL
)`,
	}
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) SaveValid(ctx context.Context, c Contribution) (Contribution, error) {
	stamp(&c.ID, &c.ReceivedAt, s.now)
	c.StationID = strings.ToUpper(c.StationID)
	q := s.rebind(`INSERT INTO contributions
	(id, contributor_id, station_id, water_height, temperature, source, received_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q, c.ID, c.ContributorID, c.StationID,
		nullFloat(c.WaterHeight), nullFloat(c.Temperature), string(c.Source), c.ReceivedAt.UTC())
	if err != nil {
		return Contribution{}, fmt.Errorf("save contribution: %w", err)
	}
	return c, nil
}

func (s *SQLStore) SaveInvalid(ctx context.Context, c InvalidContribution) error {
	stamp(&c.ID, &c.ReceivedAt, s.now)
	q := s.rebind(`INSERT INTO invalid_contributions
	(id, contributor_id, reference, reason, received_at)
	VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, c.ID, c.ContributorID, c.Reference, c.Reason, c.ReceivedAt.UTC()); err != nil {
		return fmt.Errorf("save invalid contribution: %w", err)
	}
	return nil
}

func (s *SQLStore) ListByStation(ctx context.Context, stationID string, limit int) ([]Contribution, error) {
	q := `SELECT id, contributor_id, station_id, water_height, temperature, source, received_at
	FROM contributions WHERE station_id = ? ORDER BY received_at DESC`
	args := []any{strings.ToUpper(stationID)}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Contribution
	for rows.Next() {
		var (
			c           Contribution
			height, tmp sql.NullFloat64
			source      string
		)
		if err := rows.Scan(&c.ID, &c.ContributorID, &c.StationID, &height, &tmp, &source, &c.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.WaterHeight = floatPtr(height)
		c.Temperature = floatPtr(tmp)
		c.Source = Source(source)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return Float(v.Float64)
}
