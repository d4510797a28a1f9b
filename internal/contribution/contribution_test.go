package contribution

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashContributor(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{"0000000000", "880089ce-1dae-31e2-87fb-c3374f5fbfba"},
		{"7165551234", "81f22e47-2bf2-36ec-a1ce-99ddac525628"},
		{"+17165551234", "81f22e47-2bf2-36ec-a1ce-99ddac525628"},
		{"+1", "dd92f8c8-a5ab-32a7-9a31-921b6d854749"},
	}
	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			got := HashContributor(tt.phone)
			assert.Equal(t, tt.want, got)

			id, err := uuid.Parse(got)
			require.NoError(t, err)
			assert.Equal(t, uuid.Version(3), id.Version())
		})
	}
}

func TestMemoryStore_SaveAndList(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, h := range []float64{1.10, 1.25, 1.40} {
		saved, err := m.SaveValid(ctx, Contribution{
			ContributorID: HashContributor("7165551234"),
			StationID:     "ny1000",
			WaterHeight:   Float(h),
			Source:        SourceMMS,
			ReceivedAt:    base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, "NY1000", saved.StationID)
	}
	_, err := m.SaveValid(ctx, Contribution{StationID: "PA1002", WaterHeight: Float(3), Source: SourceSMS})
	require.NoError(t, err)

	list, err := m.ListByStation(ctx, "NY1000", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.InDelta(t, 1.40, *list[0].WaterHeight, 1e-9, "newest first")
	assert.InDelta(t, 1.10, *list[2].WaterHeight, 1e-9)

	limited, err := m.ListByStation(ctx, "ny1000", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := m.ListByStation(ctx, "OH1034", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_SaveInvalid(t *testing.T) {
	m := NewMemoryStore()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	err := m.SaveInvalid(context.Background(), InvalidContribution{
		ContributorID: HashContributor("7165551234"),
		Reference:     "https://api.twilio.com/media/ME1",
		Reason:        "rejected_unclear_image",
	})
	require.NoError(t, err)

	inv := m.Invalid()
	require.Len(t, inv, 1)
	assert.NotEmpty(t, inv[0].ID)
	assert.Equal(t, fixed, inv[0].ReceivedAt)
	assert.Empty(t, m.Valid())
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Close())

	_, err := m.SaveValid(ctx, Contribution{StationID: "NY1000"})
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, m.SaveInvalid(ctx, InvalidContribution{}), ErrClosed)
	_, err = m.ListByStation(ctx, "NY1000", 1)
	require.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore().SaveValid(ctx, Contribution{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	m := NewMemoryStore()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				_, err := m.SaveValid(context.Background(), Contribution{StationID: "NY1000", WaterHeight: Float(1)})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, m.Valid(), 400)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	for _, driver := range []string{"", "memory", "MEMORY"} {
		s, err := Open(ctx, driver, "")
		require.NoError(t, err, driver)
		assert.IsType(t, &MemoryStore{}, s)
	}

	_, err := Open(ctx, "sqlite", "x.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")

	_, err = Open(ctx, DriverPostgres, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a DSN")
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := &SQLStore{dialect: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2 LIMIT $3",
		pg.rebind("SELECT a FROM t WHERE x = ? AND y = ? LIMIT ?"))

	my := &SQLStore{dialect: DriverMySQL}
	assert.Equal(t, "SELECT a FROM t WHERE x = ?", my.rebind("SELECT a FROM t WHERE x = ?"))
}

func TestSQLStore_Schema(t *testing.T) {
	pg := (&SQLStore{dialect: DriverPostgres}).schema()
	require.Len(t, pg, 2)
	assert.Contains(t, pg[0], "TIMESTAMPTZ")
	assert.Contains(t, pg[1], "invalid_contributions")

	my := (&SQLStore{dialect: DriverMySQL}).schema()
	assert.Contains(t, my[0], "DATETIME(6)")
	assert.NotContains(t, my[0], "PRECISION")
}

func TestNewSQLStore_UnknownDialect(t *testing.T) {
	_, err := NewSQLStore(nil, "oracle")
	require.Error(t, err)
}

func TestNormalizeMySQLDSN(t *testing.T) {
	dsn, err := normalizeMySQLDSN("crowd:secret@tcp(db:3306)/crowdgauge")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "tcp(db:3306)/crowdgauge")

	_, err = normalizeMySQLDSN("not a dsn")
	require.Error(t, err)
}

// TestSQLStore_Postgres runs against a live database when
// CROWDGAUGE_TEST_POSTGRES_DSN is set.
func TestSQLStore_Postgres(t *testing.T) {
	dsn := os.Getenv("CROWDGAUGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CROWDGAUGE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, DriverPostgres, dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	station := "TS" + uuid.NewString()[:4]
	saved, err := s.SaveValid(ctx, Contribution{
		ContributorID: HashContributor("7165551234"),
		StationID:     station,
		WaterHeight:   Float(2.5),
		Source:        SourceMMS,
	})
	require.NoError(t, err)

	list, err := s.ListByStation(ctx, station, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)
	assert.Nil(t, list[0].Temperature)
	require.NoError(t, s.SaveInvalid(ctx, InvalidContribution{ContributorID: saved.ContributorID, Reference: "x", Reason: "test"}))
}
