//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/walteh/relocate/pkg/audit"
	"github.com/walteh/relocate/pkg/audit/postgres"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	store     *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("transfers"),
		tcpostgres.WithUsername("relocate"),
		tcpostgres.WithPassword("relocate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	s.Require().NoError(err, "starting postgres container")
	s.container = container

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	store, err := postgres.Open(ctx, connString, "")
	s.Require().NoError(err)
	s.Require().NoError(store.Migrate(ctx))
	s.Require().NoError(store.Migrate(ctx), "migrate should be idempotent")
	s.store = store
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func newRecord(source, pi string) audit.TransferRecord {
	return audit.TransferRecord{
		Date:             time.Date(2024, 5, 17, 9, 30, 15, 500_000_000, time.FixedZone("CEST", 2*60*60)),
		SourceDirectory:  source,
		TargetDirectory:  "/archive/run1",
		FileName:         "run1.md5",
		PI:               pi,
		SizeInBytes:      60,
		ChecksumVerified: true,
		Remarks:          "integration",
	}
}

func (s *PostgresStoreSuite) TestAppendRoundTrip() {
	ctx := context.Background()

	first, err := s.store.Append(ctx, newRecord("/data/roundtrip-1", "roundtrip"))
	s.Require().NoError(err)
	second, err := s.store.Append(ctx, newRecord("/data/roundtrip-2", "roundtrip"))
	s.Require().NoError(err)
	s.Greater(second, first)

	records, err := s.store.List(ctx, audit.Query{PI: "roundtrip"})
	s.Require().NoError(err)
	s.Require().Len(records, 2)

	got := records[0]
	s.Equal(second, got.ID)
	s.Equal("/data/roundtrip-2", got.SourceDirectory)
	s.True(time.Date(2024, 5, 17, 7, 30, 15, 0, time.UTC).Equal(got.Date), "date should be second precision UTC, got %s", got.Date)
	s.Equal(int64(60), got.SizeInBytes)
	s.True(got.ChecksumVerified)
}

func (s *PostgresStoreSuite) TestAppendRejectsInvalidRecord() {
	ctx := context.Background()

	rec := newRecord("", "invalid")
	_, err := s.store.Append(ctx, rec)
	s.Require().Error(err)
	s.ErrorIs(err, audit.ErrInvalidRecord)

	records, err := s.store.List(ctx, audit.Query{PI: "invalid"})
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()

	for _, src := range []string{"/data/filter-a", "/data/filter-b", "/data/filter-a"} {
		_, err := s.store.Append(ctx, newRecord(src, "filters"))
		s.Require().NoError(err)
	}

	bySource, err := s.store.List(ctx, audit.Query{PI: "filters", Source: "/data/filter-a"})
	s.Require().NoError(err)
	s.Len(bySource, 2)

	limited, err := s.store.List(ctx, audit.Query{PI: "filters", Limit: 1})
	s.Require().NoError(err)
	s.Len(limited, 1)
}
