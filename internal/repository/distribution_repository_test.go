package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/recruitos/vendor-engine/internal/models"
)

func newDistributionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func distributionRows(id string, status models.DistributionStatus, submitted int, max interface{}) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "tenant_id", "job_id", "agency_id", "tier", "status", "exclusive_until",
		"max_candidates", "submitted_count", "accepted_count", "rejected_count", "created_at", "updated_at"}).
		AddRow(id, "t1", "job-1", "agency-a", "STANDARD", string(status), nil, max, submitted, 0, 0, now, now)
}

func TestDistributionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO distributions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	dist := &models.Distribution{
		TenantID: "t1",
		JobID:    "job-1",
		AgencyID: "agency-a",
		Tier:     models.TierStandard,
		Status:   models.DistributionPending,
	}
	require.NoError(t, repo.Create(context.Background(), dist))
	require.NotEmpty(t, dist.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepositoryCreateExclusiveGuard(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	// A live exclusive row for the job makes the guarded insert touch zero rows.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO distributions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), &models.Distribution{
		TenantID: "t1",
		JobID:    "job-1",
		AgencyID: "agency-b",
		Tier:     models.TierExclusive,
		Status:   models.DistributionPending,
	})
	require.ErrorIs(t, err, ErrExclusiveHeld)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepositoryCreateExclusiveIndexRace(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	// Two creates race past the NOT EXISTS check; the loser hits the partial
	// unique index and must come back as an exclusivity conflict, not a
	// generic unique violation.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO distributions")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "distributions_live_exclusive_idx"})

	err := repo.Create(context.Background(), &models.Distribution{
		TenantID: "t1",
		JobID:    "job-1",
		AgencyID: "agency-b",
		Tier:     models.TierExclusive,
		Status:   models.DistributionPending,
	})
	require.ErrorIs(t, err, ErrExclusiveHeld)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepositoryCreateDuplicatePair(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO distributions")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Distribution{
		TenantID: "t1",
		JobID:    "job-1",
		AgencyID: "agency-a",
		Tier:     models.TierStandard,
		Status:   models.DistributionPending,
	})
	require.ErrorIs(t, err, ErrUniqueViolation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepositoryUpdateStatusStaleRead(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE distributions SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "t1", "dist-1", models.DistributionActive, models.DistributionPaused)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepositoryReserveSubmission(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE distributions")).
		WillReturnRows(distributionRows("dist-1", models.DistributionCompleted, 3, 3))

	dist, err := repo.ReserveSubmission(context.Background(), "t1", "dist-1")
	require.NoError(t, err)
	require.Equal(t, 3, dist.SubmittedCount)
	require.Equal(t, models.DistributionCompleted, dist.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepositoryReserveSubmissionAtCap(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	// The guard and increment share one statement; a full cap yields no row.
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE distributions")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ReserveSubmission(context.Background(), "t1", "dist-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepositoryReleaseReservation(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET submitted_count = submitted_count - 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReleaseReservation(context.Background(), "t1", "dist-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepositoryReleaseReservationNothingHeld(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("SET submitted_count = submitted_count - 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ReleaseReservation(context.Background(), "t1", "dist-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributionRepositoryCloseForJob(t *testing.T) {
	db, mock, cleanup := newDistributionRepoMock(t)
	defer cleanup()

	repo := NewDistributionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE distributions SET status = 'COMPLETED'")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	closed, err := repo.CloseForJob(context.Background(), "t1", "job-1")
	require.NoError(t, err)
	require.EqualValues(t, 2, closed)
	require.NoError(t, mock.ExpectationsWereMet())
}
