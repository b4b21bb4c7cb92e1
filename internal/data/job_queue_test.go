package data

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/data/pgxutil"
	"github.com/target/prospector/internal/domain/model"
)

func newJobQueue(t *testing.T) (*JobQueue, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	q := NewJobQueue(mock, JobQueueConfig{
		RetryDelay:   30 * time.Second,
		TimeProvider: NewFixedTimeProvider(testNow),
	})
	return q, mock
}

func expectRequeue(mock pgxmock.PgxPoolIface, locked bool, requeued int64) {
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("pg_try_advisory_xact_lock").
		WithArgs(advisoryLockRequeueMajor, advisoryLockRequeueMinor("worker_jobs")).
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(locked))
	if locked {
		mock.ExpectExec("UPDATE worker_jobs SET").
			WithArgs("worker_jobs", testNow, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", requeued))
	}
	mock.ExpectCommit()
}

func TestJobQueue_Reserve(t *testing.T) {
	q, mock := newJobQueue(t)

	expectRequeue(mock, true, 1)
	mock.ExpectBeginTx(pgxutil.ReadCommitted)
	mock.ExpectQuery("WITH cte AS").
		WithArgs("worker_jobs", testNow, testNow.Add(300*time.Second)).
		WillReturnRows(jobRows(model.JobStatusReserved, 1))
	mock.ExpectCommit()

	job, err := q.Reserve(context.Background(), "worker_jobs", 300)
	require.NoError(t, err)
	assert.Equal(t, testJobID, job.ID)
	assert.Equal(t, model.JobStatusReserved, job.Status)
	assert.Equal(t, 1, job.Attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_Reserve_Empty(t *testing.T) {
	q, mock := newJobQueue(t)

	expectRequeue(mock, false, 0)
	mock.ExpectBeginTx(pgxutil.ReadCommitted)
	mock.ExpectQuery("WITH cte AS").
		WithArgs("worker_jobs", testNow, testNow.Add(60*time.Second)).
		WillReturnRows(pgxmock.NewRows(jobCols))
	mock.ExpectRollback()

	_, err := q.Reserve(context.Background(), "worker_jobs", 60)
	require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_Reserve_RejectsNonPositiveVisibility(t *testing.T) {
	q, _ := newJobQueue(t)
	_, err := q.Reserve(context.Background(), "worker_jobs", 0)
	require.Error(t, err)
}

func TestJobQueue_Heartbeat(t *testing.T) {
	q, mock := newJobQueue(t)

	mock.ExpectExec("UPDATE worker_jobs").
		WithArgs(testJobID, testNow.Add(120*time.Second), testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE worker_jobs").
		WithArgs(testJobID, testNow.Add(120*time.Second), testNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := q.Heartbeat(context.Background(), testJobID, 120)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Heartbeat(context.Background(), testJobID, 120)
	require.NoError(t, err)
	assert.False(t, ok, "lease lost once the job is no longer reserved")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_Ack(t *testing.T) {
	q, mock := newJobQueue(t)

	mock.ExpectExec("DELETE FROM worker_jobs").
		WithArgs(testJobID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM worker_jobs").
		WithArgs(testJobID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ok, err := q.Ack(context.Background(), testJobID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Ack(context.Background(), testJobID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.Ack(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_Fail(t *testing.T) {
	tests := []struct {
		name   string
		status model.JobStatus
		dead   bool
	}{
		{name: "retry", status: model.JobStatusPending, dead: false},
		{name: "dead letter", status: model.JobStatusDead, dead: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, mock := newJobQueue(t)

			mock.ExpectQuery("UPDATE worker_jobs SET").
				WithArgs(testJobID, testNow.Add(30*time.Second), "crawler timeout", testNow).
				WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(tt.status))

			res, err := q.Fail(context.Background(), testJobID, "crawler timeout")
			require.NoError(t, err)
			assert.True(t, res.Found)
			assert.Equal(t, tt.dead, res.Dead)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestJobQueue_Fail_NotReserved(t *testing.T) {
	q, mock := newJobQueue(t)

	mock.ExpectQuery("UPDATE worker_jobs SET").
		WithArgs(testJobID, pgxmock.AnyArg(), "x", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"status"}))

	res, err := q.Fail(context.Background(), testJobID, "x")
	require.NoError(t, err)
	assert.False(t, res.Found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_Stats(t *testing.T) {
	q, mock := newJobQueue(t)

	mock.ExpectQuery("count").
		WithArgs("worker_jobs").
		WillReturnRows(pgxmock.NewRows([]string{"pending", "reserved", "dead"}).AddRow(3, 1, 2))

	stats, err := q.Stats(context.Background(), "worker_jobs")
	require.NoError(t, err)
	assert.Equal(t, model.JobStats{Pending: 3, Reserved: 1, Dead: 2}, *stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobQueue_WaitForNotification_NoListener(t *testing.T) {
	q, _ := newJobQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.WaitForNotification(ctx, "worker_jobs"), context.DeadlineExceeded)
}

func TestQueueReaper_DeleteDeadJobs(t *testing.T) {
	q, mock := newJobQueue(t)
	reaper := &QueueReaper{Queue: q, Name: "worker_jobs"}

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery("pg_try_advisory_xact_lock").
		WithArgs(advisoryLockReaperMajor, advisoryLockReaperDeleteDead).
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectExec("DELETE FROM worker_jobs").
		WithArgs("worker_jobs", testNow.Add(-24*time.Hour), 100).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectCommit()

	n, err := reaper.DeleteDeadJobs(context.Background(), 24*time.Hour, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueReaper_RequeueExpired_SkipsWhenLocked(t *testing.T) {
	q, mock := newJobQueue(t)
	reaper := &QueueReaper{Queue: q, Name: "worker_jobs"}

	expectRequeue(mock, false, 0)

	n, err := reaper.RequeueExpired(context.Background(), 500)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLockRequeueMinor_Stable(t *testing.T) {
	a := advisoryLockRequeueMinor("worker_jobs")
	assert.Equal(t, a, advisoryLockRequeueMinor("worker_jobs"))
	assert.GreaterOrEqual(t, a, int64(0))
	assert.NotEqual(t, a, advisoryLockRequeueMinor("other"))
}
