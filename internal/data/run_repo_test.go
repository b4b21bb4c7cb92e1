package data

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

func newRunRepo(t *testing.T) (*RunRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRunRepo(mock, RunRepoOptions{TimeProvider: NewFixedTimeProvider(testNow)}), mock
}

func TestRunRepo_Transition_Forward(t *testing.T) {
	repo, mock := newRunRepo(t)

	mock.ExpectQuery("UPDATE workflow_runs SET").
		WithArgs(testRunID, "running", testNow, pgxmock.AnyArg(), []string{"queued"}).
		WillReturnRows(runRows(model.RunStatusRunning))

	res, err := repo.Transition(context.Background(), model.TransitionRunRequest{
		RunID: testRunID, Status: model.RunStatusRunning,
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.RunStatusRunning, res.Run.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepo_Transition_RepeatIsNoop(t *testing.T) {
	repo, mock := newRunRepo(t)

	mock.ExpectQuery("UPDATE workflow_runs SET").
		WithArgs(testRunID, "completed", testNow, pgxmock.AnyArg(), []string{"running"}).
		WillReturnRows(pgxmock.NewRows(runCols))
	mock.ExpectQuery("SELECT (.+) FROM workflow_runs WHERE id").
		WithArgs(testRunID).
		WillReturnRows(runRows(model.RunStatusCompleted))

	res, err := repo.Transition(context.Background(), model.TransitionRunRequest{
		RunID: testRunID, Status: model.RunStatusCompleted,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, model.RunStatusCompleted, res.Run.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepo_Transition_OutOfTerminalConflicts(t *testing.T) {
	repo, mock := newRunRepo(t)

	mock.ExpectQuery("UPDATE workflow_runs SET").
		WithArgs(testRunID, "running", testNow, pgxmock.AnyArg(), []string{"queued"}).
		WillReturnRows(pgxmock.NewRows(runCols))
	mock.ExpectQuery("SELECT (.+) FROM workflow_runs WHERE id").
		WithArgs(testRunID).
		WillReturnRows(runRows(model.RunStatusFailed))

	_, err := repo.Transition(context.Background(), model.TransitionRunRequest{
		RunID: testRunID, Status: model.RunStatusRunning,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepo_Transition_MissingRun(t *testing.T) {
	repo, mock := newRunRepo(t)

	mock.ExpectQuery("UPDATE workflow_runs SET").
		WithArgs(testRunID, "failed", testNow, pgxmock.AnyArg(), []string{"queued", "running"}).
		WillReturnRows(pgxmock.NewRows(runCols))
	mock.ExpectQuery("SELECT (.+) FROM workflow_runs WHERE id").
		WithArgs(testRunID).
		WillReturnRows(pgxmock.NewRows(runCols))

	_, err := repo.Transition(context.Background(), model.TransitionRunRequest{
		RunID: testRunID, Status: model.RunStatusFailed, Error: strPtr("crawler crashed"),
	})
	assert.True(t, apperrors.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepo_Transition_InvalidStatus(t *testing.T) {
	repo, _ := newRunRepo(t)

	_, err := repo.Transition(context.Background(), model.TransitionRunRequest{
		RunID: testRunID, Status: "paused",
	})
	assert.True(t, apperrors.IsValidation(err))
}
