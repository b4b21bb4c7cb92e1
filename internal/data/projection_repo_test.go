package data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

var prospectViewCols = []string{"id", "workflow_run_id", "url", "source_query", "created_at", "location", "audience_name"}

func newProjectionRepo(t *testing.T) (*ProjectionRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewProjectionRepo(mock, nil), mock
}

func TestProjectionRepo_ListRuns(t *testing.T) {
	repo, mock := newProjectionRepo(t)

	cols := append([]string{}, runCols[:2]...)
	cols = append(cols, "audience_name")
	cols = append(cols, runCols[2:]...)
	mock.ExpectQuery("FROM workflow_runs r\\s+LEFT JOIN audiences").
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(testRunID, strPtr(testAudienceID), strPtr("Local businesses"), "Johannesburg", 5,
				model.RunStatusQueued, (*string)(nil), (*time.Time)(nil), (*time.Time)(nil), testNow, testNow).
			AddRow("9a1b1c1d-0000-4000-8000-000000000001", (*string)(nil), (*string)(nil), "Cape Town", 3,
				model.RunStatusCompleted, (*string)(nil), (*time.Time)(nil), (*time.Time)(nil), testNow, testNow))

	views, err := repo.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Local businesses", *views[0].AudienceName)
	assert.Nil(t, views[1].AudienceName, "detached run keeps its row with a null audience")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionRepo_ListProspects_JoinGap(t *testing.T) {
	repo, mock := newProjectionRepo(t)

	mock.ExpectQuery("FROM prospects p").
		WithArgs(maxListLimit).
		WillReturnRows(pgxmock.NewRows(prospectViewCols).
			AddRow(testProspectID, testRunID, "https://x.com", (*string)(nil), testNow,
				strPtr("Johannesburg"), (*string)(nil)))

	views, err := repo.ListProspects(context.Background(), 5000)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Johannesburg", *views[0].Location)
	assert.Nil(t, views[0].AudienceName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionRepo_GetRunContext(t *testing.T) {
	repo, mock := newProjectionRepo(t)

	mock.ExpectQuery("SELECT r.location, a.name").
		WithArgs(testRunID).
		WillReturnRows(pgxmock.NewRows([]string{"location", "name"}).
			AddRow(strPtr("Johannesburg"), strPtr("Local businesses")))
	mock.ExpectQuery("SELECT r.location, a.name").
		WithArgs(testRunID).
		WillReturnRows(pgxmock.NewRows([]string{"location", "name"}))

	rc, err := repo.GetRunContext(context.Background(), testRunID)
	require.NoError(t, err)
	assert.Equal(t, "Johannesburg", *rc.Location)
	assert.Equal(t, "Local businesses", *rc.AudienceName)

	rc, err = repo.GetRunContext(context.Background(), testRunID)
	require.NoError(t, err)
	assert.Equal(t, testRunID, rc.RunID)
	assert.Nil(t, rc.Location)
	assert.Nil(t, rc.AudienceName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionRepo_GetRunView_NotFound(t *testing.T) {
	repo, mock := newProjectionRepo(t)

	_, err := repo.GetRunView(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionRepo_GetProspectDetail(t *testing.T) {
	repo, mock := newProjectionRepo(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery("FROM prospects p").
		WithArgs(testProspectID).
		WillReturnRows(pgxmock.NewRows(prospectViewCols).
			AddRow(testProspectID, testRunID, "https://x.com", strPtr("plumbers"), testNow,
				strPtr("Johannesburg"), strPtr("Local businesses")))
	mock.ExpectQuery("FROM site_analyses").
		WithArgs(testProspectID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "prospect_id", "scores", "tech_issues", "analyzed_at"}).
			AddRow("5e5e5e5e-0000-4000-8000-000000000005", testProspectID,
				map[string]float64{"seo": 0.4}, json.RawMessage(`["no https"]`), testNow))
	mock.ExpectQuery("FROM contacts").
		WithArgs(testProspectID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "prospect_id", "type", "value", "created_at"}).
			AddRow("6e6e6e6e-0000-4000-8000-000000000006", testProspectID, model.ContactTypeEmail,
				"owner@x.com", testNow))
	mock.ExpectCommit()

	detail, err := repo.GetProspectDetail(context.Background(), testProspectID)
	require.NoError(t, err)
	assert.Equal(t, "https://x.com", detail.URL)
	require.NotNil(t, detail.Analysis)
	assert.InDelta(t, 0.4, detail.Analysis.Scores["seo"], 1e-9)
	require.Len(t, detail.Contacts, 1)
	assert.Equal(t, "owner@x.com", detail.Contacts[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}
