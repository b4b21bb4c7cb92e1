package data

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/prospector/internal/domain/model"
)

func TestChangeStream_Decode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewChangeStream(mock, nil, nil)

	t.Run("full row image", func(t *testing.T) {
		evt, err := s.Decode(context.Background(),
			`{"table":"workflow_runs","operation":"update","row":{"id":"`+testRunID+`","status":"running"}}`)
		require.NoError(t, err)
		assert.Equal(t, model.TableWorkflowRuns, evt.Table)
		assert.Equal(t, model.OperationUpdate, evt.Operation)
		id, err := evt.RowID()
		require.NoError(t, err)
		assert.Equal(t, testRunID, id)
	})

	t.Run("truncated payload is re-read", func(t *testing.T) {
		image := `{"id":"` + testProspectID + `","workflow_run_id":"` + testRunID + `","url":"https://x.com"}`
		mock.ExpectQuery("SELECT row_to_json\\(t\\)::text FROM prospects").
			WithArgs(testProspectID).
			WillReturnRows(pgxmock.NewRows([]string{"row_to_json"}).AddRow(image))

		evt, err := s.Decode(context.Background(),
			`{"table":"prospects","operation":"insert","row":{"id":"`+testProspectID+`"},"truncated":true}`)
		require.NoError(t, err)
		p, err := evt.DecodeProspect()
		require.NoError(t, err)
		assert.Equal(t, "https://x.com", p.URL)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown table rejected", func(t *testing.T) {
		_, err := s.Decode(context.Background(), `{"table":"contacts","operation":"insert","row":{"id":"x"}}`)
		require.Error(t, err)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := s.Decode(context.Background(), `not json`)
		require.Error(t, err)
	})
}
