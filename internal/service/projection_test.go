package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/prospector/internal/domain/model"
	"github.com/target/prospector/internal/mocks"
)

func strPtr(s string) *string { return &s }

func prospectChange(t *testing.T, runID string) model.ChangeEvent {
	t.Helper()
	evt, err := model.NewChangeEvent(model.TableProspects, model.OperationInsert, model.Prospect{
		ID: "p1", RunID: runID, URL: "https://acme.example", CreatedAt: testEpoch,
	})
	require.NoError(t, err)
	return evt
}

func decodeProspectView(t *testing.T, raw json.RawMessage) model.ProspectView {
	t.Helper()
	var v model.ProspectView
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestProjectionService_EnrichCachesRunContext(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProjectionRepository(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)

	rc := &model.RunContext{RunID: "r1", Location: strPtr("Austin, TX"), AudienceName: strPtr("Local businesses")}
	cache.EXPECT().Get(gomock.Any(), "run_context:r1").Return(nil, nil)
	repo.EXPECT().GetRunContext(gomock.Any(), "r1").Return(rc, nil)
	cache.EXPECT().Set(gomock.Any(), "run_context:r1", gomock.Any(), time.Minute).Return(nil)

	svc, err := NewProjectionService(ProjectionServiceOptions{
		Repo: repo, Cache: cache, CacheTTL: time.Minute, Logger: discardLogger(),
	})
	require.NoError(t, err)

	raw, err := svc.Enrich(ctx, prospectChange(t, "r1"))
	require.NoError(t, err)
	v := decodeProspectView(t, raw)
	assert.Equal(t, "Austin, TX", *v.Location)
	assert.Equal(t, "Local businesses", *v.AudienceName)
}

func TestProjectionService_EnrichUsesCachedContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProjectionRepository(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)

	cached, err := json.Marshal(model.RunContext{RunID: "r1", Location: strPtr("Denver, CO")})
	require.NoError(t, err)
	cache.EXPECT().Get(gomock.Any(), "run_context:r1").Return(cached, nil)

	svc, err := NewProjectionService(ProjectionServiceOptions{Repo: repo, Cache: cache, Logger: discardLogger()})
	require.NoError(t, err)

	raw, err := svc.Enrich(context.Background(), prospectChange(t, "r1"))
	require.NoError(t, err)
	v := decodeProspectView(t, raw)
	assert.Equal(t, "Denver, CO", *v.Location)
	assert.Nil(t, v.AudienceName)
}

func TestProjectionService_EnrichFallsBackWhenCacheFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProjectionRepository(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("redis: connection refused"))
	repo.EXPECT().GetRunContext(gomock.Any(), "r1").Return(nil, nil)

	svc, err := NewProjectionService(ProjectionServiceOptions{Repo: repo, Cache: cache, Logger: discardLogger()})
	require.NoError(t, err)

	raw, err := svc.Enrich(context.Background(), prospectChange(t, "r1"))
	require.NoError(t, err)
	v := decodeProspectView(t, raw)
	assert.Nil(t, v.Location, "a missing run yields nil joined fields")
}

func TestProjectionService_EnrichRunWithoutAudience(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockProjectionRepository(ctrl)

	svc, err := NewProjectionService(ProjectionServiceOptions{Repo: repo, Logger: discardLogger()})
	require.NoError(t, err)

	evt, err := model.NewChangeEvent(model.TableWorkflowRuns, model.OperationUpdate, model.WorkflowRun{
		ID: "r1", Location: "Austin, TX", Status: model.RunStatusRunning, CreatedAt: testEpoch, UpdatedAt: testEpoch,
	})
	require.NoError(t, err)

	raw, err := svc.Enrich(context.Background(), evt)
	require.NoError(t, err)
	var v model.RunView
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, "r1", v.ID)
	assert.Nil(t, v.AudienceName)
}

func TestProjectionService_ReadsFromStore(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t)
	aud := createAudience(t, s, "Local businesses")
	first := enqueueRun(t, s, aud.ID)
	clock.Advance(time.Second)
	second := enqueueRun(t, s, aud.ID)

	svc, err := NewProjectionService(ProjectionServiceOptions{Repo: s.Projection(), Logger: discardLogger()})
	require.NoError(t, err)

	runs, err := svc.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, "Local businesses", *runs[0].AudienceName)

	view, err := svc.GetRun(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, view.ID)
}
