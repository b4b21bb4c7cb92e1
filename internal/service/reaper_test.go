package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/prospector/config"
	"github.com/target/prospector/internal/mocks"
	"github.com/target/prospector/internal/observability/metrics"
)

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:      time.Minute,
		DeadJobMaxAge: 24 * time.Hour,
		BatchSize:     2,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("requires repository", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})
		require.Error(t, err)
		assert.Nil(t, svc)
	})

	t.Run("creates service", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   mocks.NewMockReaperRepository(ctrl),
			Config: testReaperConfig(),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestReaperService_RunOnce(t *testing.T) {
	t.Run("drains full batches until a short one", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockReaperRepository(ctrl)
		m := metrics.New("prospector")

		gomock.InOrder(
			repo.EXPECT().RequeueExpired(gomock.Any(), 2).Return(int64(2), nil),
			repo.EXPECT().RequeueExpired(gomock.Any(), 2).Return(int64(1), nil),
		)
		repo.EXPECT().DeleteDeadJobs(gomock.Any(), 24*time.Hour, 2).Return(int64(0), nil)

		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig(), Metrics: m})
		require.NoError(t, err)

		require.NoError(t, svc.RunOnce(context.Background()))

		count, err := testutil.GatherAndCount(m.Registry(), "prospector_reaper_cycles_total")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("runs both steps when the first fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockReaperRepository(ctrl)

		repo.EXPECT().RequeueExpired(gomock.Any(), 2).Return(int64(0), errors.New("db down"))
		repo.EXPECT().DeleteDeadJobs(gomock.Any(), 24*time.Hour, 2).Return(int64(1), nil)

		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig()})
		require.NoError(t, err)

		err = svc.RunOnce(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requeue expired jobs")
		assert.NotContains(t, err.Error(), "delete dead jobs")
	})

	t.Run("reports cancellation", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mocks.NewMockReaperRepository(ctrl)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		repo.EXPECT().RequeueExpired(gomock.Any(), 2).Return(int64(0), context.Canceled)
		repo.EXPECT().DeleteDeadJobs(gomock.Any(), 24*time.Hour, 2).Return(int64(0), context.Canceled)

		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig()})
		require.NoError(t, err)

		assert.ErrorIs(t, svc.RunOnce(ctx), context.Canceled)
	})
}

func TestReaperService_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)
	repo.EXPECT().RequeueExpired(gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()
	repo.EXPECT().DeleteDeadJobs(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()

	cfg := testReaperConfig()
	cfg.Interval = 10 * time.Millisecond
	svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
