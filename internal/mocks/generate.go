// Package mocks provides gomock implementations of the core ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockDispatchRepository(ctrl)
//	repo.EXPECT().CreateRunWithJob(gomock.Any(), gomock.Any()).Return(run, job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=audience_repository_mock.go github.com/target/prospector/internal/core AudienceRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=dispatch_repository_mock.go github.com/target/prospector/internal/core DispatchRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=run_repository_mock.go github.com/target/prospector/internal/core RunRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=prospect_repository_mock.go github.com/target/prospector/internal/core ProspectRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_queue_mock.go github.com/target/prospector/internal/core JobQueue
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=projection_repository_mock.go github.com/target/prospector/internal/core ProjectionRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/target/prospector/internal/core ReaperRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=change_publisher_mock.go github.com/target/prospector/internal/core ChangePublisher
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/prospector/internal/core CacheRepository
