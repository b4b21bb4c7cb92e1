package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

// Queue is the in-memory core.JobQueue.
type Queue struct{ s *Store }

// Queue returns the job queue view of the store.
func (s *Store) Queue() *Queue { return &Queue{s: s} }

// requeueExpiredLocked releases lapsed leases on queue, dead-lettering jobs
// with no attempts left. A zero limit means no limit.
func (s *Store) requeueExpiredLocked(queue string, limit int) int64 {
	now := s.clock.Now()
	var expired []*row[model.Job]
	for _, j := range s.jobs {
		if j.v.Queue == queue && j.v.Status == model.JobStatusReserved &&
			j.v.LeaseExpiresAt != nil && j.v.LeaseExpiresAt.Before(now) {
			expired = append(expired, j)
		}
	}
	slices.SortFunc(expired, func(a, b *row[model.Job]) int {
		return a.v.LeaseExpiresAt.Compare(*b.v.LeaseExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, j := range expired {
		j.v.LeaseExpiresAt = nil
		j.v.VisibleAt = now
		j.v.UpdatedAt = now
		if j.v.Attempts >= j.v.MaxAttempts {
			j.v.Status = model.JobStatusDead
			j.v.LastError = ptr("lease expired")
			continue
		}
		j.v.Status = model.JobStatusPending
	}
	if len(expired) > 0 {
		s.signal(queue)
	}
	return int64(len(expired))
}

// Reserve leases the oldest visible job on queue.
func (q *Queue) Reserve(_ context.Context, queue string, visibilitySeconds int) (*model.Job, error) {
	if visibilitySeconds <= 0 {
		return nil, errors.New("visibilitySeconds must be positive")
	}
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requeueExpiredLocked(queue, 0)

	now := s.clock.Now()
	var next *row[model.Job]
	for _, j := range s.jobs {
		if j.v.Queue != queue || j.v.Status != model.JobStatusPending || j.v.VisibleAt.After(now) {
			continue
		}
		if next == nil || j.v.VisibleAt.Before(next.v.VisibleAt) ||
			(j.v.VisibleAt.Equal(next.v.VisibleAt) && j.seq < next.seq) {
			next = j
		}
	}
	if next == nil {
		return nil, model.ErrNoJobsAvailable
	}
	next.v.Status = model.JobStatusReserved
	next.v.Attempts++
	next.v.LeaseExpiresAt = ptr(now.Add(time.Duration(visibilitySeconds) * time.Second))
	next.v.UpdatedAt = now
	return ptr(next.v), nil
}

// WaitForNotification blocks until a job becomes visible on queue or ctx ends.
func (q *Queue) WaitForNotification(ctx context.Context, queue string) error {
	return q.s.waitSignal(ctx, queue)
}

// Heartbeat extends a reserved job's lease.
func (q *Queue) Heartbeat(_ context.Context, id string, visibilitySeconds int) (bool, error) {
	if visibilitySeconds <= 0 {
		return false, errors.New("visibilitySeconds must be positive")
	}
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.v.Status != model.JobStatusReserved {
		return false, nil
	}
	now := s.clock.Now()
	j.v.LeaseExpiresAt = ptr(now.Add(time.Duration(visibilitySeconds) * time.Second))
	j.v.UpdatedAt = now
	return true, nil
}

// Ack removes a job.
func (q *Queue) Ack(_ context.Context, id string) (bool, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.jobs[id]; !ok {
		return false, nil
	}
	delete(q.s.jobs, id)
	return true, nil
}

// Fail releases a reserved job for a delayed retry or dead-letters it.
func (q *Queue) Fail(_ context.Context, id, errMsg string) (*model.FailJobResult, error) {
	s := q.s
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &model.FailJobResult{}
	j, ok := s.jobs[id]
	if !ok || j.v.Status != model.JobStatusReserved {
		return res, nil
	}
	now := s.clock.Now()
	res.Found = true
	j.v.LeaseExpiresAt = nil
	j.v.LastError = ptr(errMsg)
	j.v.UpdatedAt = now
	if j.v.Attempts >= j.v.MaxAttempts {
		j.v.Status = model.JobStatusDead
		res.Dead = true
		return res, nil
	}
	j.v.Status = model.JobStatusPending
	j.v.VisibleAt = now.Add(s.retryDelay)
	return res, nil
}

// GetByID retrieves a job by id.
func (q *Queue) GetByID(_ context.Context, id string) (*model.Job, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	j, ok := q.s.jobs[id]
	if !ok {
		return nil, apperrors.NotFoundf("job %q not found", id)
	}
	return ptr(j.v), nil
}

// Stats counts jobs on queue by status.
func (q *Queue) Stats(_ context.Context, queue string) (*model.JobStats, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var st model.JobStats
	for _, j := range q.s.jobs {
		if j.v.Queue != queue {
			continue
		}
		switch j.v.Status {
		case model.JobStatusPending:
			st.Pending++
		case model.JobStatusReserved:
			st.Reserved++
		case model.JobStatusDead:
			st.Dead++
		}
	}
	return &st, nil
}

// Jobs lists every job on queue in enqueue order. Tests use it to inspect the outbox.
func (q *Queue) Jobs(queue string) []model.Job {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var rows []*row[model.Job]
	for _, j := range q.s.jobs {
		if j.v.Queue == queue {
			rows = append(rows, j)
		}
	}
	slices.SortFunc(rows, func(a, b *row[model.Job]) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]model.Job, len(rows))
	for i, r := range rows {
		out[i] = r.v
	}
	return out
}

// Reaper is the in-memory core.ReaperRepository for one queue.
type Reaper struct {
	s     *Store
	queue string
}

// Reaper returns the housekeeping view of queue.
func (s *Store) Reaper(queue string) *Reaper { return &Reaper{s: s, queue: queue} }

// RequeueExpired recovers up to batchSize lapsed reservations.
func (r *Reaper) RequeueExpired(_ context.Context, batchSize int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.requeueExpiredLocked(r.queue, batchSize), nil
}

// DeleteDeadJobs purges up to batchSize dead jobs last touched before olderThan ago.
func (r *Reaper) DeleteDeadJobs(_ context.Context, olderThan time.Duration, batchSize int) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.clock.Now().Add(-olderThan)
	var n int64
	for id, j := range s.jobs {
		if batchSize > 0 && n >= int64(batchSize) {
			break
		}
		if j.v.Queue == r.queue && j.v.Status == model.JobStatusDead && j.v.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}
